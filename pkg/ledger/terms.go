package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lendledger/pkg/models"
)

const emiScale = 2

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// Terms are the fixed numbers of a loan, computed once at origination.
type Terms struct {
	Interest     decimal.Decimal
	TotalPayable decimal.Decimal
	EMI          decimal.Decimal
}

// ComputeTerms derives simple (non-compounding) interest terms.
//
//	interest = principal * years * rate/100
//	total    = principal + interest
//	emi      = round(total / (years*12), 2)
func ComputeTerms(principal decimal.Decimal, years int, annualRate decimal.Decimal) (Terms, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return Terms{}, fmt.Errorf("%w: loan amount must be positive", ErrInvalidInput)
	}
	if years <= 0 {
		return Terms{}, fmt.Errorf("%w: loan period must be a positive number of years", ErrInvalidInput)
	}
	if annualRate.LessThanOrEqual(decimal.Zero) {
		return Terms{}, fmt.Errorf("%w: interest rate must be positive", ErrInvalidInput)
	}

	yearsDec := decimal.NewFromInt(int64(years))
	interest := principal.Mul(yearsDec).Mul(annualRate.Div(hundred))
	total := principal.Add(interest)
	emi := total.Div(yearsDec.Mul(monthsInYear)).Round(emiScale)

	return Terms{Interest: interest, TotalPayable: total, EMI: emi}, nil
}

// PaymentOutcome is the state of a loan after a payment is applied.
type PaymentOutcome struct {
	NewRemaining decimal.Decimal
	Status       models.LoanStatus
	EMIsLeft     int64
}

// ApplyPayment reduces the remaining amount by the payment, flooring at zero.
// Overpayment is accepted silently; there is no refund or credit concept.
func ApplyPayment(currentRemaining, emi, amount decimal.Decimal) PaymentOutcome {
	remaining := currentRemaining.Sub(amount)
	if remaining.LessThanOrEqual(decimal.Zero) {
		remaining = decimal.Zero
	}
	status := models.LoanStatusActive
	if remaining.IsZero() {
		status = models.LoanStatusPaidOff
	}
	return PaymentOutcome{
		NewRemaining: remaining,
		Status:       status,
		EMIsLeft:     EMIsLeft(remaining, emi),
	}
}

// EMIsLeft is the derived countdown ceil(remaining/emi). It is recomputed on
// every read and never stored; a lump-sum payment shrinks the countdown rather
// than shortening the loan term.
func EMIsLeft(remaining, emi decimal.Decimal) int64 {
	if remaining.LessThanOrEqual(decimal.Zero) || emi.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return remaining.Div(emi).Ceil().IntPart()
}

// Summary is the derived per-loan view combining stored terms and payments.
type Summary struct {
	Principal   decimal.Decimal
	Interest    decimal.Decimal
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
	Balance     decimal.Decimal
	EMIsLeft    int64
}

// Summarize recomputes the total from the stored principal, period and rate
// rather than reading it back, to guard against drift; the result must always
// equal the value fixed at origination.
func Summarize(loan *models.Loan, payments []*models.Payment) Summary {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	years := decimal.NewFromInt(int64(loan.PeriodYears))
	interest := loan.Principal.Mul(years).Mul(loan.InterestRate.Div(hundred))

	return Summary{
		Principal:   loan.Principal,
		Interest:    interest,
		TotalAmount: loan.Principal.Add(interest),
		AmountPaid:  paid,
		Balance:     loan.RemainingAmount,
		EMIsLeft:    EMIsLeft(loan.RemainingAmount, loan.MonthlyEMI),
	}
}
