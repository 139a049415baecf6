package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lendledger/pkg/models"
	"lendledger/pkg/store"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrLoanPaidOff  = errors.New("loan is already paid off")
)

// Ledger handles the business logic for customers, loans and payments.
type Ledger struct {
	storage store.Storage
	log     *logrus.Logger

	// Payment application is read-compute-write; loanLocks serializes it per
	// loan so two concurrent payments cannot start from the same balance.
	mu        sync.Mutex
	loanLocks map[uuid.UUID]*sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, log *logrus.Logger) *Ledger {
	return &Ledger{
		storage:   s,
		log:       log,
		loanLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *Ledger) lockLoan(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.loanLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.loanLocks[id] = lock
	}
	return lock
}

// dropLoanLock removes a loan's lock entry so the map stays bounded by the
// number of active loans. Safe while the mutex is still held: a racing caller
// holding the old pointer re-reads the loan and is rejected, and no write
// path exists for a PAID_OFF or absent loan.
func (l *Ledger) dropLoanLock(id uuid.UUID) {
	l.mu.Lock()
	delete(l.loanLocks, id)
	l.mu.Unlock()
}

// RegisterCustomer creates a customer under an externally supplied id.
func (l *Ledger) RegisterCustomer(id, name string) error {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := l.storage.CreateCustomer(&models.Customer{ID: id, Name: name}); err != nil {
		return err
	}
	l.log.WithField("customer_id", id).Info("customer registered")
	return nil
}

// CreateLoan originates a loan for an existing customer. Terms are computed
// once here and fixed for the loan's lifetime.
func (l *Ledger) CreateLoan(customerID string, principal decimal.Decimal, years int, annualRate decimal.Decimal) (*models.Loan, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	terms, err := ComputeTerms(principal, years, annualRate)
	if err != nil {
		return nil, err
	}

	// The customer must exist before any loan record is written.
	if _, err := l.storage.GetCustomer(customerID); err != nil {
		return nil, err
	}

	loan := &models.Loan{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Principal:       principal,
		TotalAmount:     terms.TotalPayable,
		InterestRate:    annualRate,
		PeriodYears:     years,
		MonthlyEMI:      terms.EMI,
		RemainingAmount: terms.TotalPayable,
		Status:          models.LoanStatusActive,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"customer_id": customerID,
		"total":       terms.TotalPayable,
		"emi":         terms.EMI,
	}).Info("loan originated")
	return loan, nil
}

// RecordPayment applies a payment against a loan's remaining amount. The
// payment row and the balance update are persisted atomically by the store.
func (l *Ledger) RecordPayment(loanID uuid.UUID, amount decimal.Decimal, paymentType models.PaymentType) (*models.Payment, *models.Loan, PaymentOutcome, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, PaymentOutcome{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !paymentType.IsValid() {
		return nil, nil, PaymentOutcome{}, fmt.Errorf("%w: payment_type must be EMI or LUMP_SUM", ErrInvalidInput)
	}

	lock := l.lockLoan(loanID)
	lock.Lock()
	defer lock.Unlock()

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		l.dropLoanLock(loanID)
		return nil, nil, PaymentOutcome{}, err
	}
	if loan.Status == models.LoanStatusPaidOff {
		l.dropLoanLock(loanID)
		return nil, nil, PaymentOutcome{}, ErrLoanPaidOff
	}

	outcome := ApplyPayment(loan.RemainingAmount, loan.MonthlyEMI, amount)

	payment := &models.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    amount,
		Type:      paymentType,
		Timestamp: time.Now().UTC(),
	}
	if err := l.storage.ApplyPayment(payment, outcome.NewRemaining, outcome.Status); err != nil {
		return nil, nil, PaymentOutcome{}, fmt.Errorf("failed to apply payment: %w", err)
	}

	loan.RemainingAmount = outcome.NewRemaining
	loan.Status = outcome.Status

	if outcome.Status == models.LoanStatusPaidOff {
		l.dropLoanLock(loanID)
	}

	l.log.WithFields(logrus.Fields{
		"loan_id":    loan.ID,
		"payment_id": payment.ID,
		"amount":     amount,
		"remaining":  outcome.NewRemaining,
		"status":     outcome.Status,
	}).Info("payment recorded")
	return payment, loan, outcome, nil
}

// LoanLedger returns the loan, its full payment history in creation order,
// and the derived summary.
func (l *Ledger) LoanLedger(loanID uuid.UUID) (*models.Loan, []*models.Payment, Summary, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, Summary{}, err
	}
	payments, err := l.storage.ListPaymentsByLoan(loanID)
	if err != nil {
		return nil, nil, Summary{}, err
	}
	return loan, payments, Summarize(loan, payments), nil
}

// LoanOverview pairs a loan with its derived summary for the per-customer view.
type LoanOverview struct {
	Loan    *models.Loan
	Summary Summary
}

// CustomerOverview summarizes every loan a customer holds, in stable store
// order. A customer with no loans reports not found, matching the wire
// contract rather than returning an empty list.
func (l *Ledger) CustomerOverview(customerID string) ([]LoanOverview, error) {
	loans, err := l.storage.ListLoansByCustomer(customerID)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, fmt.Errorf("no loans for customer %s: %w", customerID, store.ErrNotFound)
	}

	overviews := make([]LoanOverview, 0, len(loans))
	for _, loan := range loans {
		payments, err := l.storage.ListPaymentsByLoan(loan.ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, LoanOverview{Loan: loan, Summary: Summarize(loan, payments)})
	}
	return overviews, nil
}
