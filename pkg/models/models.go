package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "ACTIVE"
	LoanStatusPaidOff LoanStatus = "PAID_OFF"
)

type PaymentType string

const (
	PaymentTypeEMI     PaymentType = "EMI"
	PaymentTypeLumpSum PaymentType = "LUMP_SUM"
)

// IsValid reports whether t is one of the two accepted payment types.
func (t PaymentType) IsValid() bool {
	return t == PaymentTypeEMI || t == PaymentTypeLumpSum
}

// Customer is registered once under an externally supplied id and never changes.
type Customer struct {
	ID   string `json:"customer_id"`
	Name string `json:"name"`
}

type Loan struct {
	ID              uuid.UUID       `json:"loan_id"`
	CustomerID      string          `json:"customer_id"`
	Principal       decimal.Decimal `json:"principal_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`  // principal + simple interest, fixed at origination
	InterestRate    decimal.Decimal `json:"interest_rate"` // annual percentage
	PeriodYears     int             `json:"loan_period_years"`
	MonthlyEMI      decimal.Decimal `json:"monthly_emi"`      // rounded to 2dp at origination, never recomputed
	RemainingAmount decimal.Decimal `json:"remaining_amount"` // floored at zero
	Status          LoanStatus      `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Payment struct {
	ID        uuid.UUID       `json:"payment_id"`
	LoanID    uuid.UUID       `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      PaymentType     `json:"payment_type"`
	Timestamp time.Time       `json:"payment_date"`
}
