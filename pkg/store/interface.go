package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lendledger/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Storage is the durable ledger: customers, loans and payments, and the
// source of truth for loan balances.
type Storage interface {
	CreateCustomer(customer *models.Customer) error
	GetCustomer(id string) (*models.Customer, error)

	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	ListLoansByCustomer(customerID string) ([]*models.Loan, error)

	InsertPayment(payment *models.Payment) error
	UpdateLoanBalance(loanID uuid.UUID, newRemaining decimal.Decimal, newStatus models.LoanStatus) error

	// ApplyPayment persists the payment and the dependent balance update in a
	// single transaction, so a payment can never be recorded without the loan
	// balance moving, or vice versa.
	ApplyPayment(payment *models.Payment, newRemaining decimal.Decimal, newStatus models.LoanStatus) error

	ListPaymentsByLoan(loanID uuid.UUID) ([]*models.Payment, error)

	Close() error
}
