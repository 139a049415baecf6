package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lendledger/pkg/models"
)

func newTestStore(t *testing.T, dbFile string) *SQLiteStore {
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLoan(customerID string) *models.Loan {
	return &models.Loan{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Principal:       decimal.NewFromInt(100000),
		TotalAmount:     decimal.NewFromInt(120000),
		InterestRate:    decimal.NewFromInt(10),
		PeriodYears:     2,
		MonthlyEMI:      decimal.RequireFromString("5000.00"),
		RemainingAmount: decimal.NewFromInt(120000),
		Status:          models.LoanStatusActive,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSQLiteStore_Customers(t *testing.T) {
	s := newTestStore(t, "test_customers.db")

	customer := &models.Customer{ID: "cust_test", Name: "Fred"}
	if err := s.CreateCustomer(customer); err != nil {
		t.Fatalf("Failed to create customer: %v", err)
	}

	err := s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on duplicate id, got %v", err)
	}

	fetched, err := s.GetCustomer("cust_test")
	if err != nil {
		t.Fatalf("Failed to get customer: %v", err)
	}
	if fetched.Name != "Fred" {
		t.Errorf("Expected name Fred, got %s", fetched.Name)
	}

	_, err = s.GetCustomer("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_CreateAndGetLoan(t *testing.T) {
	s := newTestStore(t, "test_loans.db")

	if err := s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Fred"}); err != nil {
		t.Fatalf("Failed to create customer: %v", err)
	}

	loan := testLoan("cust_test")
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	fetched, err := s.GetLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if fetched.CustomerID != loan.CustomerID {
		t.Errorf("Expected customer %s, got %s", loan.CustomerID, fetched.CustomerID)
	}
	if !fetched.Principal.Equal(loan.Principal) {
		t.Errorf("Expected principal %s, got %s", loan.Principal, fetched.Principal)
	}
	if !fetched.MonthlyEMI.Equal(loan.MonthlyEMI) {
		t.Errorf("Expected EMI %s, got %s", loan.MonthlyEMI, fetched.MonthlyEMI)
	}
	if fetched.PeriodYears != loan.PeriodYears {
		t.Errorf("Expected period %d, got %d", loan.PeriodYears, fetched.PeriodYears)
	}
	if fetched.Status != models.LoanStatusActive {
		t.Errorf("Expected status ACTIVE, got %s", fetched.Status)
	}

	_, err = s.GetLoan(uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ListLoansByCustomer(t *testing.T) {
	s := newTestStore(t, "test_loan_list.db")

	s.CreateCustomer(&models.Customer{ID: "cust_a", Name: "A"})
	s.CreateCustomer(&models.Customer{ID: "cust_b", Name: "B"})

	first := testLoan("cust_a")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := testLoan("cust_a")
	other := testLoan("cust_b")
	for _, l := range []*models.Loan{second, first, other} {
		if err := s.CreateLoan(l); err != nil {
			t.Fatalf("Failed to create loan: %v", err)
		}
	}

	loans, err := s.ListLoansByCustomer("cust_a")
	if err != nil {
		t.Fatalf("Failed to list loans: %v", err)
	}
	if len(loans) != 2 {
		t.Fatalf("Expected 2 loans, got %d", len(loans))
	}
	if loans[0].ID != first.ID || loans[1].ID != second.ID {
		t.Errorf("Expected loans in creation order")
	}

	loans, err = s.ListLoansByCustomer("nobody")
	if err != nil {
		t.Fatalf("Listing loans for unknown customer should not error: %v", err)
	}
	if len(loans) != 0 {
		t.Errorf("Expected empty list, got %d", len(loans))
	}
}

func TestSQLiteStore_ApplyPayment(t *testing.T) {
	s := newTestStore(t, "test_payments.db")

	s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Fred"})
	loan := testLoan("cust_test")
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    decimal.NewFromInt(5000),
		Type:      models.PaymentTypeEMI,
		Timestamp: time.Now().UTC(),
	}
	newRemaining := decimal.NewFromInt(115000)
	if err := s.ApplyPayment(payment, newRemaining, models.LoanStatusActive); err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}

	fetched, err := s.GetLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if !fetched.RemainingAmount.Equal(newRemaining) {
		t.Errorf("Expected remaining %s, got %s", newRemaining, fetched.RemainingAmount)
	}

	payments, err := s.ListPaymentsByLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(payments))
	}
	if !payments[0].Amount.Equal(payment.Amount) {
		t.Errorf("Expected amount %s, got %s", payment.Amount, payments[0].Amount)
	}
	if payments[0].Type != models.PaymentTypeEMI {
		t.Errorf("Expected type EMI, got %s", payments[0].Type)
	}
}

func TestSQLiteStore_ApplyPaymentRollsBack(t *testing.T) {
	s := newTestStore(t, "test_payment_rollback.db")

	s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Fred"})
	loan := testLoan("cust_test")
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	// Target a loan id that does not exist: the transaction must fail as a
	// whole and leave no payment row behind.
	unknownLoanID := uuid.New()
	err := s.ApplyPayment(&models.Payment{
		ID:        uuid.New(),
		LoanID:    unknownLoanID,
		Amount:    decimal.NewFromInt(5000),
		Type:      models.PaymentTypeEMI,
		Timestamp: time.Now().UTC(),
	}, decimal.NewFromInt(115000), models.LoanStatusActive)
	if err == nil {
		t.Fatal("Expected ApplyPayment against unknown loan to fail")
	}

	payments, err := s.ListPaymentsByLoan(unknownLoanID)
	if err != nil {
		t.Fatalf("Failed to list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("Expected rolled-back payment to leave no record, got %d", len(payments))
	}
}

func TestSQLiteStore_PaymentOrdering(t *testing.T) {
	s := newTestStore(t, "test_payment_order.db")

	s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Fred"})
	loan := testLoan("cust_test")
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	base := time.Now().UTC()
	amounts := []int64{100, 200, 300}
	for i, amt := range amounts {
		err := s.InsertPayment(&models.Payment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Amount:    decimal.NewFromInt(amt),
			Type:      models.PaymentTypeEMI,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Failed to insert payment: %v", err)
		}
	}

	payments, err := s.ListPaymentsByLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to list payments: %v", err)
	}
	if len(payments) != len(amounts) {
		t.Fatalf("Expected %d payments, got %d", len(amounts), len(payments))
	}
	for i, amt := range amounts {
		if !payments[i].Amount.Equal(decimal.NewFromInt(amt)) {
			t.Errorf("Expected payment %d to be %d, got %s", i, amt, payments[i].Amount)
		}
	}
}

func TestSQLiteStore_UpdateLoanBalance(t *testing.T) {
	s := newTestStore(t, "test_balance.db")

	s.CreateCustomer(&models.Customer{ID: "cust_test", Name: "Fred"})
	loan := testLoan("cust_test")
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	if err := s.UpdateLoanBalance(loan.ID, decimal.Zero, models.LoanStatusPaidOff); err != nil {
		t.Fatalf("Failed to update balance: %v", err)
	}
	fetched, _ := s.GetLoan(loan.ID)
	if !fetched.RemainingAmount.Equal(decimal.Zero) {
		t.Errorf("Expected remaining 0, got %s", fetched.RemainingAmount)
	}
	if fetched.Status != models.LoanStatusPaidOff {
		t.Errorf("Expected status PAID_OFF, got %s", fetched.Status)
	}

	err := s.UpdateLoanBalance(uuid.New(), decimal.Zero, models.LoanStatusActive)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
