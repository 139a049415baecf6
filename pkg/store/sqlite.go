package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"lendledger/pkg/models"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database, enables foreign keys and WAL mode, and
// initializes the schema. Schema creation runs once here, before any request
// is served; no other code touches the DDL.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Decimal fields are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		loan_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		loan_period_years INTEGER NOT NULL,
		monthly_emi TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(customer_id) REFERENCES customers(customer_id)
	);
	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(loan_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isConstraintError reports whether err is a sqlite constraint violation,
// which on our schema means a primary key collision.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// CreateCustomer inserts a new customer, returning ErrConflict if the
// externally supplied id is already registered.
func (s *SQLiteStore) CreateCustomer(customer *models.Customer) error {
	_, err := s.db.Exec(
		`INSERT INTO customers (customer_id, name) VALUES (?, ?)`,
		customer.ID, customer.Name,
	)
	if isConstraintError(err) {
		return fmt.Errorf("customer %s: %w", customer.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by its id.
func (s *SQLiteStore) GetCustomer(id string) (*models.Customer, error) {
	var customer models.Customer
	row := s.db.QueryRow(`SELECT customer_id, name FROM customers WHERE customer_id = ?`, id)
	err := row.Scan(&customer.ID, &customer.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (loan_id, customer_id, principal_amount, total_amount, interest_rate, loan_period_years, monthly_emi, remaining_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.CustomerID, loan.Principal, loan.TotalAmount, loan.InterestRate,
		loan.PeriodYears, loan.MonthlyEMI, loan.RemainingAmount, string(loan.Status), loan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(
		`SELECT loan_id, customer_id, principal_amount, total_amount, interest_rate, loan_period_years, monthly_emi, remaining_amount, status, created_at
		FROM loans WHERE loan_id = ?`, id.String())
	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// ListLoansByCustomer retrieves all loans for a customer in creation order.
// The result may be empty; absence of loans is not an error here.
func (s *SQLiteStore) ListLoansByCustomer(customerID string) ([]*models.Loan, error) {
	rows, err := s.db.Query(
		`SELECT loan_id, customer_id, principal_amount, total_amount, interest_rate, loan_period_years, monthly_emi, remaining_amount, status, created_at
		FROM loans WHERE customer_id = ? ORDER BY created_at ASC, loan_id ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var loanIDStr, status string
	var created time.Time
	err := row.Scan(&loanIDStr, &loan.CustomerID, &loan.Principal, &loan.TotalAmount,
		&loan.InterestRate, &loan.PeriodYears, &loan.MonthlyEMI, &loan.RemainingAmount,
		&status, &created)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(loanIDStr)
	loan.Status = models.LoanStatus(status)
	loan.CreatedAt = created
	return &loan, nil
}

// InsertPayment persists a single payment record.
func (s *SQLiteStore) InsertPayment(payment *models.Payment) error {
	return insertPayment(s.db, payment)
}

// UpdateLoanBalance overwrites the mutable fields of a loan.
func (s *SQLiteStore) UpdateLoanBalance(loanID uuid.UUID, newRemaining decimal.Decimal, newStatus models.LoanStatus) error {
	return updateLoanBalance(s.db, loanID, newRemaining, newStatus)
}

// ApplyPayment runs the payment insert and the balance update in one
// transaction. The insert is sequenced before the update; neither reaches
// durable storage without the other.
func (s *SQLiteStore) ApplyPayment(payment *models.Payment, newRemaining decimal.Decimal, newStatus models.LoanStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPayment(tx, payment); err != nil {
		return err
	}
	if err := updateLoanBalance(tx, payment.LoanID, newRemaining, newStatus); err != nil {
		return err
	}
	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertPayment(e execer, payment *models.Payment) error {
	_, err := e.Exec(
		`INSERT INTO payments (payment_id, loan_id, amount, payment_type, payment_date)
		VALUES (?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.Amount, string(payment.Type), payment.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func updateLoanBalance(e execer, loanID uuid.UUID, newRemaining decimal.Decimal, newStatus models.LoanStatus) error {
	result, err := e.Exec(
		`UPDATE loans SET remaining_amount = ?, status = ? WHERE loan_id = ?`,
		newRemaining, string(newStatus), loanID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
	}
	return nil
}

// ListPaymentsByLoan retrieves all payments for a loan, oldest first.
func (s *SQLiteStore) ListPaymentsByLoan(loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.Query(
		`SELECT payment_id, loan_id, amount, payment_type, payment_date
		FROM payments WHERE loan_id = ? ORDER BY payment_date ASC, payment_id ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var payment models.Payment
		var paymentIDStr, loanIDStr, paymentType string
		var timestamp time.Time
		if err := rows.Scan(&paymentIDStr, &loanIDStr, &payment.Amount, &paymentType, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.ID = uuid.MustParse(paymentIDStr)
		payment.LoanID = uuid.MustParse(loanIDStr)
		payment.Type = models.PaymentType(paymentType)
		payment.Timestamp = timestamp
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
