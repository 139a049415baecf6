package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lendledger/pkg/cache"
	"lendledger/pkg/ledger"
	"lendledger/pkg/models"
	"lendledger/pkg/store"
)

// Server holds the ledger instance and the read-side response cache.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // kept so callers can close it
	cache   cache.Cache
	log     *logrus.Logger
}

func NewServer(s store.Storage, c cache.Cache, log *logrus.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, log),
		storage: s,
		cache:   c,
		log:     log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps the error taxonomy to response codes: validation and
// duplicate registration reject with 400, missing references with 404,
// anything from the store itself with 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrLoanPaidOff):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) registerCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ledger.RegisterCustomer(req.CustomerID, req.Name); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Customer created"})
}

type createLoanResponse struct {
	LoanID             uuid.UUID       `json:"loan_id"`
	CustomerID         string          `json:"customer_id"`
	TotalAmountPayable decimal.Decimal `json:"total_amount_payable"`
	MonthlyEMI         decimal.Decimal `json:"monthly_emi"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID         string          `json:"customer_id"`
		LoanAmount         decimal.Decimal `json:"loan_amount"`
		LoanPeriodYears    int             `json:"loan_period_years"`
		InterestRateYearly decimal.Decimal `json:"interest_rate_yearly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := s.ledger.CreateLoan(req.CustomerID, req.LoanAmount, req.LoanPeriodYears, req.InterestRateYearly)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// A new loan changes the customer's overview.
	s.cache.Delete(overviewCacheKey(loan.CustomerID))

	writeJSON(w, http.StatusCreated, createLoanResponse{
		LoanID:             loan.ID,
		CustomerID:         loan.CustomerID,
		TotalAmountPayable: loan.TotalAmount,
		MonthlyEMI:         loan.MonthlyEMI,
	})
}

type recordPaymentResponse struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	Message          string          `json:"message"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	EMIsLeft         int64           `json:"emis_left"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["loan_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	var req struct {
		Amount      decimal.Decimal    `json:"amount"`
		PaymentType models.PaymentType `json:"payment_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, loan, outcome, err := s.ledger.RecordPayment(loanID, req.Amount, req.PaymentType)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.Delete(ledgerCacheKey(loanID))
	s.cache.Delete(overviewCacheKey(loan.CustomerID))

	writeJSON(w, http.StatusOK, recordPaymentResponse{
		PaymentID:        payment.ID,
		LoanID:           loan.ID,
		Message:          "Payment recorded successfully.",
		RemainingBalance: outcome.NewRemaining,
		EMIsLeft:         outcome.EMIsLeft,
	})
}

type ledgerResponse struct {
	LoanID        uuid.UUID         `json:"loan_id"`
	CustomerID    string            `json:"customer_id"`
	Principal     decimal.Decimal   `json:"principal"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	MonthlyEMI    decimal.Decimal   `json:"monthly_emi"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	BalanceAmount decimal.Decimal   `json:"balance_amount"`
	EMIsLeft      int64             `json:"emis_left"`
	Transactions  []*models.Payment `json:"transactions"`
}

func (s *Server) getLedgerHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["loan_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	if body, ok := s.cache.Get(ledgerCacheKey(loanID)); ok {
		writeCached(w, body)
		return
	}

	loan, payments, summary, err := s.ledger.LoanLedger(loanID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}

	resp := ledgerResponse{
		LoanID:        loan.ID,
		CustomerID:    loan.CustomerID,
		Principal:     summary.Principal,
		TotalAmount:   summary.TotalAmount,
		MonthlyEMI:    loan.MonthlyEMI,
		AmountPaid:    summary.AmountPaid,
		BalanceAmount: summary.Balance,
		EMIsLeft:      summary.EMIsLeft,
		Transactions:  payments,
	}
	s.writeAndCache(w, ledgerCacheKey(loanID), resp)
}

type overviewLoan struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	Principal     decimal.Decimal `json:"principal"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	EMIAmount     decimal.Decimal `json:"emi_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	EMIsLeft      int64           `json:"emis_left"`
}

type overviewResponse struct {
	CustomerID string         `json:"customer_id"`
	TotalLoans int            `json:"total_loans"`
	Loans      []overviewLoan `json:"loans"`
}

func (s *Server) customerOverviewHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customer_id"]

	if body, ok := s.cache.Get(overviewCacheKey(customerID)); ok {
		writeCached(w, body)
		return
	}

	overviews, err := s.ledger.CustomerOverview(customerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := overviewResponse{
		CustomerID: customerID,
		TotalLoans: len(overviews),
		Loans:      make([]overviewLoan, 0, len(overviews)),
	}
	for _, ov := range overviews {
		resp.Loans = append(resp.Loans, overviewLoan{
			LoanID:        ov.Loan.ID,
			Principal:     ov.Summary.Principal,
			TotalAmount:   ov.Summary.TotalAmount,
			TotalInterest: ov.Summary.Interest,
			EMIAmount:     ov.Loan.MonthlyEMI,
			AmountPaid:    ov.Summary.AmountPaid,
			BalanceAmount: ov.Summary.Balance,
			EMIsLeft:      ov.Summary.EMIsLeft,
		})
	}
	s.writeAndCache(w, overviewCacheKey(customerID), resp)
}

func ledgerCacheKey(loanID uuid.UUID) string {
	return "ledger:" + loanID.String()
}

func overviewCacheKey(customerID string) string {
	return "overview:" + customerID
}

func writeCached(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// writeAndCache stores the rendered body so repeated reads skip the store;
// the entry is deleted whenever a payment or a new loan changes it.
func (s *Server) writeAndCache(w http.ResponseWriter, key string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("failed to encode response")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.cache.Set(key, string(body)); err != nil {
		s.log.WithError(err).Warn("failed to cache response")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
