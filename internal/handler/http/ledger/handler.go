package ledger_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/ledger"
	"ledger/internal/loan"
)

type LedgerHandler struct {
	ledger *ledger.Engine
	loans  *loan.Engine
	logger *zap.Logger
}

func NewLedgerHandler(ledgerEngine *ledger.Engine, loanEngine *loan.Engine, l *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledgerEngine, loans: loanEngine, logger: l}
}

type CreateAccountRequest struct {
	OpeningBalance string `json:"opening_balance,omitempty"`
	Description    string `json:"description,omitempty"`
}

type AccountResponse struct {
	ID        string `json:"id"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

type MovementRequest struct {
	AccountID   string `json:"account_id"`
	ToAccountID string `json:"to_account_id,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type MovementResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	AccountID      string `json:"account_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	Amount         string `json:"amount"`
	Description    string `json:"description,omitempty"`
	GroupID        string `json:"group_id"`
	LoanID         string `json:"loan_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type LoanRequest struct {
	AccountID  string `json:"account_id"`
	Principal  string `json:"principal"`
	Rate       string `json:"rate,omitempty"`
	TermMonths int    `json:"term_months"`
}

type AmendLoanRequest struct {
	Principal  *string `json:"principal,omitempty"`
	Rate       *string `json:"rate,omitempty"`
	TermMonths *int    `json:"term_months,omitempty"`
}

type LoanResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Principal   string `json:"principal"`
	Rate        string `json:"rate"`
	TermMonths  int    `json:"term_months"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
	ApprovedAt  string `json:"approved_at,omitempty"`
	DueAt       string `json:"due_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *LedgerHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var opening int64
	if req.OpeningBalance != "" {
		var err error
		opening, err = domain.ParseAmount(req.OpeningBalance)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid opening balance")
			return
		}
	}

	account, err := h.ledger.CreateAccount(r.Context(), opening, req.Description)
	if err != nil {
		h.respondEngineError(w, err, "Failed to create account")
		return
	}
	h.writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *LedgerHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	balance, err := h.ledger.Balance(r.Context(), accountID)
	if err != nil {
		h.respondEngineError(w, err, "Failed to get balance")
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID: accountID,
		Balance:   domain.FormatAmount(balance),
	})
}

func (h *LedgerHandler) ListMovementsHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	movements, err := h.ledger.Movements(r.Context(), accountID)
	if err != nil {
		h.respondEngineError(w, err, "Failed to list movements")
		return
	}
	out := make([]MovementResponse, 0, len(movements))
	for _, mv := range movements {
		out = append(out, toMovementResponse(mv))
	}
	h.writeJSON(w, http.StatusOK, map[string][]MovementResponse{"movements": out})
}

func (h *LedgerHandler) GetMovementHandler(w http.ResponseWriter, r *http.Request) {
	mv, err := h.ledger.Movement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err, "Failed to get movement")
		return
	}
	h.writeJSON(w, http.StatusOK, toMovementResponse(mv))
}

func (h *LedgerHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeMovementRequest(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Deposit(r.Context(), req.AccountID, amount, req.Description)
	if err != nil {
		h.respondEngineError(w, err, "Failed to deposit")
		return
	}
	h.writeJSON(w, http.StatusCreated, BalanceResponse{
		AccountID: req.AccountID,
		Balance:   domain.FormatAmount(balance),
	})
}

func (h *LedgerHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeMovementRequest(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Withdraw(r.Context(), req.AccountID, amount, req.Description)
	if err != nil {
		h.respondEngineError(w, err, "Failed to withdraw")
		return
	}
	h.writeJSON(w, http.StatusCreated, BalanceResponse{
		AccountID: req.AccountID,
		Balance:   domain.FormatAmount(balance),
	})
}

func (h *LedgerHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeMovementRequest(w, r)
	if !ok {
		return
	}
	if req.ToAccountID == "" {
		h.writeError(w, http.StatusBadRequest, "to_account_id is required")
		return
	}
	balance, err := h.ledger.Transfer(r.Context(), req.AccountID, req.ToAccountID, amount, req.Description)
	if err != nil {
		h.respondEngineError(w, err, "Failed to transfer")
		return
	}
	h.writeJSON(w, http.StatusCreated, BalanceResponse{
		AccountID: req.AccountID,
		Balance:   domain.FormatAmount(balance),
	})
}

func (h *LedgerHandler) RequestLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == "" {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	principal, err := domain.ParseAmount(req.Principal)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid principal")
		return
	}
	var rateBps *int64
	if req.Rate != "" {
		bps, err := domain.ParseRate(req.Rate)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid rate")
			return
		}
		rateBps = &bps
	}

	l, err := h.loans.Request(r.Context(), req.AccountID, principal, rateBps, req.TermMonths)
	if err != nil {
		h.respondEngineError(w, err, "Failed to request loan")
		return
	}
	h.writeJSON(w, http.StatusCreated, toLoanResponse(l))
}

func (h *LedgerHandler) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	loans, err := h.loans.LoansByAccount(r.Context(), accountID)
	if err != nil {
		h.respondEngineError(w, err, "Failed to list loans")
		return
	}
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	h.writeJSON(w, http.StatusOK, map[string][]LoanResponse{"loans": out})
}

func (h *LedgerHandler) GetLoanHandler(w http.ResponseWriter, r *http.Request) {
	l, err := h.loans.Loan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err, "Failed to get loan")
		return
	}
	h.writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (h *LedgerHandler) AmendLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req AmendLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Principal == nil && req.Rate == nil && req.TermMonths == nil {
		h.writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	var principal, rateBps *int64
	if req.Principal != nil {
		v, err := domain.ParseAmount(*req.Principal)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid principal")
			return
		}
		principal = &v
	}
	if req.Rate != nil {
		v, err := domain.ParseRate(*req.Rate)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid rate")
			return
		}
		rateBps = &v
	}

	l, err := h.loans.Amend(r.Context(), chi.URLParam(r, "id"), principal, rateBps, req.TermMonths)
	if err != nil {
		h.respondEngineError(w, err, "Failed to amend loan")
		return
	}
	h.writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (h *LedgerHandler) ApproveLoanHandler(w http.ResponseWriter, r *http.Request) {
	l, err := h.loans.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err, "Failed to approve loan")
		return
	}
	h.writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (h *LedgerHandler) RejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	l, err := h.loans.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err, "Failed to reject loan")
		return
	}
	h.writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (h *LedgerHandler) decodeMovementRequest(w http.ResponseWriter, r *http.Request) (MovementRequest, int64, bool) {
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, 0, false
	}
	if req.AccountID == "" {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return req, 0, false
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return req, 0, false
	}
	return req, amount, true
}

// respondEngineError translates the engine error taxonomy to transport
// status codes: not-found -> 404, duplicate account -> 409, every other
// caller-fixable condition -> 400.
func (h *LedgerHandler) respondEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrMovementNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidTerm),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInvalidLoanState):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func toAccountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Balance:   domain.FormatAmount(a.Balance),
		CreatedAt: a.CreatedAt.Format(http.TimeFormat),
		UpdatedAt: a.UpdatedAt.Format(http.TimeFormat),
	}
}

func toMovementResponse(mv domain.Movement) MovementResponse {
	out := MovementResponse{
		ID:          mv.ID,
		Kind:        string(mv.Kind),
		AccountID:   mv.AccountID,
		Amount:      domain.FormatAmount(mv.Amount),
		Description: mv.Description,
		GroupID:     mv.GroupID,
		CreatedAt:   mv.CreatedAt.Format(http.TimeFormat),
	}
	if mv.CounterpartyID != nil {
		out.CounterpartyID = *mv.CounterpartyID
	}
	if mv.LoanID != nil {
		out.LoanID = *mv.LoanID
	}
	return out
}

func toLoanResponse(l domain.Loan) LoanResponse {
	out := LoanResponse{
		ID:          l.ID,
		AccountID:   l.AccountID,
		Principal:   domain.FormatAmount(l.Principal),
		Rate:        domain.FormatRate(l.RateBps),
		TermMonths:  l.TermMonths,
		Status:      string(l.Status),
		RequestedAt: l.RequestedAt.Format(http.TimeFormat),
		DueAt:       l.DueAt.Format(http.TimeFormat),
	}
	if l.ApprovedAt != nil {
		out.ApprovedAt = l.ApprovedAt.Format(http.TimeFormat)
	}
	return out
}
