package ledger_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"

	"ledger/internal/ledger"
	"ledger/internal/loan"
)

func RegisterRoutes(r chi.Router, ledgerEngine *ledger.Engine, loanEngine *loan.Engine, l *zap.Logger) {
	handler := NewLedgerHandler(ledgerEngine, loanEngine, l.With(zap.String("component", "LedgerHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ledger service is healthy!"))
		})
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.CreateAccountHandler)
		r.Get("/{id}/balance", handler.GetBalanceHandler)
		r.Get("/{id}/movements", handler.ListMovementsHandler)
	})

	r.Route("/movements", func(r chi.Router) {
		r.Post("/deposit", handler.DepositHandler)
		r.Post("/withdraw", handler.WithdrawHandler)
		r.Post("/transfer", handler.TransferHandler)
		r.Get("/{id}", handler.GetMovementHandler)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", handler.RequestLoanHandler)
		r.Get("/", handler.ListLoansHandler)
		r.Get("/{id}", handler.GetLoanHandler)
		r.Patch("/{id}", handler.AmendLoanHandler)
		r.Post("/{id}/approve", handler.ApproveLoanHandler)
		r.Post("/{id}/reject", handler.RejectLoanHandler)
	})
}
