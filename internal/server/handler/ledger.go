package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// LedgerService defines the write operations the ledger handler exposes.
type LedgerService interface {
	Deposit(ctx context.Context, user, market common.Address, kind domain.TokenKind, amount *big.Int) (domain.Position, error)
	Convert(ctx context.Context, user, market common.Address, dst domain.TokenKind) (domain.Position, error)
	Withdraw(ctx context.Context, user, market common.Address, dst domain.TokenKind) (*big.Int, error)
	Swap(ctx context.Context, user, market common.Address, src domain.TokenKind, amount *big.Int, dst domain.TokenKind) (*big.Int, error)
}

// LedgerHandler serves the ledger mutation endpoints.
type LedgerHandler struct {
	ledger LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(ledger LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

type depositRequest struct {
	User   string `json:"user"`
	Market string `json:"market"`
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
}

// Deposit pulls tokens from the user into custody and credits the position.
// POST /api/ledger/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, market, err := parseEntry(req.User, req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := domain.ParseTokenKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.ledger.Deposit(r.Context(), user, market, kind, amount)
	if err != nil {
		h.logFailure(r, "deposit", user, market, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderPosition(pos))
}

type convertRequest struct {
	User   string `json:"user"`
	Market string `json:"market"`
	Dst    string `json:"dst"`
}

// Convert exchanges the entire holding for the destination kind.
// POST /api/ledger/convert
func (h *LedgerHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, market, err := parseEntry(req.User, req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dst, err := domain.ParseTokenKind(req.Dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.ledger.Convert(r.Context(), user, market, dst)
	if err != nil {
		h.logFailure(r, "convert", user, market, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderPosition(pos))
}

type withdrawRequest struct {
	User   string `json:"user"`
	Market string `json:"market"`
	Dst    string `json:"dst"`
}

// Withdraw drains the holding to the user in the requested kind.
// POST /api/ledger/withdraw
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, market, err := parseEntry(req.User, req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dst, err := domain.ParseTokenKind(req.Dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.ledger.Withdraw(r.Context(), user, market, dst)
	if err != nil {
		h.logFailure(r, "withdraw", user, market, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user":       user.Hex(),
		"market":     market.Hex(),
		"kind":       dst.String(),
		"amount_out": out.String(),
	})
}

type swapRequest struct {
	User   string `json:"user"`
	Market string `json:"market"`
	Src    string `json:"src"`
	Amount string `json:"amount"`
	Dst    string `json:"dst"`
}

// Swap deposits, converts, and withdraws in one locked operation.
// POST /api/ledger/swap
func (h *LedgerHandler) Swap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, market, err := parseEntry(req.User, req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, err := domain.ParseTokenKind(req.Src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dst, err := domain.ParseTokenKind(req.Dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.ledger.Swap(r.Context(), user, market, src, amount, dst)
	if err != nil {
		h.logFailure(r, "swap", user, market, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user":       user.Hex(),
		"market":     market.Hex(),
		"src":        src.String(),
		"dst":        dst.String(),
		"amount_in":  amount.String(),
		"amount_out": out.String(),
	})
}

func parseEntry(user, market string) (common.Address, common.Address, error) {
	u, err := parseAddress(user)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	m, err := parseAddress(market)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return u, m, nil
}

// logFailure records unexpected errors; expected domain errors are left to
// the response mapping.
func (h *LedgerHandler) logFailure(r *http.Request, op string, user, market common.Address, err error) {
	if statusFromError(err) != http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("user", user.Hex()),
		slog.String("market", market.Hex()),
		slog.String("error", err.Error()),
	)
}
