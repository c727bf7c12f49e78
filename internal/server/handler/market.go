package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// RegistryService defines the methods the market handler requires from the
// registry. It is declared locally so the handler package does not depend on
// the concrete implementation.
type RegistryService interface {
	Register(ctx context.Context, caller, marketID common.Address) (domain.MarketInfo, error)
	Get(ctx context.Context, marketID common.Address) (domain.MarketInfo, error)
	Resolve(ctx context.Context, marketID common.Address, kind domain.TokenKind) (common.Address, error)
	List(ctx context.Context) ([]domain.MarketInfo, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given registry and logger.
func NewMarketHandler(registry RegistryService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		registry: registry,
		logger:   logger,
	}
}

// registerRequest is the body for market registration. Caller is the address
// claiming registration privilege.
type registerRequest struct {
	Caller string `json:"caller"`
}

// RegisterMarket discovers the market's token set from the venue and persists
// the immutable record.
// POST /api/markets/{id}/register
func (h *MarketHandler) RegisterMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathAddress(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.registry.Register(r.Context(), caller, marketID)
	if err != nil {
		if statusFromError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: register market failed",
				slog.String("market", marketID.Hex()),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// GetMarket returns a single market record by its contract address.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathAddress(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.registry.Get(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// ListMarkets returns all registered markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"total":   len(markets),
	})
}

// ResolveToken returns the token contract backing one slot of a market. An
// unregistered market resolves to the zero address rather than an error.
// GET /api/markets/{id}/tokens/{kind}
func (h *MarketHandler) ResolveToken(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathAddress(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := domain.ParseTokenKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.registry.Resolve(r.Context(), marketID, kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"market": marketID.Hex(),
		"kind":   kind.String(),
		"token":  token.Hex(),
	})
}
