package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// PositionService is the read side of the ledger needed by this handler.
type PositionService interface {
	GetPosition(ctx context.Context, user, market common.Address) (domain.Position, error)
}

// PositionHandler serves position lookups.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// positionResponse renders a position with the amount as a decimal string.
type positionResponse struct {
	User    string `json:"user"`
	Market  string `json:"market"`
	Kind    string `json:"kind"`
	Amount  string `json:"amount"`
	Empty   bool   `json:"empty"`
	Updated string `json:"updated_at,omitempty"`
}

func renderPosition(p domain.Position) positionResponse {
	resp := positionResponse{
		User:   p.User.Hex(),
		Market: p.MarketID.Hex(),
		Kind:   p.Kind.String(),
		Amount: p.AmountOrZero().String(),
		Empty:  p.Empty(),
	}
	if !p.UpdatedAt.IsZero() {
		resp.Updated = p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// GetPosition returns the user's position in a market. Absent records come
// back as the empty position, never as 404.
// GET /api/positions/{user}/{market}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	user, err := pathAddress(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	market, err := pathAddress(r, "market")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.positions.GetPosition(r.Context(), user, market)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("user", user.Hex()),
			slog.String("market", market.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	writeJSON(w, http.StatusOK, renderPosition(pos))
}
