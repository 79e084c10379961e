package recommendations

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/modules/ledger"
)

// Handler handles recommendation HTTP requests
type Handler struct {
	engine *Engine
	log    zerolog.Logger
}

// NewHandler creates a new recommendations handler
func NewHandler(engine *Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "recommendations").Logger(),
	}
}

// HandleGetRecommendations handles GET / - the prioritized action list.
func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	entityIDs, err := ledger.ParseEntityIDs(r.URL.Query()["entity_ids"])
	if err != nil {
		http.Error(w, "Invalid entity_ids", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Generate(time.Now().UTC(), entityIDs)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate recommendations")
		http.Error(w, "Failed to generate recommendations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
