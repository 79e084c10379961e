package risk

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/modules/ledger"
)

// Handler handles risk HTTP requests
type Handler struct {
	scorer *Scorer
	log    zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(scorer *Scorer, log zerolog.Logger) *Handler {
	return &Handler{
		scorer: scorer,
		log:    log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetScore handles GET /score - the combined risk assessment.
func (h *Handler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	entityIDs, err := ledger.ParseEntityIDs(r.URL.Query()["entity_ids"])
	if err != nil {
		http.Error(w, "Invalid entity_ids", http.StatusBadRequest)
		return
	}

	score, err := h.scorer.Score(time.Now().UTC(), entityIDs)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate risk score")
		http.Error(w, "Failed to calculate risk score", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(score)
}
