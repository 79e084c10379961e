package forecast

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/modules/ledger"
)

// Handler handles forecast HTTP requests
type Handler struct {
	engine *Engine
	log    zerolog.Logger
}

// NewHandler creates a new forecast handler
func NewHandler(engine *Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "forecast").Logger(),
	}
}

// HandleGetForecast handles GET /cashflow - the cash flow forecast.
// Query: horizon_days (default 14), entity_ids, include_uncertainty
// (default true).
func (h *Handler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	req := Request{
		HorizonDays:        14,
		IncludeUncertainty: true,
	}

	if horizonStr := r.URL.Query().Get("horizon_days"); horizonStr != "" {
		horizon, err := strconv.Atoi(horizonStr)
		if err != nil || horizon < 1 || horizon > MaxHorizonDays {
			http.Error(w, "Invalid horizon_days. Must be 1-90", http.StatusBadRequest)
			return
		}
		req.HorizonDays = horizon
	}

	if uncStr := r.URL.Query().Get("include_uncertainty"); uncStr != "" {
		unc, err := strconv.ParseBool(uncStr)
		if err != nil {
			http.Error(w, "Invalid include_uncertainty", http.StatusBadRequest)
			return
		}
		req.IncludeUncertainty = unc
	}

	entityIDs, err := ledger.ParseEntityIDs(r.URL.Query()["entity_ids"])
	if err != nil {
		http.Error(w, "Invalid entity_ids", http.StatusBadRequest)
		return
	}
	req.EntityIDs = entityIDs

	result, err := h.engine.Forecast(time.Now().UTC(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate forecast")
		http.Error(w, "Failed to generate forecast", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
