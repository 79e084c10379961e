package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles ledger HTTP requests
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

type importTransactionsRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// HandleImportTransactions handles POST /transactions - bulk import of
// normalized transaction records. Parsing of source spreadsheets is the
// caller's concern; this endpoint accepts already-mapped rows.
func (h *Handler) HandleImportTransactions(w http.ResponseWriter, r *http.Request) {
	var req importTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		http.Error(w, "No transactions provided", http.StatusBadRequest)
		return
	}
	for _, tx := range req.Transactions {
		if !isValidDate(tx.Date) {
			http.Error(w, "Invalid transaction date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	batchID := uuid.NewString()
	inserted, err := h.repo.InsertTransactions(req.Transactions, batchID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to import transactions")
		http.Error(w, "Failed to import transactions", http.StatusInternalServerError)
		return
	}

	h.log.Info().Int("imported", inserted).Str("batch_id", batchID).Msg("Transactions imported")
	writeJSON(w, map[string]interface{}{
		"imported": inserted,
		"batch_id": batchID,
	})
}

type importPlannedRequest struct {
	Documents []PlannedDocument `json:"documents"`
}

// HandleImportPlanned handles POST /planned - bulk import of confirmed
// future receivables/payables.
func (h *Handler) HandleImportPlanned(w http.ResponseWriter, r *http.Request) {
	var req importPlannedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		http.Error(w, "No documents provided", http.StatusBadRequest)
		return
	}
	for _, doc := range req.Documents {
		if !isValidDate(doc.DueDate) {
			http.Error(w, "Invalid due date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if doc.Kind != KindReceivable && doc.Kind != KindPayable {
			http.Error(w, "Document kind must be receivable or payable", http.StatusBadRequest)
			return
		}
	}

	inserted, err := h.repo.InsertPlannedDocuments(req.Documents)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to import planned documents")
		http.Error(w, "Failed to import planned documents", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"imported": inserted})
}

type importARAPRequest struct {
	Items []ARAPItem `json:"items"`
}

// HandleImportARAP handles POST /arap - replaces the open-item aging
// snapshot with a fresh one.
func (h *Handler) HandleImportARAP(w http.ResponseWriter, r *http.Request) {
	var req importARAPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, item := range req.Items {
		if item.Type != "AR" && item.Type != "AP" {
			http.Error(w, "Snapshot item type must be AR or AP", http.StatusBadRequest)
			return
		}
	}

	snapshotDate := time.Now().UTC().Format(dateLayout)
	inserted, err := h.repo.ReplaceARAPSnapshot(req.Items, snapshotDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to replace snapshot")
		http.Error(w, "Failed to replace snapshot", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"imported":      inserted,
		"snapshot_date": snapshotDate,
	})
}

type importSalesRequest struct {
	Sales []Sale `json:"sales"`
}

// HandleImportSales handles POST /sales - bulk import of revenue facts.
func (h *Handler) HandleImportSales(w http.ResponseWriter, r *http.Request) {
	var req importSalesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Sales) == 0 {
		http.Error(w, "No sales provided", http.StatusBadRequest)
		return
	}
	for _, s := range req.Sales {
		if !isValidDate(s.DocDate) {
			http.Error(w, "Invalid doc date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	inserted, err := h.repo.InsertSales(req.Sales)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to import sales")
		http.Error(w, "Failed to import sales", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"imported": inserted})
}

// HandleGetTransactions handles GET /transactions - list with optional limit.
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 10000 {
			http.Error(w, "Invalid limit. Must be 1-10000", http.StatusBadRequest)
			return
		}
		limit = &l
	}

	txs, err := h.repo.GetTransactions(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get transactions")
		http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}

	writeJSON(w, txs)
}

// HandleGetSummary handles GET /summary - inflow/outflow totals and
// data-quality counts over the whole book.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	entityIDs, err := ParseEntityIDs(r.URL.Query()["entity_ids"])
	if err != nil {
		http.Error(w, "Invalid entity_ids", http.StatusBadRequest)
		return
	}

	txs, err := h.repo.GetTransactions(nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get transactions for summary")
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}

	inScope := func(tx Transaction) bool {
		if len(entityIDs) == 0 {
			return true
		}
		for _, id := range entityIDs {
			if tx.EntityID == id {
				return true
			}
		}
		return false
	}

	inflow := decimal.Zero
	outflow := decimal.Zero
	count := 0
	for _, tx := range txs {
		if !inScope(tx) {
			continue
		}
		count++
		if tx.Amount.IsNegative() {
			outflow = outflow.Add(tx.Amount.Abs())
		} else {
			inflow = inflow.Add(tx.Amount)
		}
	}

	quality, err := h.repo.QualityCounts(entityIDs)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get quality counts")
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"total_transactions": count,
		"total_inflow":       inflow,
		"total_outflow":      outflow,
		"net_cash_flow":      inflow.Sub(outflow),
		"quality":            quality,
	})
}

// ParseEntityIDs parses repeated or comma-separated entity_ids query values.
func ParseEntityIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// isValidDate validates YYYY-MM-DD format
func isValidDate(dateStr string) bool {
	_, err := time.Parse(dateLayout, dateStr)
	return err == nil
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
