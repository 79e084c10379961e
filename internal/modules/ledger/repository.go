package ledger

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"
const timestampLayout = "2006-01-02 15:04:05"

// Repository is the fact store behind every analytics query. Amounts
// are kept in decimal end to end: rows are scanned as TEXT and summed
// in Go instead of delegating arithmetic to SQLite's REAL type.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// entityClause builds the optional entity filter fragment.
func entityClause(ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return " AND entity_id IN (" + strings.Join(placeholders, ",") + ")", args
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	return d, nil
}

// InsertTransactions bulk-inserts transactions under one import batch.
func (r *Repository) InsertTransactions(txs []Transaction, batchID string) (int, error) {
	dbTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO transactions (tx_date, amount, entity_id, counterparty, category, is_anomaly, is_uncategorized, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(timestampLayout)
	inserted := 0
	for _, tx := range txs {
		uncategorized := 0
		if strings.TrimSpace(tx.Category) == "" {
			uncategorized = 1
		}
		if _, err := stmt.Exec(tx.Date, tx.Amount.String(), tx.EntityID, tx.Counterparty, tx.Category, uncategorized, batchID, createdAt); err != nil {
			return 0, fmt.Errorf("failed to insert transaction: %w", err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, nil
}

// InsertPlannedDocuments bulk-inserts planned receivables/payables.
func (r *Repository) InsertPlannedDocuments(docs []PlannedDocument) (int, error) {
	dbTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO planned_documents (kind, due_date, amount, entity_id, counterparty, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(timestampLayout)
	inserted := 0
	for _, doc := range docs {
		if doc.Kind != KindReceivable && doc.Kind != KindPayable {
			return 0, fmt.Errorf("unknown planned document kind %q", doc.Kind)
		}
		if _, err := stmt.Exec(doc.Kind, doc.DueDate, doc.Amount.String(), doc.EntityID, doc.Counterparty, createdAt); err != nil {
			return 0, fmt.Errorf("failed to insert planned document: %w", err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, nil
}

// ReplaceARAPSnapshot swaps the open-item aging snapshot for a fresh one.
func (r *Repository) ReplaceARAPSnapshot(items []ARAPItem, snapshotDate string) (int, error) {
	dbTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec("DELETE FROM arap_snapshot"); err != nil {
		return 0, fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := dbTx.Prepare(`
		INSERT INTO arap_snapshot (type, counterparty, amount, overdue_days, entity_id, snapshot_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		if item.Type != "AR" && item.Type != "AP" {
			return 0, fmt.Errorf("unknown snapshot item type %q", item.Type)
		}
		if _, err := stmt.Exec(item.Type, item.Counterparty, item.Amount.String(), item.OverdueDays, item.EntityID, snapshotDate); err != nil {
			return 0, fmt.Errorf("failed to insert snapshot item: %w", err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return inserted, nil
}

// InsertSales bulk-inserts revenue facts.
func (r *Repository) InsertSales(sales []Sale) (int, error) {
	dbTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO sales (doc_date, counterparty, revenue, entity_id)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range sales {
		if _, err := stmt.Exec(s.DocDate, s.Counterparty, s.Revenue.String(), s.EntityID); err != nil {
			return 0, fmt.Errorf("failed to insert sale: %w", err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, nil
}

// GetTransactions lists transactions, newest first, with an optional limit.
func (r *Repository) GetTransactions(limit *int) ([]Transaction, error) {
	query := `
		SELECT id, tx_date, amount, entity_id, counterparty, category, is_anomaly, is_uncategorized, batch_id, created_at
		FROM transactions
		ORDER BY tx_date DESC, id DESC
	`
	if limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *limit)
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var amount, createdAt string
		if err := rows.Scan(&tx.ID, &tx.Date, &amount, &tx.EntityID, &tx.Counterparty, &tx.Category, &tx.IsAnomaly, &tx.IsUncategorized, &tx.BatchID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		d, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		tx.Amount = d
		tx.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// DailyNetFlow returns the net signed flow per calendar day within the
// range, ascending by date. Days with no transactions are absent.
func (r *Repository) DailyNetFlow(start, end time.Time, entityIDs []int64) ([]DailyFlow, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT tx_date, amount
		FROM transactions
		WHERE tx_date >= ? AND tx_date <= ?` + clause + `
		ORDER BY tx_date ASC
	`
	queryArgs := append([]interface{}{start.Format(dateLayout), end.Format(dateLayout)}, args...)

	rows, err := r.db.Query(query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily net flow: %w", err)
	}
	defer rows.Close()

	var flows []DailyFlow
	for rows.Next() {
		var dateStr, amountStr string
		if err := rows.Scan(&dateStr, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed date %q: %w", dateStr, err)
		}
		if n := len(flows); n > 0 && flows[n-1].Date.Equal(date) {
			flows[n-1].Amount = flows[n-1].Amount.Add(amount)
		} else {
			flows = append(flows, DailyFlow{Date: date, Amount: amount})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flow rows: %w", err)
	}
	return flows, nil
}

// CurrentBalance returns the signed sum of all recorded transactions.
func (r *Repository) CurrentBalance(entityIDs []int64) (decimal.Decimal, error) {
	clause, args := entityClause(entityIDs)
	query := "SELECT amount FROM transactions WHERE 1=1" + clause

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return decimal.Zero, err
		}
		balance = balance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amounts: %w", err)
	}
	return balance, nil
}

// PlannedReceivables returns planned receivable totals keyed by due date.
func (r *Repository) PlannedReceivables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error) {
	return r.plannedTotals(KindReceivable, start, end, entityIDs)
}

// PlannedPayables returns planned payable totals keyed by due date.
func (r *Repository) PlannedPayables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error) {
	return r.plannedTotals(KindPayable, start, end, entityIDs)
}

func (r *Repository) plannedTotals(kind string, start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT due_date, amount
		FROM planned_documents
		WHERE kind = ? AND due_date >= ? AND due_date <= ?` + clause + `
		ORDER BY due_date ASC
	`
	queryArgs := append([]interface{}{kind, start.Format(dateLayout), end.Format(dateLayout)}, args...)

	rows, err := r.db.Query(query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query planned documents: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var dueDate, amountStr string
		if err := rows.Scan(&dueDate, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan planned row: %w", err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, err
		}
		totals[dueDate] = totals[dueDate].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating planned rows: %w", err)
	}
	return totals, nil
}

// PayableTotalsDueBy returns the per-day payable totals due within the
// range, ascending by due date. Feeds the deferral recommendations.
func (r *Repository) PayableTotalsDueBy(start, end time.Time, entityIDs []int64) ([]PlannedTotal, error) {
	totals, err := r.PlannedPayables(start, end, entityIDs)
	if err != nil {
		return nil, err
	}

	out := make([]PlannedTotal, 0, len(totals))
	for dueDate, total := range totals {
		out = append(out, PlannedTotal{DueDate: dueDate, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	return out, nil
}

// ReceivablesAging returns the per-counterparty open AR breakdown by
// overdue bucket (current, 1-30, 31-60, 60+ days).
func (r *Repository) ReceivablesAging(entityIDs []int64) ([]AgingRow, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT counterparty, amount, overdue_days
		FROM arap_snapshot
		WHERE type = 'AR'` + clause + `
		ORDER BY counterparty ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aging snapshot: %w", err)
	}
	defer rows.Close()

	byCounterparty := make(map[string]*AgingRow)
	var order []string
	for rows.Next() {
		var counterparty, amountStr string
		var overdueDays int
		if err := rows.Scan(&counterparty, &amountStr, &overdueDays); err != nil {
			return nil, fmt.Errorf("failed to scan aging row: %w", err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, err
		}

		row, ok := byCounterparty[counterparty]
		if !ok {
			row = &AgingRow{Counterparty: counterparty}
			byCounterparty[counterparty] = row
			order = append(order, counterparty)
		}
		row.Total = row.Total.Add(amount)
		switch {
		case overdueDays <= 0:
			row.Current = row.Current.Add(amount)
		case overdueDays <= 30:
			row.Overdue1To30 = row.Overdue1To30.Add(amount)
		case overdueDays <= 60:
			row.Overdue31To60 = row.Overdue31To60.Add(amount)
		default:
			row.Overdue60Plus = row.Overdue60Plus.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aging rows: %w", err)
	}

	aging := make([]AgingRow, 0, len(order))
	for _, counterparty := range order {
		aging = append(aging, *byCounterparty[counterparty])
	}
	return aging, nil
}

// QualityCounts returns anomaly and uncategorized counts plus the
// uncategorized percentage over all transactions in scope.
func (r *Repository) QualityCounts(entityIDs []int64) (QualityCounts, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT
			COALESCE(SUM(is_anomaly), 0),
			COALESCE(SUM(is_uncategorized), 0),
			COUNT(*)
		FROM transactions
		WHERE 1=1` + clause

	var counts QualityCounts
	if err := r.db.QueryRow(query, args...).Scan(&counts.AnomalyCount, &counts.UncategorizedCount, &counts.TotalCount); err != nil {
		return QualityCounts{}, fmt.Errorf("failed to query quality counts: %w", err)
	}
	if counts.TotalCount > 0 {
		counts.UncategorizedPct = float64(counts.UncategorizedCount) / float64(counts.TotalCount) * 100
	}
	return counts, nil
}

// OutflowTotal returns the sum of absolute negative flows in the range.
func (r *Repository) OutflowTotal(start, end time.Time, entityIDs []int64) (decimal.Decimal, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT amount
		FROM transactions
		WHERE tx_date >= ? AND tx_date <= ?` + clause
	queryArgs := append([]interface{}{start.Format(dateLayout), end.Format(dateLayout)}, args...)

	rows, err := r.db.Query(query, queryArgs...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query outflow: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return decimal.Zero, err
		}
		if amount.IsNegative() {
			total = total.Add(amount.Abs())
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amounts: %w", err)
	}
	return total, nil
}

// TopCustomersByRevenue returns the n largest counterparties by revenue
// over the range, descending. Ties break on counterparty name so the
// output is stable across runs.
func (r *Repository) TopCustomersByRevenue(start, end time.Time, entityIDs []int64, n int) ([]CustomerRevenue, error) {
	clause, args := entityClause(entityIDs)
	query := `
		SELECT counterparty, revenue
		FROM sales
		WHERE doc_date >= ? AND doc_date <= ?` + clause
	queryArgs := append([]interface{}{start.Format(dateLayout), end.Format(dateLayout)}, args...)

	rows, err := r.db.Query(query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	byCounterparty := make(map[string]decimal.Decimal)
	for rows.Next() {
		var counterparty, revenueStr string
		if err := rows.Scan(&counterparty, &revenueStr); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		revenue, err := parseAmount(revenueStr)
		if err != nil {
			return nil, err
		}
		byCounterparty[counterparty] = byCounterparty[counterparty].Add(revenue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	customers := make([]CustomerRevenue, 0, len(byCounterparty))
	for counterparty, revenue := range byCounterparty {
		customers = append(customers, CustomerRevenue{Counterparty: counterparty, Revenue: revenue})
	}
	sort.Slice(customers, func(i, j int) bool {
		if !customers[i].Revenue.Equal(customers[j].Revenue) {
			return customers[i].Revenue.GreaterThan(customers[j].Revenue)
		}
		return customers[i].Counterparty < customers[j].Counterparty
	})
	if n > 0 && len(customers) > n {
		customers = customers[:n]
	}
	return customers, nil
}

// TotalRevenue returns the summed revenue over the range.
func (r *Repository) TotalRevenue(start, end time.Time, entityIDs []int64) (decimal.Decimal, error) {
	customers, err := r.TopCustomersByRevenue(start, end, entityIDs, 0)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range customers {
		total = total.Add(c.Revenue)
	}
	return total, nil
}
