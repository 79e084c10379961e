package ledger

import "database/sql"

// Amounts are stored as TEXT and parsed into decimals; aggregation
// happens in Go so currency arithmetic never passes through REAL.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY,
    tx_date TEXT NOT NULL,
    amount TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    counterparty TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    is_anomaly INTEGER NOT NULL DEFAULT 0,
    is_uncategorized INTEGER NOT NULL DEFAULT 0,
    batch_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(tx_date);
CREATE INDEX IF NOT EXISTS idx_transactions_entity ON transactions(entity_id);

CREATE TABLE IF NOT EXISTS planned_documents (
    id INTEGER PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('receivable', 'payable')),
    due_date TEXT NOT NULL,
    amount TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    counterparty TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_planned_due ON planned_documents(due_date);

CREATE TABLE IF NOT EXISTS arap_snapshot (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL CHECK (type IN ('AR', 'AP')),
    counterparty TEXT NOT NULL,
    amount TEXT NOT NULL,
    overdue_days INTEGER NOT NULL DEFAULT 0,
    entity_id INTEGER NOT NULL,
    snapshot_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY,
    doc_date TEXT NOT NULL,
    counterparty TEXT NOT NULL,
    revenue TEXT NOT NULL,
    entity_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(doc_date);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
