// Package store persists staged imports to a local sqlite database for
// review: listing, include/exclude toggling, and commit marking. Committed
// imports are immutable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

// Store wraps the staging database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the staging database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize staging schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		parser_id TEXT NOT NULL,
		source_file TEXT NOT NULL,
		institution TEXT,
		account_type_hint TEXT,
		created_at TEXT NOT NULL,
		committed INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		import_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
		date_posted TEXT NOT NULL,
		amount REAL NOT NULL,
		payee TEXT NOT NULL,
		memo TEXT,
		external_id TEXT,
		symbol TEXT,
		quantity REAL,
		price REAL,
		fees REAL,
		kind TEXT NOT NULL,
		hash_key TEXT,
		include INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS balances (
		id TEXT PRIMARY KEY,
		import_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
		as_of_date TEXT NOT NULL,
		balance REAL NOT NULL,
		rate_apr REAL,
		rate_scale INTEGER,
		source_account_label TEXT
	);
	CREATE TABLE IF NOT EXISTS holdings (
		id TEXT PRIMARY KEY,
		import_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
		as_of_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		market_value REAL,
		include INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_import ON transactions(import_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(hash_key);
	CREATE INDEX IF NOT EXISTS idx_balances_import ON balances(import_id);
	CREATE INDEX IF NOT EXISTS idx_holdings_import ON holdings(import_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ImportSummary is one row of the review listing.
type ImportSummary struct {
	ID           string
	ParserID     string
	SourceFile   string
	Institution  string
	CreatedAt    time.Time
	Committed    bool
	Transactions int
	Balances     int
	Holdings     int
}

// SaveImport stores a staged import and all of its records in a single
// transaction.
func (s *Store) SaveImport(ctx context.Context, imp *domain.StagedImport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO imports (id, parser_id, source_file, institution, account_type_hint, created_at, committed)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		imp.ID, imp.ParserID, imp.SourceFile, imp.Institution, string(imp.AccountTypeHint),
		imp.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert import %s: %w", imp.ID, err)
	}

	for _, txn := range imp.Transactions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (id, import_id, date_posted, amount, payee, memo, external_id, symbol, quantity, price, fees, kind, hash_key, include)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, imp.ID, txn.DatePosted, txn.Amount, txn.Payee, txn.Memo, txn.ExternalID,
			txn.Symbol, txn.Quantity, txn.Price, txn.Fees, string(txn.Kind), txn.HashKey, boolInt(txn.Include))
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	for _, bal := range imp.Balances {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (id, import_id, as_of_date, balance, rate_apr, rate_scale, source_account_label)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bal.ID, imp.ID, bal.AsOfDate, bal.Balance, bal.InterestRateAPR, bal.InterestRateScale,
			string(bal.SourceAccountLabel))
		if err != nil {
			return fmt.Errorf("failed to insert balance %s: %w", bal.ID, err)
		}
	}

	for _, h := range imp.Holdings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO holdings (id, import_id, as_of_date, symbol, quantity, market_value, include)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			h.ID, imp.ID, h.AsOfDate, h.Symbol, h.Quantity, h.MarketValue, boolInt(h.Include))
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// ListImports returns summaries of every stored import, newest first.
func (s *Store) ListImports(ctx context.Context) ([]ImportSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.parser_id, i.source_file, COALESCE(i.institution, ''), i.created_at, i.committed,
		       (SELECT COUNT(*) FROM transactions t WHERE t.import_id = i.id),
		       (SELECT COUNT(*) FROM balances b WHERE b.import_id = i.id),
		       (SELECT COUNT(*) FROM holdings h WHERE h.import_id = i.id)
		FROM imports i
		ORDER BY i.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var summaries []ImportSummary
	for rows.Next() {
		var sum ImportSummary
		var created string
		var committed int
		if err := rows.Scan(&sum.ID, &sum.ParserID, &sum.SourceFile, &sum.Institution, &created,
			&committed, &sum.Transactions, &sum.Balances, &sum.Holdings); err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339, created)
		sum.Committed = committed != 0
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// GetImport reassembles a full staged import by ID.
func (s *Store) GetImport(ctx context.Context, id string) (*domain.StagedImport, error) {
	imp := &domain.StagedImport{
		Transactions: []domain.StagedTransaction{},
		Balances:     []domain.StagedBalance{},
		Holdings:     []domain.StagedHolding{},
	}

	var created, hint string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, parser_id, source_file, COALESCE(institution, ''), COALESCE(account_type_hint, ''), created_at
		 FROM imports WHERE id = ?`, id).
		Scan(&imp.ID, &imp.ParserID, &imp.SourceFile, &imp.Institution, &hint, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import %s: %w", id, err)
	}
	imp.AccountTypeHint = domain.AccountKind(hint)
	imp.CreatedAt, _ = time.Parse(time.RFC3339, created)

	txRows, err := s.db.QueryContext(ctx,
		`SELECT id, date_posted, amount, payee, COALESCE(memo, ''), COALESCE(external_id, ''),
		        COALESCE(symbol, ''), COALESCE(quantity, 0), COALESCE(price, 0), COALESCE(fees, 0),
		        kind, COALESCE(hash_key, ''), include
		 FROM transactions WHERE import_id = ? ORDER BY date_posted, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %s: %w", id, err)
	}
	defer txRows.Close()
	for txRows.Next() {
		var txn domain.StagedTransaction
		var kind string
		var include int
		if err := txRows.Scan(&txn.ID, &txn.DatePosted, &txn.Amount, &txn.Payee, &txn.Memo,
			&txn.ExternalID, &txn.Symbol, &txn.Quantity, &txn.Price, &txn.Fees,
			&kind, &txn.HashKey, &include); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Kind = domain.TransactionKind(kind)
		txn.Include = include != 0
		imp.Transactions = append(imp.Transactions, txn)
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}

	balRows, err := s.db.QueryContext(ctx,
		`SELECT id, as_of_date, balance, COALESCE(rate_apr, 0), COALESCE(rate_scale, 0),
		        COALESCE(source_account_label, '')
		 FROM balances WHERE import_id = ? ORDER BY as_of_date, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances for %s: %w", id, err)
	}
	defer balRows.Close()
	for balRows.Next() {
		var bal domain.StagedBalance
		var label string
		if err := balRows.Scan(&bal.ID, &bal.AsOfDate, &bal.Balance, &bal.InterestRateAPR,
			&bal.InterestRateScale, &label); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		bal.SourceAccountLabel = domain.AccountKind(label)
		imp.Balances = append(imp.Balances, bal)
	}
	if err := balRows.Err(); err != nil {
		return nil, err
	}

	hRows, err := s.db.QueryContext(ctx,
		`SELECT id, as_of_date, symbol, quantity, COALESCE(market_value, 0), include
		 FROM holdings WHERE import_id = ? ORDER BY symbol, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings for %s: %w", id, err)
	}
	defer hRows.Close()
	for hRows.Next() {
		var h domain.StagedHolding
		var include int
		if err := hRows.Scan(&h.ID, &h.AsOfDate, &h.Symbol, &h.Quantity, &h.MarketValue, &include); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.Include = include != 0
		imp.Holdings = append(imp.Holdings, h)
	}
	return imp, hRows.Err()
}

// SetTransactionInclude toggles the include flag on one staged transaction.
// Fails when the owning import is already committed.
func (s *Store) SetTransactionInclude(ctx context.Context, txnID string, include bool) error {
	committed, err := s.transactionImportCommitted(ctx, txnID)
	if err != nil {
		return err
	}
	if committed {
		return fmt.Errorf("transaction %s belongs to a committed import", txnID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET include = ? WHERE id = ?`, boolInt(include), txnID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txnID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("transaction %s not found", txnID)
	}
	return nil
}

func (s *Store) transactionImportCommitted(ctx context.Context, txnID string) (bool, error) {
	var committed int
	err := s.db.QueryRowContext(ctx,
		`SELECT i.committed FROM imports i JOIN transactions t ON t.import_id = i.id WHERE t.id = ?`,
		txnID).Scan(&committed)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("transaction %s not found", txnID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check commit state for %s: %w", txnID, err)
	}
	return committed != 0, nil
}

// CommitImport marks an import committed. A committed import rejects
// further include toggling and cannot be committed twice.
func (s *Store) CommitImport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE imports SET committed = 1 WHERE id = ? AND committed = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to commit import %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM imports WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check import %s: %w", id, err)
		}
		if exists == 0 {
			return fmt.Errorf("import %s not found", id)
		}
		return fmt.Errorf("import %s is already committed", id)
	}
	return nil
}

// DeleteImport removes an uncommitted import and all of its records.
func (s *Store) DeleteImport(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var committed int
	err = tx.QueryRowContext(ctx, `SELECT committed FROM imports WHERE id = ?`, id).Scan(&committed)
	if err == sql.ErrNoRows {
		return fmt.Errorf("import %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to check import %s: %w", id, err)
	}
	if committed != 0 {
		return fmt.Errorf("import %s is committed and cannot be deleted", id)
	}

	// Cascade deletes require the foreign_keys pragma, which is off by
	// default, so child rows are removed explicitly.
	for _, table := range []string{"transactions", "balances", "holdings"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE import_id = ?`, table), id); err != nil {
			return fmt.Errorf("failed to delete %s for import %s: %w", table, id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete import %s: %w", id, err)
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
