package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"backtest_accounts/internal/core"
	apperrors "backtest_accounts/pkg/errors"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	trading_date TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	checksum     BLOB NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// SQLiteStore keeps one portfolio snapshot per trading date in a local
// SQLite database. Writes run in a serializable transaction and carry a
// checksum that is verified on load.
type SQLiteStore struct {
	db    *sql.DB
	retry retrypolicy.RetryPolicy[any]
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	// SQLITE_BUSY surfaces as a transient error under WAL; retry with backoff.
	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(50*time.Millisecond, time.Second).
		WithMaxRetries(3).
		Build()

	return &SQLiteStore{db: db, retry: retry}, nil
}

// SaveSnapshot upserts the snapshot under its trading date.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *core.PortfolioSnapshot) error {
	return failsafe.Run(func() error {
		return s.saveOnce(ctx, snapshot)
	}, s.retry)
}

func (s *SQLiteStore) saveOnce(ctx context.Context, snapshot *core.PortfolioSnapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Validate JSON (round-trip test)
	var testSnapshot core.PortfolioSnapshot
	if err := json.Unmarshal(data, &testSnapshot); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}

	checksum := sha256.Sum256(data)
	query := `INSERT OR REPLACE INTO snapshots (trading_date, data, checksum, updated_at) VALUES (?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		snapshot.TradingDate.Format("2006-01-02"), string(data), checksum[:], time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write snapshot to db: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot returns the most recent snapshot, nil when none exists.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*core.PortfolioSnapshot, error) {
	query := `SELECT data, checksum FROM snapshots ORDER BY trading_date DESC LIMIT 1`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot from db: %w", err)
	}

	computedChecksum := sha256.Sum256([]byte(data))
	if !bytes.Equal(storedChecksum, computedChecksum[:]) {
		return nil, fmt.Errorf("checksum verification failed: %w", apperrors.ErrSnapshotCorrupted)
	}

	var snapshot core.PortfolioSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// LoadSnapshotAt returns the snapshot of a specific trading date, nil when
// that date was never persisted.
func (s *SQLiteStore) LoadSnapshotAt(ctx context.Context, date time.Time) (*core.PortfolioSnapshot, error) {
	query := `SELECT data, checksum FROM snapshots WHERE trading_date = ?`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query, core.Day(date).Format("2006-01-02")).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot from db: %w", err)
	}

	computedChecksum := sha256.Sum256([]byte(data))
	if !bytes.Equal(storedChecksum, computedChecksum[:]) {
		return nil, fmt.Errorf("checksum verification failed: %w", apperrors.ErrSnapshotCorrupted)
	}

	var snapshot core.PortfolioSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
