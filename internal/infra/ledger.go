package infra

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure the sqlite driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

const ledgerDBName = "runs.db"

// SQLiteLedger implements domain.RunLedger in a local SQLite database.
// One row per optimization run plus one row per mutation, so the restore
// command can locate every backup without re-scanning the backup tree.
type SQLiteLedger struct {
	db     *sql.DB
	dbPath string
}

// NewRunLedger opens (or creates) the ledger database under dataDir.
func NewRunLedger(dataDir string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, ledgerDBName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	l := &SQLiteLedger{db: db, dbPath: dbPath}
	if err := l.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		profile TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS mutations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		target_path TEXT NOT NULL,
		backup_path TEXT NOT NULL DEFAULT '',
		applied_at INTEGER NOT NULL,
		reboot_required INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record stores a run and its mutations in one transaction.
func (l *SQLiteLedger) Record(rec domain.RunRecord) (int64, error) {
	fpJSON, err := json.Marshal(rec.Fingerprint)
	if err != nil {
		return 0, err
	}
	profJSON, err := json.Marshal(rec.Profile)
	if err != nil {
		return 0, err
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (started_at, fingerprint, profile) VALUES (?, ?, ?)`,
		rec.StartedAt.Unix(), string(fpJSON), string(profJSON))
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, m := range rec.Mutations {
		rebooted := 0
		if m.RebootRequired {
			rebooted = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO mutations (run_id, name, target_path, backup_path, applied_at, reboot_required)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, m.Name, m.TargetPath, m.BackupPath, m.AppliedAt.Unix(), rebooted); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// LastRun returns the most recent run, or nil if none recorded.
func (l *SQLiteLedger) LastRun() (*domain.RunRecord, error) {
	row := l.db.QueryRow(
		`SELECT id, started_at, fingerprint, profile FROM runs ORDER BY id DESC LIMIT 1`)

	var rec domain.RunRecord
	var startedAt int64
	var fpJSON, profJSON string
	if err := row.Scan(&rec.ID, &startedAt, &fpJSON, &profJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.StartedAt = time.Unix(startedAt, 0)
	if err := json.Unmarshal([]byte(fpJSON), &rec.Fingerprint); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profJSON), &rec.Profile); err != nil {
		return nil, err
	}

	rows, err := l.db.Query(
		`SELECT name, target_path, backup_path, applied_at, reboot_required
		 FROM mutations WHERE run_id = ? ORDER BY id`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.ConfigMutation
		var appliedAt int64
		var rebooted int
		if err := rows.Scan(&m.Name, &m.TargetPath, &m.BackupPath, &appliedAt, &rebooted); err != nil {
			return nil, err
		}
		m.AppliedAt = time.Unix(appliedAt, 0)
		m.RebootRequired = rebooted == 1
		rec.Mutations = append(rec.Mutations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close releases the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Ensure SQLiteLedger implements domain.RunLedger.
var _ domain.RunLedger = (*SQLiteLedger)(nil)
