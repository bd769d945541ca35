// Storage module - SQLite-backed message and record stores

package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Senders of chat messages
const (
	SenderClient   = "client"
	SenderOperator = "operator"
)

// Record sources
const (
	SourceAgent  = "agent"
	SourceManual = "manual"
)

// ManualMod records that a human explicitly edited a field. Its presence is
// an advisory "do not silently overwrite" signal to the extraction prompts.
type ManualMod struct {
	ModifiedAt time.Time `json:"modified_at"`
	ModifiedBy string    `json:"modified_by"`
}

// ManualModMap maps a field path (e.g. "phone", "queries.0.brand",
// "task_12_due_date") to its manual modification marker
type ManualModMap map[string]ManualMod

// Storage wraps the SQLite database
type Storage struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath.
// ":memory:" gives an in-memory database for tests.
func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[Storage] Opened: %s", dbPath)
	return s, nil
}

func (s *Storage) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			sender TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_id, id)`,
		`CREATE TABLE IF NOT EXISTS dossiers (
			client_id INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS car_interests (
			client_id INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			description TEXT NOT NULL,
			due_date DATETIME,
			priority TEXT NOT NULL DEFAULT 'normal',
			is_completed INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'agent',
			extra_data TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_client ON tasks(client_id, is_completed)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateClient inserts a client and returns its id
func (s *Storage) CreateClient(name string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO clients (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create client: %w", err)
	}
	return res.LastInsertId()
}

// ClientName returns the client's display name, or "" if unknown
func (s *Storage) ClientName(clientID int64) (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM clients WHERE id = ?`, clientID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client name: %w", err)
	}
	return name, nil
}
