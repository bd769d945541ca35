package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// ChatMessage is one message in a client conversation
type ChatMessage struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	Sender      string    `json:"sender"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddMessage appends a message to the client's conversation. An empty
// contentType means a plain text message.
func (s *Storage) AddMessage(clientID int64, sender, contentType, content string) (int64, error) {
	if contentType == "" {
		contentType = "text"
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (client_id, sender, content_type, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		clientID, sender, contentType, content, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("add message: %w", err)
	}
	return res.LastInsertId()
}

// GetTranscript returns the client's messages in chronological order.
// limit <= 0 means no limit.
func (s *Storage) GetTranscript(clientID int64, limit int) ([]ChatMessage, error) {
	query := `SELECT id, client_id, sender, content_type, content, created_at
		FROM messages WHERE client_id = ? ORDER BY id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		// Take the most recent N, still returned oldest first.
		query = `SELECT id, client_id, sender, content_type, content, created_at FROM (
			SELECT id, client_id, sender, content_type, content, created_at
			FROM messages WHERE client_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		rows, err = s.db.Query(query, clientID, limit)
	} else {
		rows, err = s.db.Query(query, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Sender, &m.ContentType, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns how many messages the client has
func (s *Storage) MessageCount(clientID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE client_id = ?`, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("message count: %w", err)
	}
	return n, nil
}
