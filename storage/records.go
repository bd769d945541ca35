package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dossier is the client profile record. Fields holds the known profile
// attributes keyed by field name; nil values mean "explicitly cleared".
type Dossier struct {
	ClientID  int64                  `json:"client_id"`
	Fields    map[string]interface{} `json:"client_info"`
	Manual    ManualModMap           `json:"manual_modifications,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Query is one car interest search, a map of filter field to value
type Query map[string]interface{}

// CarInterest is the client's set of active car searches
type CarInterest struct {
	ClientID  int64        `json:"client_id"`
	Queries   []Query      `json:"queries"`
	Manual    ManualModMap `json:"manual_modifications,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Task is one follow-up item for the manager
type Task struct {
	ID          int64      `json:"id"`
	ClientID    int64      `json:"client_id"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
	IsCompleted bool       `json:"is_completed"`
	Source      string     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type dossierBlob struct {
	ClientInfo map[string]interface{} `json:"client_info"`
	Manual     ManualModMap           `json:"manual_modifications,omitempty"`
}

type interestBlob struct {
	Queries []Query      `json:"queries"`
	Manual  ManualModMap `json:"manual_modifications,omitempty"`
}

// GetDossier returns the client's dossier, or (nil, nil) if none exists yet
func (s *Storage) GetDossier(clientID int64) (*Dossier, error) {
	var data string
	var updatedAt time.Time
	err := s.db.QueryRow(`SELECT data, updated_at FROM dossiers WHERE client_id = ?`, clientID).
		Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dossier: %w", err)
	}

	var blob dossierBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return nil, fmt.Errorf("decode dossier: %w", err)
	}
	if blob.ClientInfo == nil {
		blob.ClientInfo = map[string]interface{}{}
	}
	return &Dossier{
		ClientID:  clientID,
		Fields:    blob.ClientInfo,
		Manual:    blob.Manual,
		UpdatedAt: updatedAt,
	}, nil
}

// SaveDossier upserts the client's dossier
func (s *Storage) SaveDossier(d *Dossier) error {
	data, err := json.Marshal(dossierBlob{ClientInfo: d.Fields, Manual: d.Manual})
	if err != nil {
		return fmt.Errorf("encode dossier: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO dossiers (client_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		d.ClientID, string(data), now)
	if err != nil {
		return fmt.Errorf("save dossier: %w", err)
	}
	d.UpdatedAt = now
	return nil
}

// SetDossierFieldManual writes one dossier field on behalf of a human
// operator and stamps it as manually modified
func (s *Storage) SetDossierFieldManual(clientID int64, field string, value interface{}, modifiedBy string) error {
	d, err := s.GetDossier(clientID)
	if err != nil {
		return err
	}
	if d == nil {
		d = &Dossier{ClientID: clientID, Fields: map[string]interface{}{}}
	}
	if d.Manual == nil {
		d.Manual = ManualModMap{}
	}
	d.Fields[field] = value
	d.Manual[field] = ManualMod{ModifiedAt: time.Now().UTC(), ModifiedBy: modifiedBy}
	return s.SaveDossier(d)
}

// GetInterest returns the client's car interest record, or (nil, nil) if
// none exists yet
func (s *Storage) GetInterest(clientID int64) (*CarInterest, error) {
	var data string
	var updatedAt time.Time
	err := s.db.QueryRow(`SELECT data, updated_at FROM car_interests WHERE client_id = ?`, clientID).
		Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interest: %w", err)
	}

	var blob interestBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return nil, fmt.Errorf("decode interest: %w", err)
	}
	return &CarInterest{
		ClientID:  clientID,
		Queries:   blob.Queries,
		Manual:    blob.Manual,
		UpdatedAt: updatedAt,
	}, nil
}

// SaveInterest upserts the client's car interest record
func (s *Storage) SaveInterest(ci *CarInterest) error {
	data, err := json.Marshal(interestBlob{Queries: ci.Queries, Manual: ci.Manual})
	if err != nil {
		return fmt.Errorf("encode interest: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO car_interests (client_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		ci.ClientID, string(data), now)
	if err != nil {
		return fmt.Errorf("save interest: %w", err)
	}
	ci.UpdatedAt = now
	return nil
}

// ListTasks returns the client's tasks ordered by id. Completed tasks are
// included only when includeCompleted is set.
func (s *Storage) ListTasks(clientID int64, includeCompleted bool) ([]Task, error) {
	query := `SELECT id, client_id, description, due_date, priority, is_completed, source, created_at, updated_at
		FROM tasks WHERE client_id = ?`
	if !includeCompleted {
		query += ` AND is_completed = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.ClientID, &t.Description, &due, &t.Priority,
			&t.IsCompleted, &t.Source, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns one task, or (nil, nil) if it does not exist
func (s *Storage) GetTask(taskID int64) (*Task, error) {
	var t Task
	var due sql.NullTime
	err := s.db.QueryRow(`SELECT id, client_id, description, due_date, priority, is_completed, source, created_at, updated_at
		FROM tasks WHERE id = ?`, taskID).
		Scan(&t.ID, &t.ClientID, &t.Description, &due, &t.Priority,
			&t.IsCompleted, &t.Source, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

// CreateTask inserts a task and returns it with its id filled in
func (s *Storage) CreateTask(clientID int64, description string, dueDate *time.Time, priority, source string) (*Task, error) {
	if priority == "" {
		priority = "normal"
	}
	if source == "" {
		source = SourceAgent
	}
	now := time.Now().UTC()
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: *dueDate, Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (client_id, description, due_date, priority, is_completed, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		clientID, description, due, priority, source, now, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Task{
		ID: id, ClientID: clientID, Description: description, DueDate: dueDate,
		Priority: priority, Source: source, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// UpdateTask changes only the non-nil fields of an existing task
func (s *Storage) UpdateTask(taskID int64, description *string, dueDate *time.Time, priority *string) error {
	var sets []string
	var args []interface{}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	if dueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *dueDate)
	}
	if priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *priority)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), taskID)

	res, err := s.db.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task: task %d not found", taskID)
	}
	return nil
}

// CompleteTask marks a task done
func (s *Storage) CompleteTask(taskID int64) error {
	res, err := s.db.Exec(`UPDATE tasks SET is_completed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete task: task %d not found", taskID)
	}
	return nil
}

// DeleteTask removes a task
func (s *Storage) DeleteTask(taskID int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete task: task %d not found", taskID)
	}
	return nil
}
