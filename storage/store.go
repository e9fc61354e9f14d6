// Package storage is the local record store: configured instances, the
// per-instance model lists, and message attachments. Conversations
// themselves are owned by the presentation layer; the core only persists
// the records listed here.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jcrabapple/Nanopaca/chat"
)

// InstanceRecord is one persisted instance configuration. Properties holds
// the provider-specific settings as a JSON object, mirroring how instances
// are edited as loose property maps in the configuration UI.
type InstanceRecord struct {
	ID         string
	Pinned     bool
	Type       string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps the SQLite database backing the record store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the record store in dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "nanopaca.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		pinned INTEGER NOT NULL DEFAULT 0,
		type TEXT NOT NULL,
		properties TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS instance_models (
		instance_id TEXT NOT NULL,
		model TEXT NOT NULL,
		PRIMARY KEY (instance_id, model)
	);
	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// InsertOrUpdateInstance persists one instance configuration.
func (s *Store) InsertOrUpdateInstance(id string, pinned bool, instanceType string, properties map[string]any) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal instance properties: %w", err)
	}

	now := time.Now()
	query := `
	INSERT INTO instances (id, pinned, type, properties, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		pinned = excluded.pinned,
		type = excluded.type,
		properties = excluded.properties,
		updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query, id, boolToInt(pinned), instanceType, string(props), now, now)
	return err
}

// UpdateInstanceProperties rewrites an instance's property map without
// touching its pinned flag, used when model fallback repairs the settings.
func (s *Store) UpdateInstanceProperties(id string, properties map[string]any) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal instance properties: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE instances SET properties = ?, updated_at = ? WHERE id = ?`,
		string(props), time.Now(), id,
	)
	return err
}

// GetInstances returns all persisted instances, pinned first.
func (s *Store) GetInstances() ([]InstanceRecord, error) {
	query := `
	SELECT id, pinned, type, properties, created_at, updated_at
	FROM instances
	ORDER BY pinned DESC, created_at ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InstanceRecord
	for rows.Next() {
		var rec InstanceRecord
		var pinned int
		var props string
		if err := rows.Scan(&rec.ID, &pinned, &rec.Type, &props, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			continue
		}
		rec.Pinned = pinned != 0
		if err := json.Unmarshal([]byte(props), &rec.Properties); err != nil {
			rec.Properties = map[string]any{}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteInstance removes an instance and its cached model list.
func (s *Store) DeleteInstance(id string) error {
	if _, err := s.db.Exec(`DELETE FROM instance_models WHERE instance_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	return err
}

// AppendOnlineInstanceModelList records a model as added to an online
// instance. Re-adding an existing model is a no-op.
func (s *Store) AppendOnlineInstanceModelList(instanceID, model string) error {
	query := `INSERT OR IGNORE INTO instance_models (instance_id, model) VALUES (?, ?)`
	_, err := s.db.Exec(query, instanceID, model)
	return err
}

// GetOnlineInstanceModelList returns the models added to an online instance.
func (s *Store) GetOnlineInstanceModelList(instanceID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT model FROM instance_models WHERE instance_id = ? ORDER BY model`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			continue
		}
		models = append(models, model)
	}

	return models, rows.Err()
}

// RemoveOnlineInstanceModelList removes a model from an online instance.
func (s *Store) RemoveOnlineInstanceModelList(instanceID, model string) error {
	_, err := s.db.Exec(`DELETE FROM instance_models WHERE instance_id = ? AND model = ?`, instanceID, model)
	return err
}

// InsertOrUpdateAttachment persists one attachment of a message.
func (s *Store) InsertOrUpdateAttachment(messageID string, att chat.Attachment) error {
	query := `
	INSERT INTO attachments (id, message_id, name, type, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		type = excluded.type,
		content = excluded.content
	`

	_, err := s.db.Exec(query, att.ID, messageID, att.Name, att.Type, att.Content, time.Now())
	return err
}

// GetAttachments returns all attachments persisted for a message.
func (s *Store) GetAttachments(messageID string) ([]chat.Attachment, error) {
	rows, err := s.db.Query(
		`SELECT id, name, type, content FROM attachments WHERE message_id = ? ORDER BY created_at ASC`,
		messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atts []chat.Attachment
	for rows.Next() {
		var att chat.Attachment
		if err := rows.Scan(&att.ID, &att.Name, &att.Type, &att.Content); err != nil {
			continue
		}
		atts = append(atts, att)
	}

	return atts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
