package store

import (
	"fmt"
	"time"

	"github.com/recallhq/deepmemory/internal/models"
)

// AuditStore appends request audit rows. Insert-only: there is no update or
// delete path. Memory content is never written here.
type AuditStore struct {
	db *DB
}

func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append records one audit entry.
func (s *AuditStore) Append(entry *models.AuditEntry) error {
	entry.CreatedAt = time.Now().Unix()
	res, err := s.db.Exec(`
		INSERT INTO audit_log (request_id, actor, action, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.RequestID, entry.Actor, entry.Action, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// Recent returns the newest audit entries, most recent first.
func (s *AuditStore) Recent(limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, request_id, actor, action, status, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Actor, &e.Action, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
