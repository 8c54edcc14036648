package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"doclife/internal/doc"
)

// Entity is an owning business object documents can be attached to.
type Entity struct {
	Type      string
	ID        string
	Title     string
	Phase     doc.Phase // work items only
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterEntity records an entity so documents can be attached to it.
// Registering an existing entity updates its title.
func (s *SQLiteDatabase) RegisterEntity(ctx context.Context, entityType, entityID, title string) error {
	switch entityType {
	case doc.EntityWorkItem, doc.EntityTask, doc.EntityProject:
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	now := s.clock.Now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO entities (entity_type, entity_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		entityType, entityID, title, now, now)
	if err != nil {
		return fmt.Errorf("registering entity: %w", err)
	}
	return nil
}

// EntityExists reports whether the entity has been registered.
func (s *SQLiteDatabase) EntityExists(ctx context.Context, entityType, entityID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking entity: %w", err)
	}
	return n > 0, nil
}

// WorkItemPhase returns the current phase of a work item, or "" if none was set.
func (s *SQLiteDatabase) WorkItemPhase(ctx context.Context, workItemID string) (doc.Phase, error) {
	var phase doc.Phase
	err := s.db.QueryRowContext(ctx, `SELECT phase FROM entities WHERE entity_type = ? AND entity_id = ?`,
		doc.EntityWorkItem, workItemID).Scan(&phase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("work item %s: %w", workItemID, doc.ErrEntityNotFound)
		}
		return "", fmt.Errorf("getting work item phase: %w", err)
	}
	return phase, nil
}

// SetWorkItemPhase stores a work item's new phase. Delivering the phase-change
// event to the document service is the caller's job.
func (s *SQLiteDatabase) SetWorkItemPhase(ctx context.Context, workItemID string, phase doc.Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("unknown phase %q", phase)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE entities SET phase = ?, updated_at = ? WHERE entity_type = ? AND entity_id = ?`,
		phase, s.clock.Now(), doc.EntityWorkItem, workItemID)
	if err != nil {
		return fmt.Errorf("setting work item phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting work item phase: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("work item %s: %w", workItemID, doc.ErrEntityNotFound)
	}
	return nil
}

// ListEntities returns every registered entity ordered by type and ID.
func (s *SQLiteDatabase) ListEntities(ctx context.Context) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_type, entity_id, title, phase, created_at, updated_at
		FROM entities ORDER BY entity_type, entity_id`)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.Type, &e.ID, &e.Title, &e.Phase, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}
