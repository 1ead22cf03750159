package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tendant/blog-auth/pkg/domain"
)

// AuditRepository appends audit events to the audit_logs table.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Write inserts one event. Rows are never updated or deleted.
func (r *AuditRepository) Write(ctx context.Context, e domain.AuditEvent) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = b
	}

	query := `
		INSERT INTO audit_logs (id, event_type, user_id, success, ip, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, string(e.Type), e.UserID, e.Success, e.IP, e.UserAgent, string(details), e.CreatedAt,
	)
	return err
}
