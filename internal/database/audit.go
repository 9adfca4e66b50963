package database

import (
	"context"

	"catering/internal/models"
)

// AppendAudit records a staff action
func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	return s.db.Create(entry).Error
}

// ListAudit returns the latest audit entries
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.AuditEntry
	if err := s.db.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
