// Package audit records staff actions without ever failing the action itself.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"catering/internal/models"
	"catering/internal/observability"
)

// Actor identifies who performed an action
type Actor struct {
	Name string
	Role string
}

type actorKey struct{}

// WithActor attaches the acting user to ctx
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user, or "system" when none is attached
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{Name: "system", Role: "system"}
}

// Store persists audit entries
type Store interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Recorder writes audit entries best-effort
type Recorder struct {
	store  Store
	logger observability.Logger
}

// NewRecorder creates a recorder; a nil store only logs
func NewRecorder(store Store, logger observability.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record stores one action taken by the actor in ctx
func (r *Recorder) Record(ctx context.Context, action, entity string, format string, args ...interface{}) {
	if r == nil {
		return
	}
	actor := ActorFrom(ctx)
	entry := &models.AuditEntry{
		Actor:   actor.Name,
		Role:    actor.Role,
		Action:  action,
		Entity:  entity,
		Details: fmt.Sprintf(format, args...),
	}
	if r.store == nil {
		r.logger.Info("Audit", zap.String("action", action), zap.String("entity", entity), zap.String("details", entry.Details))
		return
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		r.logger.Warn("Audit write failed", zap.String("action", action), zap.Error(err))
	}
}
