// README: Best-effort audit log sink backed by Postgres.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"naqlo/internal/types"
)

type Entry struct {
	ActorID  types.ID
	Action   string
	Entity   string
	EntityID types.ID
	Meta     types.Meta
}

type Log struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLog(db *pgxpool.Pool, logger *zap.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// Record writes an audit entry. Failures are logged and swallowed so audit
// never masks or rolls back the primary operation. A nil *Log drops entries,
// which keeps services constructible without a sink in tests.
func (l *Log) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		meta = []byte("{}")
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(),
		nullID(e.ActorID),
		e.Action,
		e.Entity,
		nullID(e.EntityID),
		meta,
		time.Now().UTC(),
	)
	if err != nil && l.logger != nil {
		l.logger.Warn("audit write failed", zap.String("action", e.Action), zap.Error(err))
	}
}

func nullID(id types.ID) *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}
