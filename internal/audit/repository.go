package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo persists audit events. Append-only: no update or delete
// statements exist here on purpose.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events
			(id, call_id, type, actor_user_id, shard_id, channel_id, reason, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CallID, string(e.Type), e.ActorUserID, e.ShardID,
		e.ChannelID, e.Reason, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}
