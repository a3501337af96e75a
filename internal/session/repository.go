package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository is the persistence contract for session records.
//
// The store is the only resource mutated by more than one shard. Every
// method writes whole fields this shard computed; records are never
// half-written across fields that must agree.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	ByID(ctx context.Context, id string) (Record, error)

	// Delete removes an in-flight record for a call that never became real.
	// Distinct from End: nothing is retained.
	Delete(ctx context.Context, id string) error

	SetPickedUp(ctx context.Context, id string, p ActionStamp) error
	SetHold(ctx context.Context, id string, h Hold) error

	// End marks the record terminal and inactive. The record is retained
	// for audit/history.
	End(ctx context.Context, id string, e ActionStamp, reason string) error
}

// RelayRepository is the persistence contract for relay mappings.
type RelayRepository interface {
	Create(ctx context.Context, m RelayMapping) error
	Delete(ctx context.Context, callID, originalMessageID string) error
	ByCall(ctx context.Context, callID string) ([]RelayMapping, error)
}

// PostgresRepo implements Repository over the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calls (
			id, from_number, to_number,
			started_at, started_by,
			hold_on, hold_side,
			active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.FromNumber, rec.ToNumber,
		rec.Started.At, rec.Started.By,
		rec.Hold.OnHold, nullIfEmpty(rec.Hold.HoldingSide),
		rec.Active,
	)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ByID(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, from_number, to_number,
			started_at, started_by,
			picked_up_at, picked_up_by,
			ended_at, ended_by, COALESCE(end_reason, ''),
			hold_on, COALESCE(hold_side, ''),
			active
		FROM calls WHERE id = $1`, id)

	var (
		rec      Record
		pickedAt sql.NullTime
		pickedBy sql.NullString
		endedAt  sql.NullTime
		endedBy  sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.FromNumber, &rec.ToNumber,
		&rec.Started.At, &rec.Started.By,
		&pickedAt, &pickedBy,
		&endedAt, &endedBy, &rec.EndReason,
		&rec.Hold.OnHold, &rec.Hold.HoldingSide,
		&rec.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("session: by id: %w", err)
	}
	if pickedAt.Valid {
		rec.PickedUp = &ActionStamp{At: pickedAt.Time, By: pickedBy.String}
	}
	if endedAt.Valid {
		rec.Ended = &ActionStamp{At: endedAt.Time, By: endedBy.String}
	}
	return rec, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (r *PostgresRepo) SetPickedUp(ctx context.Context, id string, p ActionStamp) error {
	// picked_up is write-once: the guard keeps a racing duplicate pickup
	// from overwriting the first winner's stamp.
	_, err := r.db.ExecContext(ctx, `
		UPDATE calls SET picked_up_at = $2, picked_up_by = $3
		WHERE id = $1 AND picked_up_at IS NULL`,
		id, p.At, p.By)
	if err != nil {
		return fmt.Errorf("session: set picked up: %w", err)
	}
	return nil
}

func (r *PostgresRepo) SetHold(ctx context.Context, id string, h Hold) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE calls SET hold_on = $2, hold_side = $3
		WHERE id = $1 AND active`,
		id, h.OnHold, nullIfEmpty(h.HoldingSide))
	if err != nil {
		return fmt.Errorf("session: set hold: %w", err)
	}
	return nil
}

func (r *PostgresRepo) End(ctx context.Context, id string, e ActionStamp, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE calls SET active = FALSE, ended_at = $2, ended_by = $3, end_reason = $4
		WHERE id = $1 AND ended_at IS NULL`,
		id, e.At, e.By, nullIfEmpty(reason))
	if err != nil {
		return fmt.Errorf("session: end: %w", err)
	}
	return nil
}

// PostgresRelayRepo implements RelayRepository over the call_messages table.
type PostgresRelayRepo struct {
	db *sql.DB
}

func NewPostgresRelayRepo(db *sql.DB) *PostgresRelayRepo { return &PostgresRelayRepo{db: db} }

// Create upserts: when an edit falls back to a fresh send the mapping is
// re-pointed at the replacement copy, so a cold rebuild targets a message
// that still exists.
func (r *PostgresRelayRepo) Create(ctx context.Context, m RelayMapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_messages (call_id, original_message_id, forwarded_message_id, sender, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id, original_message_id)
		DO UPDATE SET forwarded_message_id = EXCLUDED.forwarded_message_id, sent_at = EXCLUDED.sent_at`,
		m.CallID, m.OriginalMessageID, m.ForwardedMessageID, m.Sender, m.SentAt)
	if err != nil {
		return fmt.Errorf("session: create relay mapping: %w", err)
	}
	return nil
}

func (r *PostgresRelayRepo) Delete(ctx context.Context, callID, originalMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM call_messages WHERE call_id = $1 AND original_message_id = $2`,
		callID, originalMessageID)
	if err != nil {
		return fmt.Errorf("session: delete relay mapping: %w", err)
	}
	return nil
}

func (r *PostgresRelayRepo) ByCall(ctx context.Context, callID string) ([]RelayMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT call_id, original_message_id, forwarded_message_id, sender, sent_at
		FROM call_messages WHERE call_id = $1
		ORDER BY sent_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("session: relay mappings by call: %w", err)
	}
	defer rows.Close()

	var out []RelayMapping
	for rows.Next() {
		var m RelayMapping
		if err := rows.Scan(&m.CallID, &m.OriginalMessageID, &m.ForwardedMessageID, &m.Sender, &m.SentAt); err != nil {
			return nil, fmt.Errorf("session: scan relay mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: relay mappings by call: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
