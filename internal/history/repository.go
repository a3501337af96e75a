package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lgtm-migrator/dtel/internal/session"
)

// PostgresRepo implements Repository over the calls and call_messages tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
	id, from_number, to_number,
	started_at, started_by,
	picked_up_at, picked_up_by,
	ended_at, ended_by, COALESCE(end_reason, ''),
	hold_on, COALESCE(hold_side, ''), active`

func (r *PostgresRepo) CallByID(ctx context.Context, callID string) (session.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE id = $1`, callID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, session.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("history: call by id: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepo) ListCalls(ctx context.Context, from, to time.Time) ([]session.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE started_at >= $1 AND started_at < $2
		ORDER BY started_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("history: list calls: %w", err)
	}
	defer rows.Close()

	var out []session.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list calls: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list calls: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) CountMessages(ctx context.Context, callID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM call_messages WHERE call_id = $1`, callID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count messages: %w", err)
	}
	return n, nil
}

func (r *PostgresRepo) ListMappings(ctx context.Context, callID string) ([]session.RelayMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT call_id, original_message_id, forwarded_message_id, sender, sent_at
		FROM call_messages
		WHERE call_id = $1
		ORDER BY sent_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("history: list mappings: %w", err)
	}
	defer rows.Close()

	var out []session.RelayMapping
	for rows.Next() {
		var m session.RelayMapping
		if err := rows.Scan(&m.CallID, &m.OriginalMessageID, &m.ForwardedMessageID, &m.Sender, &m.SentAt); err != nil {
			return nil, fmt.Errorf("history: list mappings: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list mappings: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (session.Record, error) {
	var (
		rec      session.Record
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
		&rec.Hold.OnHold, &rec.Hold.HoldingSide, &rec.Active,
	)
	if err != nil {
		return session.Record{}, err
	}
	if pickedAt.Valid {
		rec.PickedUp = &session.ActionStamp{At: pickedAt.Time, By: pickedBy.String}
	}
	if endedAt.Valid {
		rec.Ended = &session.ActionStamp{At: endedAt.Time, By: endedBy.String}
	}
	return rec, nil
}
