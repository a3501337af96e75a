// Package mailbox provides the answering-machine affordance shown to
// callers after a missed call.
package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lgtm-migrator/dtel/pkg/utils"
)

// MessageLimit is the per-number stored message cap. A full mailbox still
// shows its autoreply but stops accepting new messages.
const MessageLimit = 25

// Mailbox is a number's answering-machine configuration.
type Mailbox struct {
	Number       string `json:"number" db:"number"`
	Autoreply    string `json:"autoreply" db:"autoreply"`
	Receiving    bool   `json:"receiving" db:"receiving"`
	MessageCount int    `json:"message_count" db:"message_count"`
}

// Full reports whether the mailbox hit its message cap.
func (m Mailbox) Full() bool { return m.MessageCount >= MessageLimit }

// CanReceive reports whether a caller may leave a message.
func (m Mailbox) CanReceive() bool { return m.Receiving && !m.Full() }

// Message is one entry left on an answering machine.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Number    string    `json:"number" db:"number"`
	Sender    string    `json:"sender" db:"sender"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Repository is the persistence contract for mailboxes.
type Repository interface {
	// ByNumber returns (mailbox, true, nil) when one is configured.
	// Numbers without a mailbox return ok=false, not an error.
	ByNumber(ctx context.Context, number string) (Mailbox, bool, error)

	// Append stores a message, re-checking receipt and the cap atomically so
	// two concurrent callers cannot overrun it. Returns ErrNotReceiving or
	// ErrFull when the re-check fails.
	Append(ctx context.Context, m Message) error
}

var (
	ErrNotReceiving = errors.New("mailbox: not receiving messages")
	ErrFull         = errors.New("mailbox: full")
)

// Service validates and stores caller messages.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Leave deposits a caller's message. The number must have a mailbox that is
// receiving and under its cap.
func (s *Service) Leave(ctx context.Context, number, sender, content string) (Message, error) {
	box, ok, err := s.repo.ByNumber(ctx, number)
	if err != nil {
		return Message{}, err
	}
	if !ok || !box.Receiving {
		return Message{}, ErrNotReceiving
	}
	if box.Full() {
		return Message{}, ErrFull
	}

	m := Message{
		ID:        uuid.NewString(),
		Number:    number,
		Sender:    sender,
		Content:   content,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// PostgresRepo implements Repository over the mailboxes table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ByNumber(ctx context.Context, number string) (Mailbox, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.number, COALESCE(m.autoreply, ''), m.receiving,
			(SELECT COUNT(*) FROM mailbox_messages mm WHERE mm.number = m.number)
		FROM mailboxes m
		WHERE m.number = $1`, number)

	var m Mailbox
	if err := row.Scan(&m.Number, &m.Autoreply, &m.Receiving, &m.MessageCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mailbox{}, false, nil
		}
		return Mailbox{}, false, fmt.Errorf("mailbox: by number: %w", err)
	}
	return m, true, nil
}

func (r *PostgresRepo) Append(ctx context.Context, m Message) error {
	// The mailbox row is locked for the span of the count and insert, so
	// concurrent deposits serialize and the cap holds.
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var receiving bool
		err := tx.QueryRowContext(ctx,
			`SELECT receiving FROM mailboxes WHERE number = $1 FOR UPDATE`,
			m.Number).Scan(&receiving)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotReceiving
		}
		if err != nil {
			return err
		}
		if !receiving {
			return ErrNotReceiving
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM mailbox_messages WHERE number = $1`,
			m.Number).Scan(&count); err != nil {
			return err
		}
		if count >= MessageLimit {
			return ErrFull
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO mailbox_messages (id, number, sender, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.Number, m.Sender, m.Content, m.CreatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotReceiving) || errors.Is(err, ErrFull) {
			return err
		}
		return fmt.Errorf("mailbox: append: %w", err)
	}
	return nil
}
