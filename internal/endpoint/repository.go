package endpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("endpoint: not found")

// Pair is the single-lookup result used by call initiation: both endpoints
// with denormalized guild locale, plus whether either side already has a
// non-terminal call.
type Pair struct {
	From *Endpoint
	To   *Endpoint

	FromBusy bool
	ToBusy   bool
}

// Repository is the persistence contract for numbers.
//
// Endpoint rows are owned by the provisioning flow; the call core only
// reads them. Keyed lookups must include the guild-locale join so callers
// never issue a second query per side.
type Repository interface {
	ByNumber(ctx context.Context, number string) (Endpoint, error)
	ByChannel(ctx context.Context, channelID string) (Endpoint, error)

	// FetchPair resolves caller and callee in one round trip.
	// A missing side is reported as a nil pointer, not an error.
	FetchPair(ctx context.Context, fromNumber, toNumber string) (Pair, error)
}

// PostgresRepo implements Repository over the numbers/guilds/calls tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const endpointColumns = `
	n.number, n.channel_id, COALESCE(n.guild_id, ''),
	COALESCE(g.locale, ''), n.expiry,
	COALESCE(array_to_string(n.blocked, ','), ''),
	n.vip_expiry, n.vip_hidden, COALESCE(n.vip_name, '')`

func (r *PostgresRepo) ByNumber(ctx context.Context, number string) (Endpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+endpointColumns+`
		FROM numbers n
		LEFT JOIN guilds g ON g.id = n.guild_id
		WHERE n.number = $1`, number)
	return scanEndpoint(row)
}

func (r *PostgresRepo) ByChannel(ctx context.Context, channelID string) (Endpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+endpointColumns+`
		FROM numbers n
		LEFT JOIN guilds g ON g.id = n.guild_id
		WHERE n.channel_id = $1`, channelID)
	return scanEndpoint(row)
}

func (r *PostgresRepo) FetchPair(ctx context.Context, fromNumber, toNumber string) (Pair, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+endpointColumns+`,
			EXISTS (
				SELECT 1 FROM calls c
				WHERE c.active AND (c.from_number = n.number OR c.to_number = n.number)
			) AS busy
		FROM numbers n
		LEFT JOIN guilds g ON g.id = n.guild_id
		WHERE n.number = $1 OR n.number = $2`, fromNumber, toNumber)
	if err != nil {
		return Pair{}, fmt.Errorf("endpoint: fetch pair: %w", err)
	}
	defer rows.Close()

	var out Pair
	for rows.Next() {
		e, busy, err := scanEndpointBusy(rows)
		if err != nil {
			return Pair{}, err
		}
		switch e.Number {
		case fromNumber:
			ep := e
			out.From = &ep
			out.FromBusy = busy
		case toNumber:
			ep := e
			out.To = &ep
			out.ToBusy = busy
		}
	}
	if err := rows.Err(); err != nil {
		return Pair{}, fmt.Errorf("endpoint: fetch pair: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (Endpoint, error) {
	e, _, err := scan(row, false)
	return e, err
}

func scanEndpointBusy(row rowScanner) (Endpoint, bool, error) {
	return scan(row, true)
}

func scan(row rowScanner, withBusy bool) (Endpoint, bool, error) {
	var (
		e         Endpoint
		blocked   string
		vipExpiry sql.NullTime
		vipHidden sql.NullBool
		vipName   string
		busy      bool
	)
	dest := []any{
		&e.Number, &e.ChannelID, &e.GuildID,
		&e.Locale, &e.Expiry,
		&blocked,
		&vipExpiry, &vipHidden, &vipName,
	}
	if withBusy {
		dest = append(dest, &busy)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Endpoint{}, false, ErrNotFound
		}
		return Endpoint{}, false, fmt.Errorf("endpoint: scan: %w", err)
	}
	if e.Locale == "" {
		e.Locale = DefaultLocale
	}
	if blocked != "" {
		e.Blocked = strings.Split(blocked, ",")
	}
	if vipExpiry.Valid {
		e.VIP = &VIP{
			Expiry: vipExpiry.Time,
			Hidden: vipHidden.Valid && vipHidden.Bool,
			Name:   vipName,
		}
	}
	return e, busy, nil
}
