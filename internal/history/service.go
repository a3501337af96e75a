package history

import (
	"context"
	"errors"
	"time"

	"github.com/lgtm-migrator/dtel/internal/session"
)

var ErrInvalidRequest = errors.New("history: invalid request")

// Repository abstracts data access for call history.
//
// Implementations should query the immutable call and relay tables; history
// never mutates anything.

type Repository interface {
	CallByID(ctx context.Context, callID string) (session.Record, error)
	ListCalls(ctx context.Context, from, to time.Time) ([]session.Record, error)
	CountMessages(ctx context.Context, callID string) (int, error)
	ListMappings(ctx context.Context, callID string) ([]session.RelayMapping, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("history: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	for _, rec := range rows {
		out.TotalCalls++
		if rec.PickedUp != nil {
			out.ConnectedCalls++
		}
		switch {
		case rec.Active:
			out.ActiveCalls++
		case rec.EndReason == session.EndReasonMissed:
			out.MissedCalls++
		case rec.EndReason == session.EndReasonNumberLost:
			out.SystemEndedCalls++
		}
		out.TotalDurationSeconds += durationSeconds(rec, s.clock())
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) Detail(ctx context.Context, callID string) (CallDetail, error) {
	if callID == "" {
		return CallDetail{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallDetail{}, errors.New("history: repository not configured")
	}

	rec, err := s.repo.CallByID(ctx, callID)
	if err != nil {
		return CallDetail{}, err
	}
	count, err := s.repo.CountMessages(ctx, callID)
	if err != nil {
		return CallDetail{}, err
	}

	return CallDetail{
		Record:          rec,
		Status:          rec.Status(),
		DurationSeconds: durationSeconds(rec, s.clock()),
		MessageCount:    count,
	}, nil
}

// Transcript lists the relay mappings of a call in send order. Contents are
// never stored; only identifiers and senders.
func (s *Service) Transcript(ctx context.Context, callID string) ([]session.RelayMapping, error) {
	if callID == "" {
		return nil, ErrInvalidRequest
	}
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return s.repo.ListMappings(ctx, callID)
}

// durationSeconds measures start to end, or start to now for live calls.
func durationSeconds(rec session.Record, now time.Time) int {
	end := now
	if rec.Ended != nil {
		end = rec.Ended.At
	}
	d := end.Sub(rec.Started.At)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}
