package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lgtm-migrator/dtel/internal/session"
)

func TestSummary_ClassifiesOutcomes(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	end := func(at time.Time) *session.ActionStamp { s := session.ActionStamp{At: at}; return &s }

	repo.Calls = []session.Record{
		{
			ID: "c1", Started: session.ActionStamp{At: now},
			PickedUp: end(now.Add(5 * time.Second)),
			Ended:    end(now.Add(65 * time.Second)),
		},
		{
			ID: "c2", Started: session.ActionStamp{At: now},
			Ended: end(now.Add(120 * time.Second)), EndReason: session.EndReasonMissed,
		},
		{
			ID: "c3", Started: session.ActionStamp{At: now},
			Ended: end(now.Add(15 * time.Second)), EndReason: session.EndReasonNumberLost,
		},
		{ID: "c4", Started: session.ActionStamp{At: now}, Active: true},
		{ID: "old", Started: session.ActionStamp{At: now.Add(-48 * time.Hour)}},
	}

	svc := NewService(repo)
	svc.clock = func() time.Time { return now.Add(30 * time.Second) }

	out, err := svc.Summary(context.Background(), SummaryRequest{
		Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 {
		t.Fatalf("expected 4 calls in range, got %d", out.TotalCalls)
	}
	if out.ConnectedCalls != 1 || out.MissedCalls != 1 || out.SystemEndedCalls != 1 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	// 65 + 120 + 15 + 30 (live call measured against the clock)
	if out.TotalDurationSeconds != 230 {
		t.Fatalf("expected total duration 230, got %d", out.TotalDurationSeconds)
	}
}

func TestSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	_, err := svc.Summary(context.Background(), SummaryRequest{
		Range: TimeRange{From: now, To: now.Add(-time.Hour)},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDetail_CountsMessages(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	ended := session.ActionStamp{At: now.Add(90 * time.Second), By: "u1"}
	repo.Calls = []session.Record{{
		ID: "c1", FromNumber: "01100000001", ToNumber: "01100000002",
		Started: session.ActionStamp{At: now, By: "u1"},
		Ended:   &ended,
	}}
	repo.Mappings = []session.RelayMapping{
		{CallID: "c1", OriginalMessageID: "o1", ForwardedMessageID: "f1", Sender: "u1", SentAt: now},
		{CallID: "c1", OriginalMessageID: "o2", ForwardedMessageID: "f2", Sender: "u2", SentAt: now},
		{CallID: "other", OriginalMessageID: "o3", ForwardedMessageID: "f3", Sender: "u3", SentAt: now},
	}

	svc := NewService(repo)
	d, err := svc.Detail(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Status != session.StatusEnded || d.DurationSeconds != 90 || d.MessageCount != 2 {
		t.Fatalf("unexpected detail: %+v", d)
	}
}

func TestTranscript_UnknownCall(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	out, err := svc.Transcript(context.Background(), "nope")
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty transcript, got %v err=%v", out, err)
	}
}
