package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"vigil/internal/domain"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	l := NewWithClock(func() time.Time { return fixed })
	l.Append(domain.Event{Kind: domain.EventGenerateOK})

	got := l.Query("", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Fatal("event ID must be assigned")
	}
	if !got[0].CreatedAt.Equal(fixed.UTC()) {
		t.Fatalf("unexpected timestamp %v", got[0].CreatedAt)
	}
	if got[0].Payload == nil {
		t.Fatal("payload must never be nil")
	}
}

func TestQueryMostRecentFirst(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		l.Append(domain.Event{Kind: domain.EventGenerateOK, Message: fmt.Sprintf("e%d", i)})
	}

	got := l.Query("", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Message != "e4" || got[1].Message != "e3" || got[2].Message != "e2" {
		t.Fatalf("unexpected order: %s %s %s", got[0].Message, got[1].Message, got[2].Message)
	}
}

func TestQueryFiltersByKind(t *testing.T) {
	l := New()
	l.Append(domain.Event{Kind: domain.EventGenerateOK})
	l.Append(domain.Event{Kind: domain.EventPulseAlert})
	l.Append(domain.Event{Kind: domain.EventGenerateOK})

	got := l.Query(domain.EventPulseAlert, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 pulse.alert, got %d", len(got))
	}

	if got := l.Query("no.such.kind", 10); len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestQueryIsPureRead(t *testing.T) {
	l := New()
	l.Append(domain.Event{Kind: domain.EventGenerateOK})
	_ = l.Query("", 10)
	_ = l.Query("", 10)
	if l.Len() != 1 {
		t.Fatalf("query must not mutate the log, len=%d", l.Len())
	}
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				l.Append(domain.Event{Kind: domain.EventGenerateFail})
			}
		}()
	}
	wg.Wait()

	if l.Len() != workers*perWorker {
		t.Fatalf("expected %d events, got %d", workers*perWorker, l.Len())
	}
}
