package salvage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedSession plays back a fixed sequence of navigation states.
type scriptedSession struct {
	mu        sync.Mutex
	locations []string
	calls     int
	probed    bool
	closed    bool
}

func (s *scriptedSession) TriggerProbe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = true
	return nil
}

func (s *scriptedSession) Location(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.locations) {
		i = len(s.locations) - 1
	}
	return s.locations[i], nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type scriptedBrowser struct {
	session *scriptedSession
	openErr error
}

func (b *scriptedBrowser) Open(ctx context.Context, homeURL string) (ChallengeSession, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.session, nil
}

func TestTokenPoller_FindsTokenAfterPolling(t *testing.T) {
	session := &scriptedSession{locations: []string{
		"https://example.com/",
		"https://example.com/",
		"https://example.com/?token2=tok123",
	}}
	poller := TokenPoller{Interval: time.Millisecond, MaxAttempts: 10}

	tok, err := poller.AcquireToken(context.Background(), &scriptedBrowser{session: session}, "https://example.com", "token2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "tok123" {
		t.Errorf("token = %q, want tok123", tok)
	}
	if !session.probed {
		t.Error("expected the probe to be triggered")
	}
	if !session.closed {
		t.Error("expected the session to be closed")
	}
}

func TestTokenPoller_GivesUpAfterMaxAttempts(t *testing.T) {
	session := &scriptedSession{locations: []string{"https://example.com/"}}
	poller := TokenPoller{Interval: time.Millisecond, MaxAttempts: 3}

	_, err := poller.AcquireToken(context.Background(), &scriptedBrowser{session: session}, "https://example.com", "token2")
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if !session.closed {
		t.Error("expected the session to be closed on failure")
	}
}

func TestTokenPoller_Cancellation(t *testing.T) {
	session := &scriptedSession{locations: []string{"https://example.com/"}}
	poller := TokenPoller{Interval: time.Hour, MaxAttempts: 10}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := poller.AcquireToken(ctx, &scriptedBrowser{session: session}, "https://example.com", "token2")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AcquireToken did not return after cancellation")
	}
}

func TestTokenFromURL(t *testing.T) {
	if tok := tokenFromURL("https://example.com/?a=1&token2=xyz", "token2"); tok != "xyz" {
		t.Errorf("token = %q, want xyz", tok)
	}
	if tok := tokenFromURL("https://example.com/", "token2"); tok != "" {
		t.Errorf("expected empty token, got %q", tok)
	}
}
