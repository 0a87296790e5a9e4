package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePurger struct {
	SlogAuditLogger
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *fakePurger) PurgeAuditBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	if p.err != nil {
		return 0, p.err
	}
	return 3, nil
}

func (p *fakePurger) calls() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.cutoffs...)
}

func TestPurgeAudit(t *testing.T) {
	s := &Service{audit: NewSlogAuditLogger(nil)}
	if _, err := s.PurgeAudit(context.Background(), 30); !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("slog logger: error = %v, want ErrAuditUnavailable", err)
	}

	p := &fakePurger{}
	s.audit = p
	n, err := s.PurgeAudit(context.Background(), 30)
	if err != nil || n != 3 {
		t.Fatalf("PurgeAudit = %d, %v", n, err)
	}
	cutoffs := p.calls()
	want := time.Now().UTC().AddDate(0, 0, -30)
	if len(cutoffs) != 1 || cutoffs[0].Sub(want).Abs() > time.Minute {
		t.Errorf("cutoffs = %v, want about %v", cutoffs, want)
	}

	p.err = errors.New("boom")
	if _, err := s.PurgeAudit(context.Background(), 30); err == nil {
		t.Error("expected purge error")
	}
}

func TestStartAuditRetention(t *testing.T) {
	t.Run("runs immediately and on each tick", func(t *testing.T) {
		p := &fakePurger{}
		s := &Service{audit: p}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.StartAuditRetention(ctx, RetentionConfig{RetentionDays: 7, CheckInterval: 10 * time.Millisecond})
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for len(p.calls()) < 3 {
			select {
			case <-deadline:
				t.Fatalf("purge ran %d times", len(p.calls()))
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		<-done
	})

	t.Run("errors do not stop the job", func(t *testing.T) {
		p := &fakePurger{err: errors.New("db down")}
		s := &Service{audit: p}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.StartAuditRetention(ctx, RetentionConfig{RetentionDays: 7, CheckInterval: 10 * time.Millisecond})
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for len(p.calls()) < 2 {
			select {
			case <-deadline:
				t.Fatalf("purge ran %d times", len(p.calls()))
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		<-done
	})

	t.Run("disabled returns immediately", func(t *testing.T) {
		tests := []struct {
			name  string
			audit AuditLogger
			days  int
		}{
			{"zero days", &fakePurger{}, 0},
			{"not persistent", NewSlogAuditLogger(nil), 30},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := &Service{audit: tt.audit}
				done := make(chan struct{})
				go func() {
					s.StartAuditRetention(context.Background(), RetentionConfig{RetentionDays: tt.days})
					close(done)
				}()
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("StartAuditRetention did not return")
				}
				if p, ok := tt.audit.(*fakePurger); ok && len(p.calls()) != 0 {
					t.Errorf("purge ran %d times", len(p.calls()))
				}
			})
		}
	})
}
