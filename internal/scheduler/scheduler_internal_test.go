package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

type stubDigester struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *stubDigester) SendWeeklyDigest(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++

	return d.err
}

type recordingAlerter struct {
	texts []string
}

func (a *recordingAlerter) Alert(_ context.Context, text string) {
	a.texts = append(a.texts, text)
}

func TestDefaultDigestSpecRunsWednesdayNight(t *testing.T) {
	schedule, err := cron.ParseStandard(DefaultDigestSpec)
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}

	monday := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	want := time.Date(2026, 10, 21, 1, 27, 0, 0, time.UTC)

	if got := schedule.Next(monday); !got.Equal(want) {
		t.Fatalf("unexpected next run: got %s want %s", got, want)
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), &stubDigester{}, Options{DigestSpec: "not a spec"}, slog.Default())

	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid spec to be rejected")
	}
}

func TestSendWeeklyDigestAlertsOnFailure(t *testing.T) {
	digester := &stubDigester{err: errors.New("smtp down")}
	alerter := &recordingAlerter{}
	s := New(context.Background(), digester, Options{Alerter: alerter}, slog.Default())

	s.sendWeeklyDigest()

	if digester.calls != 1 {
		t.Fatalf("expected one digest run, got %d", digester.calls)
	}

	if len(alerter.texts) != 1 || !strings.Contains(alerter.texts[0], "smtp down") {
		t.Fatalf("unexpected alerts: %v", alerter.texts)
	}
}

func TestSendWeeklyDigestSkipsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	digester := &stubDigester{}
	s := New(ctx, digester, Options{}, slog.Default())

	s.sendWeeklyDigest()

	if digester.calls != 0 {
		t.Fatalf("expected no digest run, got %d", digester.calls)
	}
}

func TestStartAndStop(t *testing.T) {
	s := New(context.Background(), &stubDigester{}, Options{ImportSpec: "@every 1h"}, slog.Default())

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := len(s.cron.Entries()); got != 1 {
		t.Fatalf("expected only the digest job without importer, got %d entries", got)
	}

	s.Stop()
}

type blockingDigester struct{}

func (blockingDigester) SendWeeklyDigest(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type contextAlerter struct {
	errs []error
}

func (a *contextAlerter) Alert(ctx context.Context, _ string) {
	a.errs = append(a.errs, ctx.Err())
}

func TestDigestTimeoutAlertHasLiveContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	alerter := &contextAlerter{}
	s := New(ctx, blockingDigester{}, Options{Alerter: alerter}, slog.Default())

	s.sendWeeklyDigest()

	if len(alerter.errs) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerter.errs))
	}
	if alerter.errs[0] != nil {
		t.Fatalf("alert got a done context: %v", alerter.errs[0])
	}
}
