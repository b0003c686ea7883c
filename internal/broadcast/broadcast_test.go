package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbot/internal/storage"
	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

type fakeSource struct {
	recipients []storage.Recipient
	err        error
}

func (f *fakeSource) ListUnpaid(ctx context.Context) ([]storage.Recipient, error) {
	return f.recipients, f.err
}

// scriptedSender returns the next queued error per chat id, then succeeds.
type scriptedSender struct {
	fail  map[int64][]error
	calls []int64
}

func (f *scriptedSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	f.calls = append(f.calls, to.ChatID)
	q := f.fail[to.ChatID]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	f.fail[to.ChatID] = q[1:]
	return err
}

func recipients(ids ...int64) []storage.Recipient {
	out := make([]storage.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, storage.Recipient{ChatID: id})
	}
	return out
}

func newTestEngine(src RecipientSource, snd Sender) (*Engine, *[]time.Duration) {
	e := New(Config{SendGap: 50 * time.Millisecond}, src, snd, logx.Nop())
	var slept []time.Duration
	e.SetSleeper(func(ctx context.Context, d time.Duration) {
		slept = append(slept, d)
	})
	return e, &slept
}

func TestRunMixedOutcomes(t *testing.T) {
	t.Parallel()
	// #2 rate-limited once then fine, #3 forbidden, rest clean.
	sender := &scriptedSender{fail: map[int64][]error{
		2: {&transport.RateLimitedError{RetryAfter: 2 * time.Second}},
		3: {transport.ErrForbidden},
	}}
	e, slept := newTestEngine(&fakeSource{recipients: recipients(1, 2, 3, 4, 5)}, sender)

	sum, err := e.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Sent != 4 || sum.Skipped != 1 || len(sum.Failures) != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	// Retry wait must be the server delay plus the grace margin.
	wantRetryWait := 2*time.Second + DefaultPolicy().Grace
	found := false
	for _, d := range *slept {
		if d == wantRetryWait {
			found = true
		}
	}
	if !found {
		t.Fatalf("retry wait %v not observed in %v", wantRetryWait, *slept)
	}

	// Forbidden must not be retried: exactly one attempt for #3, two for #2.
	attempts := map[int64]int{}
	for _, id := range sender.calls {
		attempts[id]++
	}
	if attempts[2] != 2 {
		t.Fatalf("rate-limited recipient attempts = %d, want 2", attempts[2])
	}
	if attempts[3] != 1 {
		t.Fatalf("forbidden recipient attempts = %d, want 1", attempts[3])
	}
}

func TestRunSecondRateLimitBecomesFailure(t *testing.T) {
	t.Parallel()
	sender := &scriptedSender{fail: map[int64][]error{
		1: {
			&transport.RateLimitedError{RetryAfter: time.Second},
			&transport.RateLimitedError{RetryAfter: 3 * time.Second},
		},
	}}
	e, _ := newTestEngine(&fakeSource{recipients: recipients(1)}, sender)

	sum, err := e.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Sent != 0 || sum.Skipped != 0 || len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sender.calls) != 2 {
		t.Fatalf("attempts = %d, want exactly 2", len(sender.calls))
	}
}

func TestRunGenericErrorRecorded(t *testing.T) {
	t.Parallel()
	sender := &scriptedSender{fail: map[int64][]error{
		7: {errors.New("Bad Request: not enough rights")},
	}}
	e, _ := newTestEngine(&fakeSource{recipients: []storage.Recipient{{ChatID: 7, Title: "Seven"}}}, sender)

	sum, err := e.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	f := sum.Failures[0]
	if f.ChatID != 7 || f.Title != "Seven" || f.Reason == "" {
		t.Fatalf("failure detail lost: %+v", f)
	}
	// Generic errors are not retried.
	if len(sender.calls) != 1 {
		t.Fatalf("attempts = %d, want 1", len(sender.calls))
	}
}

func TestRunEmptyListMakesNoCalls(t *testing.T) {
	t.Parallel()
	sender := &scriptedSender{}
	e, _ := newTestEngine(&fakeSource{}, sender)

	sum, err := e.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Total() != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("transport called %d times for empty list", len(sender.calls))
	}
	if sum.Report() != "No unpaid groups found." {
		t.Fatalf("report = %q", sum.Report())
	}
}

func TestReportMentionsFailures(t *testing.T) {
	t.Parallel()
	s := Summary{Sent: 3, Skipped: 1, Failures: []Failure{{ChatID: 9, Reason: "boom"}}}
	got := s.Report()
	if got == "" || s.Total() != 5 {
		t.Fatalf("report = %q total = %d", got, s.Total())
	}
	want := "Sent to 3 unpaid groups. Skipped: 1. Failures: 1\nSome groups failed (bot removed, topics-only, etc.)."
	if got != want {
		t.Fatalf("report = %q, want %q", got, want)
	}
}

func TestPolicyNonRateLimitNotRetried(t *testing.T) {
	t.Parallel()
	p := DefaultPolicy()
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, d time.Duration) {}, func() error {
		calls++
		return errors.New("nope")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
