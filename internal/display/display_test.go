package display

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	mu    sync.Mutex
	texts []string
	title string
}

func (e *fakeElement) SetText(text string) {
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
}

func (e *fakeElement) SetTitle(title string) {
	e.mu.Lock()
	e.title = title
	e.mu.Unlock()
}

func (e *fakeElement) last() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.texts) == 0 {
		return ""
	}
	return e.texts[len(e.texts)-1]
}

func (e *fakeElement) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.texts)
}

var epoch = time.Date(2026, 10, 15, 10, 57, 57, 0, time.UTC)

func newTestSynchronizer(clock clockwork.Clock, reduced bool) *Synchronizer {
	return NewSynchronizer(Options{
		Clock:         clock,
		Printer:       NewPrinter("en"),
		Location:      time.UTC,
		ReducedMotion: reduced,
		Rand:          rand.New(rand.NewSource(1)),
	})
}

func TestFormatBalance(t *testing.T) {
	assert.Equal(t, "0", FormatBalance(NewPrinter("en"), 0))
	assert.Equal(t, "500", FormatBalance(NewPrinter("en"), 500))
	assert.Equal(t, "1,234,567", FormatBalance(NewPrinter("en"), 1234567))
	assert.Equal(t, "1.234.567", FormatBalance(NewPrinter("de"), 1234567))
	assert.Equal(t, "1,234", FormatBalance(NewPrinter("not a locale!"), 1234))
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-5 * time.Second, "00:00:00"},
		{59*time.Second + 900*time.Millisecond, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{25*time.Hour + time.Minute + time.Second, "25:01:01"},
		{100 * time.Hour, "100:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCountdown(tt.in), "FormatCountdown(%v)", tt.in)
	}
}

func TestFormatResetTitle(t *testing.T) {
	next := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Resets Thu, 15 Oct 2026 12:00 UTC", FormatResetTitle(next, time.UTC))
}

func TestReveal_Frames(t *testing.T) {
	r := NewReveal("01:02:03", rand.New(rand.NewSource(3)))
	require.Equal(t, 710*time.Millisecond, r.Duration())

	frame, done := r.Frame("01:02:03", 0)
	assert.False(t, done)
	assert.Len(t, frame, 8)
	assert.Equal(t, byte(':'), frame[2])
	assert.Equal(t, byte(':'), frame[5])

	frame, done = r.Frame("01:02:03", r.Duration()/2)
	assert.False(t, done)
	assert.Equal(t, "01:0", frame[:4])

	frame, done = r.Frame("01:02:03", r.Duration())
	assert.True(t, done)
	assert.Equal(t, "01:02:03", frame)
}

func TestReveal_OnlyStableGlyphs(t *testing.T) {
	r := NewReveal(" : ", rand.New(rand.NewSource(3)))
	frame, done := r.Frame(" : ", 0)
	assert.True(t, done)
	assert.Equal(t, " : ", frame)
}

func TestRevealDuration_Bounds(t *testing.T) {
	assert.Equal(t, minRevealDuration, RevealDuration(""))
	assert.Equal(t, maxRevealDuration, RevealDuration("123456789012"))
}

func TestSynchronizer_RenderBalance(t *testing.T) {
	s := newTestSynchronizer(clockwork.NewFakeClockAt(epoch), true)
	defer s.Close()

	a, b := &fakeElement{}, &fakeElement{}
	s.AddBalanceElement(a)
	s.AddBalanceElement(b)

	s.RenderBalance(1500)
	assert.Equal(t, "1,500", a.last())
	assert.Equal(t, "1,500", b.last())
}

func TestSynchronizer_Subscribe(t *testing.T) {
	s := newTestSynchronizer(clockwork.NewFakeClockAt(epoch), true)

	ch, cancel := s.Subscribe(4)
	s.PublishBalance(350)
	assert.Equal(t, int64(350), <-ch)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	ch, _ = s.Subscribe(1)
	s.PublishBalance(1)
	s.PublishBalance(2)
	assert.Equal(t, int64(2), <-ch, "slow subscriber keeps the newest value")

	s.Close()
	_, ok = <-ch
	assert.False(t, ok)

	ch, _ = s.Subscribe(1)
	_, ok = <-ch
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestSynchronizer_PublishBalanceAgreesUnderContention(t *testing.T) {
	s := newTestSynchronizer(clockwork.NewFakeClockAt(epoch), true)
	defer s.Close()

	el := &fakeElement{}
	s.AddBalanceElement(el)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.PublishBalance(int64(w*1000 + i))
			}
		}(w)
	}
	wg.Wait()

	last := <-ch
	assert.Equal(t, s.Format(last), el.last(), "element and subscriber saw different final values")
}

func TestSynchronizer_CountdownReducedMotion(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestSynchronizer(clock, true)
	defer s.Close()

	el := &fakeElement{}
	s.AddCountdownElement(el)

	next := epoch.Add(time.Hour + 2*time.Minute + 3*time.Second)
	s.RenderCountdown(next, epoch)
	assert.Equal(t, []string{"01:02:03"}, el.texts)
	assert.Equal(t, "Resets Thu, 15 Oct 2026 12:00 UTC", el.title)
}

func TestSynchronizer_CountdownOptOut(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestSynchronizer(clock, false)
	defer s.Close()

	el := &fakeElement{}
	s.AddCountdownElement(el, WithoutReveal())

	s.RenderCountdown(epoch.Add(90*time.Second), epoch)
	assert.Equal(t, []string{"00:01:30"}, el.texts)
}

func TestSynchronizer_CountdownRevealsOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestSynchronizer(clock, false)
	defer s.Close()

	el := &fakeElement{}
	s.AddCountdownElement(el)

	next := epoch.Add(time.Hour + 2*time.Minute + 3*time.Second)
	s.RenderCountdown(next, epoch)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.Eventually(t, func() bool { return el.count() >= 1 }, time.Second, 5*time.Millisecond)
	el.mu.Lock()
	first := el.texts[0]
	el.mu.Unlock()
	assert.NotEqual(t, "01:02:03", first)
	assert.Equal(t, byte(':'), first[2])

	clock.Advance(maxRevealDuration + frameInterval)
	require.Eventually(t, func() bool { return el.last() == "01:02:03" }, time.Second, 5*time.Millisecond)

	// Once revealed, updates replace the text directly.
	s.RenderCountdown(next, epoch.Add(time.Second))
	assert.Equal(t, "01:02:02", el.last())
}

func TestSynchronizer_RunCountdown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClockAt(epoch)
	s := newTestSynchronizer(clock, true)
	defer s.Close()

	el := &fakeElement{}
	s.AddCountdownElement(el)

	next := epoch.Add(10 * time.Minute)
	var gaps atomic.Int32
	done := make(chan struct{})
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		defer close(done)
		s.RunCountdown(runCtx, func() (time.Time, bool) { return next, true }, func() { gaps.Add(1) })
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.Eventually(t, func() bool { return el.last() == "00:10:00" }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return el.last() == "00:09:59" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), gaps.Load())

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return gaps.Load() == 1 }, time.Second, 5*time.Millisecond)

	stop()
	<-done
}

func TestPanel(t *testing.T) {
	var buf bytes.Buffer
	p := NewPanel(&buf)

	p.BalanceElement().SetText("1,500")
	p.CountdownElement().SetTitle("Resets soon")
	p.CountdownElement().SetText("00:00:05")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r\033[2KCoins: 1,500"))
	assert.True(t, strings.HasSuffix(out, "Coins: 1,500  Next reset in 00:00:05  (Resets soon)"))
}

func TestLogElement_LogsChangesOnly(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetOutput(io.Discard)
	el := NewLogElement(log, "balance changed")

	el.SetText("500")
	el.SetText("500")
	el.SetText("350")

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "350", hook.LastEntry().Data["value"])
}
