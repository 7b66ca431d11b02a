// Package display pushes balance and countdown state into registered
// elements and notifies in-process listeners of balance changes.
package display

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/message"
)

const (
	countdownInterval = time.Second
	// A tick arriving later than this after the previous one means the host
	// was suspended or the wall clock jumped.
	wakeGapThreshold = 3 * time.Second
)

// Element is a render target: a status line slot, a log sink, a UI widget.
// Calls are serialized by the Synchronizer and must not block.
type Element interface {
	SetText(text string)
	SetTitle(title string)
}

type ElementOption func(*countdownSlot)

// WithoutReveal makes a countdown element skip the reveal effect.
func WithoutReveal() ElementOption {
	return func(s *countdownSlot) { s.noReveal = true }
}

type revealState int

const (
	revealPending revealState = iota
	revealRunning
	revealDone
)

type countdownSlot struct {
	el       Element
	noReveal bool
	state    revealState
	target   string
}

type Options struct {
	Clock    clockwork.Clock
	Printer  *message.Printer
	Location *time.Location
	// ReducedMotion disables the reveal effect for every element.
	ReducedMotion bool
	Rand          *rand.Rand
}

type Synchronizer struct {
	clock         clockwork.Clock
	printer       *message.Printer
	loc           *time.Location
	reducedMotion bool

	mu         sync.Mutex
	rnd        *rand.Rand
	balances   []Element
	countdowns []*countdownSlot
	subs       map[int]chan int64
	nextSub    int
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSynchronizer(opts Options) *Synchronizer {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Printer == nil {
		opts.Printer = NewPrinter("en")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		clock:         opts.Clock,
		printer:       opts.Printer,
		loc:           opts.Location,
		reducedMotion: opts.ReducedMotion,
		rnd:           opts.Rand,
		subs:          make(map[int]chan int64),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *Synchronizer) AddBalanceElement(el Element) {
	s.mu.Lock()
	s.balances = append(s.balances, el)
	s.mu.Unlock()
}

func (s *Synchronizer) AddCountdownElement(el Element, opts ...ElementOption) {
	slot := &countdownSlot{el: el}
	for _, opt := range opts {
		opt(slot)
	}
	s.mu.Lock()
	s.countdowns = append(s.countdowns, slot)
	s.mu.Unlock()
}

func (s *Synchronizer) Format(n int64) string {
	return FormatBalance(s.printer, n)
}

// RenderBalance writes n into every balance element.
func (s *Synchronizer) RenderBalance(n int64) {
	text := s.Format(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderBalanceLocked(text)
}

// PublishBalance renders n and delivers it to every subscriber. Both happen
// under one lock so elements and subscribers agree on the latest value when
// local writes and remote changes race.
func (s *Synchronizer) PublishBalance(n int64) {
	text := s.Format(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderBalanceLocked(text)

	for _, ch := range s.subs {
		// Slow subscribers drop the oldest pending value, never block rendering.
		select {
		case ch <- n:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}

func (s *Synchronizer) renderBalanceLocked(text string) {
	for _, el := range s.balances {
		el.SetText(text)
	}
}

// Subscribe returns a channel that receives every published balance and a
// function that ends the subscription.
func (s *Synchronizer) Subscribe(buffer int) (<-chan int64, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan int64, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// RenderCountdown shows the time remaining until next in every countdown
// element. The first render of an element plays the reveal effect unless
// motion is reduced or the element opted out; later renders replace the
// text directly.
func (s *Synchronizer) RenderCountdown(next, now time.Time) {
	text := FormatCountdown(next.Sub(now))
	title := FormatResetTitle(next, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, slot := range s.countdowns {
		slot.el.SetTitle(title)
		slot.target = text

		switch slot.state {
		case revealRunning:
			// the running effect picks up the new target on its next frame
		case revealPending:
			if s.reducedMotion || slot.noReveal {
				slot.state = revealDone
				slot.el.SetText(text)
				continue
			}
			slot.state = revealRunning
			s.wg.Add(1)
			go s.animate(slot)
		default:
			slot.el.SetText(text)
		}
	}
}

func (s *Synchronizer) animate(slot *countdownSlot) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(frameInterval)
	defer ticker.Stop()

	s.mu.Lock()
	start := s.clock.Now()
	reveal := NewReveal(slot.target, s.rnd)
	done := s.drawFrame(slot, reveal, 0)
	s.mu.Unlock()
	if done {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.mu.Lock()
			done := s.drawFrame(slot, reveal, s.clock.Since(start))
			s.mu.Unlock()
			if done {
				return
			}
		}
	}
}

// drawFrame must be called with s.mu held.
func (s *Synchronizer) drawFrame(slot *countdownSlot, reveal *Reveal, elapsed time.Duration) bool {
	frame, done := reveal.Frame(slot.target, elapsed)
	slot.el.SetText(frame)
	if done {
		slot.state = revealDone
	}
	return done
}

// RunCountdown refreshes countdown elements once per second until ctx ends.
// next supplies the current reset instant; ok=false skips a refresh. onGap is
// called when the wall clock moved much further than one interval between
// ticks, which happens after the host resumes from suspend.
func (s *Synchronizer) RunCountdown(ctx context.Context, next func() (time.Time, bool), onGap func()) {
	ticker := s.clock.NewTicker(countdownInterval)
	defer ticker.Stop()

	last := s.clock.Now()
	if ts, ok := next(); ok {
		s.RenderCountdown(ts, last)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			now := s.clock.Now()
			// Round(0) drops the monotonic reading, which stops during suspend.
			if gap := now.Round(0).Sub(last.Round(0)); gap > wakeGapThreshold && onGap != nil {
				onGap()
			}
			last = now
			if ts, ok := next(); ok {
				s.RenderCountdown(ts, now)
			}
		}
	}
}

// Close stops running effects and ends every subscription.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
