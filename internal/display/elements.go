package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Panel is a single terminal status line with a balance slot and a
// countdown slot. It redraws in place, so it only suits a terminal.
type Panel struct {
	mu        sync.Mutex
	w         io.Writer
	balance   string
	countdown string
	title     string
}

func NewPanel(w io.Writer) *Panel {
	return &Panel{w: w}
}

// BalanceElement returns the element rendering the balance slot.
func (p *Panel) BalanceElement() Element { return panelSlot{p: p, countdown: false} }

// CountdownElement returns the element rendering the countdown slot.
func (p *Panel) CountdownElement() Element { return panelSlot{p: p, countdown: true} }

func (p *Panel) redraw() {
	line := "Coins: " + p.balance
	if p.countdown != "" {
		line += "  Next reset in " + p.countdown
	}
	if p.title != "" {
		line += "  (" + p.title + ")"
	}
	fmt.Fprint(p.w, "\r\033[2K"+line)
}

type panelSlot struct {
	p         *Panel
	countdown bool
}

func (s panelSlot) SetText(text string) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.countdown {
		s.p.countdown = text
	} else {
		s.p.balance = text
	}
	s.p.redraw()
}

func (s panelSlot) SetTitle(title string) {
	if !s.countdown {
		return
	}
	s.p.mu.Lock()
	s.p.title = title
	s.p.mu.Unlock()
}

// LogElement reports every change of its text as a log line. It is the
// balance display when output is not a terminal.
type LogElement struct {
	log  logrus.FieldLogger
	msg  string
	mu   sync.Mutex
	last string
}

func NewLogElement(log logrus.FieldLogger, msg string) *LogElement {
	return &LogElement{log: log, msg: msg}
}

func (e *LogElement) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if text == e.last {
		return
	}
	e.last = text
	e.log.WithField("value", text).Info(e.msg)
}

func (e *LogElement) SetTitle(string) {}
