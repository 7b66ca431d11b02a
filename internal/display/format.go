package display

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NewPrinter returns a printer for locale, falling back to English when the
// tag cannot be parsed.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// FormatBalance renders n as a locale-grouped integer.
func FormatBalance(p *message.Printer, n int64) string {
	return p.Sprintf("%d", n)
}

// FormatCountdown renders d as HH:MM:SS. Hours are not wrapped at 24 and
// negative durations render as zero.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

// FormatResetTitle is the human readable absolute time shown alongside a
// countdown.
func FormatResetTitle(next time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return "Resets " + next.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
}
