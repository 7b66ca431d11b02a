package display

import (
	"math/rand"
	"time"
	"unicode"
)

const (
	minRevealDuration = 350 * time.Millisecond
	maxRevealDuration = 820 * time.Millisecond
	revealPerGlyph    = 60 * time.Millisecond

	// frameInterval approximates one display refresh.
	frameInterval = 16 * time.Millisecond
)

const fillerGlyphs = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789#$%&*+?@"

// Reveal produces the frames of the scramble-to-reveal effect. Glyphs that are
// not whitespace or punctuation are uncovered left to right over the reveal
// duration; covered positions show random filler.
type Reveal struct {
	duration time.Duration
	rnd      *rand.Rand
}

// NewReveal sizes the effect for text. The duration grows with the number of
// glyphs to uncover, bounded to [350ms, 820ms].
func NewReveal(text string, rnd *rand.Rand) *Reveal {
	return &Reveal{duration: RevealDuration(text), rnd: rnd}
}

func (r *Reveal) Duration() time.Duration { return r.duration }

// Frame renders text as it looks elapsed into the effect. done reports that
// the text is fully revealed; the returned string then equals text.
func (r *Reveal) Frame(text string, elapsed time.Duration) (frame string, done bool) {
	if elapsed >= r.duration {
		return text, true
	}
	if elapsed < 0 {
		elapsed = 0
	}

	runes := []rune(text)
	glyphs := countGlyphs(runes)
	if glyphs == 0 {
		return text, true
	}
	uncovered := int(int64(glyphs) * int64(elapsed) / int64(r.duration))

	seen := 0
	for i, c := range runes {
		if stableGlyph(c) {
			continue
		}
		if seen >= uncovered {
			runes[i] = rune(fillerGlyphs[r.rnd.Intn(len(fillerGlyphs))])
		}
		seen++
	}
	return string(runes), false
}

// RevealDuration returns how long the effect runs for text.
func RevealDuration(text string) time.Duration {
	d := minRevealDuration + time.Duration(countGlyphs([]rune(text)))*revealPerGlyph
	if d > maxRevealDuration {
		return maxRevealDuration
	}
	return d
}

func countGlyphs(runes []rune) int {
	n := 0
	for _, c := range runes {
		if !stableGlyph(c) {
			n++
		}
	}
	return n
}

// stableGlyph reports whether c renders immediately instead of scrambling.
func stableGlyph(c rune) bool {
	return unicode.IsSpace(c) || unicode.IsPunct(c)
}
