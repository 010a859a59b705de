package dialog

import "strings"

// defaultMinSentenceLength is the floor below which a boundary rune does
// not flush, so abbreviations and short exclamations coalesce with the
// following text.
const defaultMinSentenceLength = 10

var sentenceBoundaries = map[rune]bool{
	'.':  true,
	'!':  true,
	'?':  true,
	'\n': true,
}

// SentenceAssembler accumulates streamed LLM fragments and emits complete
// sentences for synthesis. A sentence is ready when a fragment ends with a
// boundary rune and the buffer has grown past the minimum length.
type SentenceAssembler struct {
	buf       strings.Builder
	minLength int
}

// NewSentenceAssembler creates an assembler. minLength <= 0 uses the
// default floor of 10 runes.
func NewSentenceAssembler(minLength int) *SentenceAssembler {
	if minLength <= 0 {
		minLength = defaultMinSentenceLength
	}
	return &SentenceAssembler{minLength: minLength}
}

// Push appends one fragment. When the fragment completes a sentence the
// buffered text is returned with ok true and the buffer resets.
func (a *SentenceAssembler) Push(fragment string) (string, bool) {
	if fragment == "" {
		return "", false
	}
	a.buf.WriteString(fragment)

	if !endsAtBoundary(fragment) {
		return "", false
	}
	if len([]rune(a.buf.String())) < a.minLength {
		return "", false
	}

	sentence := a.buf.String()
	a.buf.Reset()
	return sentence, true
}

// FlushRemaining returns whatever is buffered at end of stream. Whitespace-
// only leftovers are dropped.
func (a *SentenceAssembler) FlushRemaining() (string, bool) {
	remaining := a.buf.String()
	a.buf.Reset()
	if strings.TrimSpace(remaining) == "" {
		return "", false
	}
	return remaining, true
}

// Pending returns the number of buffered bytes.
func (a *SentenceAssembler) Pending() int {
	return a.buf.Len()
}

func endsAtBoundary(fragment string) bool {
	runes := []rune(fragment)
	return len(runes) > 0 && sentenceBoundaries[runes[len(runes)-1]]
}
