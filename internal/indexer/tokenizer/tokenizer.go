// Package tokenizer turns free text into the token, bigram and trigram sets
// used both when indexing questions and when resolving search queries. It
// lower-cases input, keeps ASCII letters, digits and Hangul syllables, and
// derives character n-grams from the whitespace-free form of the text.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinTokenLength    = 2
	DefaultMaxSequenceLength = 500

	hangulFirst = '가'
	hangulLast  = '힣'
)

// Field names one of the three sequences of a TokenSet. The values double as
// the persisted column names.
type Field string

const (
	FieldTokens   Field = "tokens"
	FieldBigrams  Field = "bigrams"
	FieldTrigrams Field = "trigrams"
)

// Fields lists every field in query resolution order.
var Fields = []Field{FieldTokens, FieldBigrams, FieldTrigrams}

// Options bounds token length and sequence size. Zero values fall back to
// the package defaults.
type Options struct {
	MinTokenLength    int
	MaxSequenceLength int
}

// DefaultOptions returns the options used by the package-level Tokenize.
func DefaultOptions() Options {
	return Options{
		MinTokenLength:    DefaultMinTokenLength,
		MaxSequenceLength: DefaultMaxSequenceLength,
	}
}

// TokenSet is the searchable form of one piece of text.
type TokenSet struct {
	Tokens   []string `json:"tokens"`
	Bigrams  []string `json:"bigrams"`
	Trigrams []string `json:"trigrams"`
}

// Values returns the sequence stored under f, or nil for an unknown field.
func (s TokenSet) Values(f Field) []string {
	switch f {
	case FieldTokens:
		return s.Tokens
	case FieldBigrams:
		return s.Bigrams
	case FieldTrigrams:
		return s.Trigrams
	default:
		return nil
	}
}

// IsEmpty reports whether all three sequences are empty.
func (s TokenSet) IsEmpty() bool {
	return len(s.Tokens) == 0 && len(s.Bigrams) == 0 && len(s.Trigrams) == 0
}

// Tokenizer produces TokenSets under a fixed set of Options.
type Tokenizer struct {
	opts Options
}

// New creates a Tokenizer, filling in defaults for non-positive options.
func New(opts Options) *Tokenizer {
	defaults := DefaultOptions()
	if opts.MinTokenLength <= 0 {
		opts.MinTokenLength = defaults.MinTokenLength
	}
	if opts.MaxSequenceLength <= 0 {
		opts.MaxSequenceLength = defaults.MaxSequenceLength
	}
	return &Tokenizer{opts: opts}
}

var defaultTokenizer = New(DefaultOptions())

// Tokenize runs the default Tokenizer over text.
func Tokenize(text string) TokenSet {
	return defaultTokenizer.Tokenize(text)
}

// Options returns the effective options.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Tokenize converts text into a TokenSet. It accepts any string and never
// fails; text with nothing matchable yields three empty sequences.
func (t *Tokenizer) Tokenize(text string) TokenSet {
	normalized := Normalize(text)
	if normalized == "" {
		return emptySet()
	}

	words := strings.Fields(normalized)
	tokens := newUniqueList(t.opts.MaxSequenceLength)
	for _, w := range words {
		if tokens.full() {
			break
		}
		if utf8.RuneCountInString(w) < t.opts.MinTokenLength {
			continue
		}
		tokens.add(w)
	}

	compact := []rune(strings.Join(words, ""))
	return TokenSet{
		Tokens:   tokens.items,
		Bigrams:  buildNgrams(compact, 2, t.opts.MaxSequenceLength),
		Trigrams: buildNgrams(compact, 3, t.opts.MaxSequenceLength),
	}
}

// Normalize lower-cases text and collapses every run of characters other
// than ASCII digits, ASCII letters and Hangul syllables into a single space.
// Leading and trailing separators are dropped.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		if !isMatchable(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isMatchable(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= hangulFirst && r <= hangulLast:
		return true
	}
	return false
}

// buildNgrams slides a window of size n over text and collects distinct
// grams in first-occurrence order, stopping at limit.
func buildNgrams(text []rune, n, limit int) []string {
	if len(text) < n {
		return []string{}
	}
	grams := newUniqueList(limit)
	for i := 0; i+n <= len(text) && !grams.full(); i++ {
		grams.add(string(text[i : i+n]))
	}
	return grams.items
}

func emptySet() TokenSet {
	return TokenSet{
		Tokens:   []string{},
		Bigrams:  []string{},
		Trigrams: []string{},
	}
}

// uniqueList is an insertion-ordered string set with a size cap.
type uniqueList struct {
	items []string
	seen  map[string]struct{}
	limit int
}

func newUniqueList(limit int) *uniqueList {
	return &uniqueList{
		items: []string{},
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

func (u *uniqueList) full() bool {
	return len(u.items) >= u.limit
}

func (u *uniqueList) add(s string) {
	if u.full() {
		return
	}
	if _, dup := u.seen[s]; dup {
		return
	}
	u.seen[s] = struct{}{}
	u.items = append(u.items, s)
}
