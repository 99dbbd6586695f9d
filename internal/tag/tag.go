// Package tag implements provenance tags. A tag is an ordered list of interned
// words; words starting with '+' or '-' are edition words that scope an
// annotation to (or away from) a particular rendering such as the full score
// or the extracted parts.
package tag

import (
	"strings"
	"sync"
)

// Separator joins words in the textual form of a tag.
const Separator = ":"

// Word is an interned tag component.
type Word uint32

type internTable struct {
	mu    sync.RWMutex
	ids   map[string]Word
	names []string
}

var table = &internTable{ids: map[string]Word{}, names: []string{""}}

// Intern returns the identifier for s, allocating one on first use.
func Intern(s string) Word {
	table.mu.RLock()
	w, ok := table.ids[s]
	table.mu.RUnlock()
	if ok {
		return w
	}
	table.mu.Lock()
	defer table.mu.Unlock()
	if w, ok := table.ids[s]; ok {
		return w
	}
	w = Word(len(table.names))
	table.names = append(table.names, s)
	table.ids[s] = w
	return w
}

// Lookup returns the identifier for s without allocating.
func Lookup(s string) (Word, bool) {
	table.mu.RLock()
	defer table.mu.RUnlock()
	w, ok := table.ids[s]
	return w, ok
}

func (w Word) String() string {
	table.mu.RLock()
	defer table.mu.RUnlock()
	if int(w) >= len(table.names) {
		return ""
	}
	return table.names[w]
}

// IsEdition reports whether the word scopes an annotation to a rendering.
func (w Word) IsEdition() bool {
	s := w.String()
	return strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
}

// Tag is an immutable ordered word list. The zero value is the empty tag.
type Tag struct {
	words []Word
}

// New builds a tag from words; a word containing the separator is split.
func New(words ...string) Tag {
	var out Tag
	for _, w := range words {
		out = out.add(w)
	}
	return out
}

// Parse reads the separator-joined textual form.
func Parse(s string) Tag {
	return New(s)
}

func (t Tag) add(text string) Tag {
	for _, part := range strings.Split(text, Separator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w := Intern(part)
		if t.Contains(w) {
			continue
		}
		t.words = append(t.words[:len(t.words):len(t.words)], w)
	}
	return t
}

// Append returns a new tag with the words added after the existing ones.
func (t Tag) Append(words ...string) Tag {
	out := t
	for _, w := range words {
		out = out.add(w)
	}
	return out
}

// Concat returns t followed by the words of o not already present.
func (t Tag) Concat(o Tag) Tag {
	out := t
	for _, w := range o.words {
		if out.Contains(w) {
			continue
		}
		out.words = append(out.words[:len(out.words):len(out.words)], w)
	}
	return out
}

// Without drops the given words.
func (t Tag) Without(words ...string) Tag {
	drop := NewSet(words...)
	var out Tag
	for _, w := range t.words {
		if _, ok := drop[w]; ok {
			continue
		}
		out.words = append(out.words, w)
	}
	return out
}

// Contains reports whether w is one of the tag's words.
func (t Tag) Contains(w Word) bool {
	for _, existing := range t.words {
		if existing == w {
			return true
		}
	}
	return false
}

// Has is Contains for a textual word. Unknown words are never contained.
func (t Tag) Has(word string) bool {
	w, ok := Lookup(word)
	if !ok {
		return false
	}
	return t.Contains(w)
}

// Intersects reports whether any word of t belongs to set.
func (t Tag) Intersects(set Set) bool {
	for _, w := range t.words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Editions keeps only the edition words.
func (t Tag) Editions() Tag {
	var out Tag
	for _, w := range t.words {
		if w.IsEdition() {
			out.words = append(out.words, w)
		}
	}
	return out
}

// Words returns a copy of the interned words.
func (t Tag) Words() []Word {
	return append([]Word(nil), t.words...)
}

// Strings returns the textual words in order.
func (t Tag) Strings() []string {
	if len(t.words) == 0 {
		return nil
	}
	out := make([]string, len(t.words))
	for i, w := range t.words {
		out[i] = w.String()
	}
	return out
}

func (t Tag) IsEmpty() bool { return len(t.words) == 0 }

func (t Tag) Len() int { return len(t.words) }

func (t Tag) String() string {
	return strings.Join(t.Strings(), Separator)
}

// Equal compares word sequences.
func (t Tag) Equal(o Tag) bool {
	if len(t.words) != len(o.words) {
		return false
	}
	for i := range t.words {
		if t.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Set is an unordered collection of words used for activation queries.
type Set map[Word]struct{}

// NewSet interns every word (splitting on the separator).
func NewSet(words ...string) Set {
	set := Set{}
	for _, text := range words {
		for _, part := range strings.Split(text, Separator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			set[Intern(part)] = struct{}{}
		}
	}
	return set
}

func (s Set) Len() int { return len(s) }
