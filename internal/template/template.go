// Package template builds the empty context hierarchy a segment is
// interpreted into: global skip and rest tracks plus one staff per declared
// instrument line.
package template

import (
	"fmt"
	"strings"

	"github.com/kingrea/scoresmith/internal/tree"
)

// Context names shared by every score built from a Template.
const (
	Score         = "Score"
	GlobalContext = "GlobalContext"
	GlobalSkips   = "GlobalSkips"
	GlobalRests   = "GlobalRests"
	MusicContext  = "MusicContext"
)

// Staff declares one staff, its voices and the defaults the first segment
// receives when nothing else sets them.
type Staff struct {
	Name         string   `yaml:"name" json:"name"`
	Voices       []string `yaml:"voices,omitempty" json:"voices,omitempty"`
	Clef         string   `yaml:"clef,omitempty" json:"clef,omitempty"`
	Instrument   string   `yaml:"instrument,omitempty" json:"instrument,omitempty"`
	MarginMarkup string   `yaml:"margin_markup,omitempty" json:"margin_markup,omitempty"`
}

// ContextName is the staff context's name.
func (s Staff) ContextName() string {
	return s.Name + "_Staff"
}

// VoiceNames returns the declared voices or a single default voice.
func (s Staff) VoiceNames() []string {
	if len(s.Voices) == 0 {
		return []string{s.Name + "_Voice"}
	}
	return append([]string(nil), s.Voices...)
}

// Template is an ordered list of staves.
type Template struct {
	Staves []Staff `yaml:"staves" json:"staves"`
}

// Validate rejects missing or clashing names.
func (t Template) Validate() error {
	if len(t.Staves) == 0 {
		return fmt.Errorf("template: at least one staff is required")
	}
	seen := map[string]bool{
		Score: true, GlobalContext: true, GlobalSkips: true, GlobalRests: true, MusicContext: true,
	}
	claim := func(name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("template: empty context name")
		}
		if seen[name] {
			return fmt.Errorf("template: duplicate context name %q", name)
		}
		seen[name] = true
		return nil
	}
	for _, staff := range t.Staves {
		if strings.TrimSpace(staff.Name) == "" {
			return fmt.Errorf("template: staff name is required")
		}
		if err := claim(staff.ContextName()); err != nil {
			return err
		}
		for _, voice := range staff.VoiceNames() {
			if err := claim(voice); err != nil {
				return err
			}
		}
	}
	return nil
}

// VoiceNames lists every music voice in declaration order.
func (t Template) VoiceNames() []string {
	var out []string
	for _, staff := range t.Staves {
		out = append(out, staff.VoiceNames()...)
	}
	return out
}

// StaffOf returns the staff declaring voice.
func (t Template) StaffOf(voice string) (Staff, bool) {
	for _, staff := range t.Staves {
		for _, name := range staff.VoiceNames() {
			if name == voice {
				return staff, true
			}
		}
	}
	return Staff{}, false
}

// Build returns a fresh tree with every context in place and no leaves.
func (t Template) Build() (*tree.Tree, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	tr := tree.New(Score, tree.ContextScore)
	global, err := tr.AddContext(tr.Root(), tree.ContextGlobal, GlobalContext, true)
	if err != nil {
		return nil, err
	}
	if _, err := tr.AddContext(global, GlobalSkips, GlobalSkips, false); err != nil {
		return nil, err
	}
	if _, err := tr.AddContext(global, GlobalRests, GlobalRests, false); err != nil {
		return nil, err
	}
	music, err := tr.AddContext(tr.Root(), MusicContext, MusicContext, true)
	if err != nil {
		return nil, err
	}
	for _, staff := range t.Staves {
		staffID, err := tr.AddContext(music, tree.ContextStaff, staff.ContextName(), true)
		if err != nil {
			return nil, err
		}
		for _, voice := range staff.VoiceNames() {
			if _, err := tr.AddContext(staffID, tree.ContextVoice, voice, false); err != nil {
				return nil, err
			}
		}
	}
	return tr, nil
}
