package command

import (
	"fmt"
	"strings"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/scope"
	"github.com/kingrea/scoresmith/internal/tag"
	"github.com/kingrea/scoresmith/internal/tree"
)

// Command is anything the interpreter can dispatch.
type Command interface {
	Name() string
	Target() scope.Target
	String() string
}

// RhythmCommand generates the leaves of one voice over a measure range.
type RhythmCommand interface {
	Command
	// MakeSelection returns detached nodes allocated in tr whose durations
	// sum to exactly the total of sigs.
	MakeSelection(tr *tree.Tree, sigs []duration.TimeSignature, rt Runtime) ([]tree.NodeID, error)
}

// IndicatorCommand annotates or restructures a resolved selection.
type IndicatorCommand interface {
	Command
	Apply(tr *tree.Tree, leaves []tree.NodeID, rt Runtime) error
	// Mutates reports whether Apply inserts, removes or regroups nodes.
	Mutates() bool
}

// Stateful commands persist a piece of per-voice state for the next segment.
type Stateful interface {
	PersistKey() string
	StateFor(voice string) (any, bool)
}

// EmptyAllower lets a command accept an empty selection with a warning.
type EmptyAllower interface {
	AllowEmpty() bool
}

// Base carries the options every stock command shares.
type Base struct {
	name       string
	target     scope.Target
	allowEmpty bool
	persist    string
	tag        tag.Tag
	states     map[string]any
}

// NewBase decodes the shared keys: scope, allow_empty, persist and tag.
func NewBase(name string, cfg Config) (Base, error) {
	target, err := scope.Decode(cfg["scope"])
	if err != nil {
		return Base{}, fmt.Errorf("command: %s: %w", name, err)
	}
	allowEmpty, err := cfg.Bool("allow_empty", false)
	if err != nil {
		return Base{}, fmt.Errorf("command: %s: %w", name, err)
	}
	persist, err := cfg.OptionalString("persist")
	if err != nil {
		return Base{}, fmt.Errorf("command: %s: %w", name, err)
	}
	extra, err := cfg.OptionalString("tag")
	if err != nil {
		return Base{}, fmt.Errorf("command: %s: %w", name, err)
	}
	return Base{
		name:       name,
		target:     target,
		allowEmpty: allowEmpty,
		persist:    persist,
		tag:        tag.New(tag.Command).Concat(tag.Parse(extra)),
	}, nil
}

// Name implements Command.
func (b *Base) Name() string { return b.name }

// Target implements Command.
func (b *Base) Target() scope.Target { return b.target }

// AllowEmpty implements EmptyAllower.
func (b *Base) AllowEmpty() bool { return b.allowEmpty }

// PersistKey implements Stateful.
func (b *Base) PersistKey() string { return b.persist }

// StateFor implements Stateful.
func (b *Base) StateFor(voice string) (any, bool) {
	state, ok := b.states[voice]
	return state, ok
}

// Tag is the provenance tag for wrappers this command attaches.
func (b *Base) Tag() tag.Tag { return b.tag }

func (b *Base) remember(voice string, state any) {
	if b.persist == "" {
		return
	}
	if b.states == nil {
		b.states = map[string]any{}
	}
	b.states[voice] = state
}

func (b *Base) String() string {
	return fmt.Sprintf("%s(%s)", b.name, b.target)
}

// Config is the loosely typed option map a factory receives.
type Config map[string]any

// String returns a required string option.
func (c Config) String(key string) (string, error) {
	value, err := c.OptionalString(key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// OptionalString returns a string option or "".
func (c Config) OptionalString(key string) (string, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case int, float64:
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("%s must be a string, got %T", key, raw)
}

// Strings returns a list option; a single string is a one-element list.
func (c Config) Strings(key string) ([]string, error) {
	switch v := c[key].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case int, float64:
				out = append(out, fmt.Sprint(s))
			default:
				return nil, fmt.Errorf("%s entries must be strings, got %T", key, item)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s must be a list, got %T", key, c[key])
}

// Int returns an integer option or def.
func (c Config) Int(key string, def int) (int, error) {
	switch v := c[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(v), nil
	}
	return 0, fmt.Errorf("%s must be an integer, got %T", key, c[key])
}

// Bool returns a boolean option or def.
func (c Config) Bool(key string, def bool) (bool, error) {
	switch v := c[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	}
	return false, fmt.Errorf("%s must be a boolean, got %T", key, c[key])
}
