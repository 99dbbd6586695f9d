package scope

import (
	"fmt"
	"strings"
)

// Decode reads a target from loosely typed definition data. Accepted forms:
//
//	"Violin_Voice"
//	{voice: Violin_Voice, measures: 3}
//	{voice: Violin_Voice, measures: [2, -1]}
//	[{voice: A}, {voice: B, measures: [1, 2]}]   (timeline)
func Decode(value any) (Target, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("scope: missing target")
	case string:
		return decodeScope(map[string]any{"voice": v})
	case map[string]any:
		if timeline, ok := v["timeline"]; ok {
			return decodeTimeline(timeline)
		}
		return decodeScope(v)
	case []any:
		return decodeTimeline(v)
	}
	return nil, fmt.Errorf("scope: unsupported target %T", value)
}

func decodeTimeline(value any) (Timeline, error) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("scope: timeline must be a non-empty list")
	}
	out := make(Timeline, 0, len(items))
	for _, item := range items {
		target, err := Decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, target.Scopes()...)
	}
	return out, nil
}

func decodeScope(raw map[string]any) (Scope, error) {
	voice, _ := raw["voice"].(string)
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return Scope{}, fmt.Errorf("scope: voice is required")
	}
	s := Scope{Voice: voice}
	switch m := raw["measures"].(type) {
	case nil:
	case int:
		s.Start, s.Stop = m, m
	case []any:
		if len(m) != 2 {
			return Scope{}, fmt.Errorf("scope: measures range needs two bounds, got %d", len(m))
		}
		start, ok1 := m[0].(int)
		stop, ok2 := m[1].(int)
		if !ok1 || !ok2 {
			return Scope{}, fmt.Errorf("scope: measures bounds must be integers")
		}
		s.Start, s.Stop = start, stop
	default:
		return Scope{}, fmt.Errorf("scope: unsupported measures value %T", m)
	}
	return s, nil
}
