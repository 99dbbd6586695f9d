package command

import (
	"sort"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/manifest"
)

// Runtime is the read-only bundle threaded into every command invocation.
// It is passed by value and never mutated after construction.
type Runtime struct {
	segment      string
	firstMeasure int
	manifests    *manifest.Manifests
	previous     map[string]map[string]any
	starts       []duration.Duration
}

// NewRuntime copies its inputs. starts holds the start offset of every
// measure in the segment.
func NewRuntime(segment string, firstMeasure int, manifests *manifest.Manifests, previous map[string]map[string]any, starts []duration.Duration) Runtime {
	if firstMeasure < 1 {
		firstMeasure = 1
	}
	if manifests == nil {
		manifests = manifest.New()
	}
	copied := make(map[string]map[string]any, len(previous))
	for voice, state := range previous {
		inner := make(map[string]any, len(state))
		for k, v := range state {
			inner[k] = v
		}
		copied[voice] = inner
	}
	return Runtime{
		segment:      segment,
		firstMeasure: firstMeasure,
		manifests:    manifests,
		previous:     copied,
		starts:       append([]duration.Duration(nil), starts...),
	}
}

// Segment is the name of the segment being built.
func (r Runtime) Segment() string { return r.segment }

// FirstMeasure is the global number of the segment's first measure.
func (r Runtime) FirstMeasure() int { return r.firstMeasure }

// Manifests returns the named lookup tables.
func (r Runtime) Manifests() *manifest.Manifests { return r.manifests }

// PreviousState returns what the previous segment persisted for voice under
// parameter.
func (r Runtime) PreviousState(voice, parameter string) (any, bool) {
	state, ok := r.previous[voice][parameter]
	return state, ok
}

// MeasureNumberAt maps an offset to its global measure number.
func (r Runtime) MeasureNumberAt(offset duration.Duration) int {
	if len(r.starts) == 0 {
		return r.firstMeasure
	}
	i := sort.Search(len(r.starts), func(i int) bool {
		return offset.Less(r.starts[i])
	})
	if i == 0 {
		i = 1
	}
	return r.firstMeasure + i - 1
}
