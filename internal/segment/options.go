package segment

import (
	"github.com/kingrea/scoresmith/internal/tag"
)

// Options is the flags record of one segment build.
type Options struct {
	AppendPhantomMeasure        bool `yaml:"append_phantom_measure" json:"append_phantom_measure"`
	AttachNonfirstEmptyStartBar bool `yaml:"attach_nonfirst_empty_start_bar" json:"attach_nonfirst_empty_start_bar"`
	SkipsInsteadOfRests         bool `yaml:"skips_instead_of_rests" json:"skips_instead_of_rests"`
	FermataStaffLines           bool `yaml:"fermata_staff_lines" json:"fermata_staff_lines"`

	ColorOctaves              bool `yaml:"color_octaves" json:"color_octaves"`
	IgnoreUnpitchedNotes      bool `yaml:"ignore_unpitched_notes" json:"ignore_unpitched_notes"`
	IgnoreUnregisteredPitches bool `yaml:"ignore_unregistered_pitches" json:"ignore_unregistered_pitches"`
	IgnoreRepeatPitchClasses  bool `yaml:"ignore_repeat_pitch_classes" json:"ignore_repeat_pitch_classes"`
	IgnoreOutOfRangePitches   bool `yaml:"ignore_out_of_range_pitches" json:"ignore_out_of_range_pitches"`

	// Activate, Deactivate and Remove are tag words applied to wrappers on
	// silence-like leaves once all annotations exist.
	Activate   []string `yaml:"activate,omitempty" json:"activate,omitempty"`
	Deactivate []string `yaml:"deactivate,omitempty" json:"deactivate,omitempty"`
	Remove     []string `yaml:"remove,omitempty" json:"remove,omitempty"`

	// Require names indicator kinds every pitched leaf must have in effect.
	Require []string `yaml:"require,omitempty" json:"require,omitempty"`
	// Stages lists measure counts per rehearsal stage.
	Stages []int `yaml:"stages,omitempty" json:"stages,omitempty"`
}

// Merge returns o with every set field of override applied on top. Flags
// only ever switch on.
func (o Options) Merge(override Options) Options {
	out := o
	out.AppendPhantomMeasure = o.AppendPhantomMeasure || override.AppendPhantomMeasure
	out.AttachNonfirstEmptyStartBar = o.AttachNonfirstEmptyStartBar || override.AttachNonfirstEmptyStartBar
	out.SkipsInsteadOfRests = o.SkipsInsteadOfRests || override.SkipsInsteadOfRests
	out.FermataStaffLines = o.FermataStaffLines || override.FermataStaffLines
	out.ColorOctaves = o.ColorOctaves || override.ColorOctaves
	out.IgnoreUnpitchedNotes = o.IgnoreUnpitchedNotes || override.IgnoreUnpitchedNotes
	out.IgnoreUnregisteredPitches = o.IgnoreUnregisteredPitches || override.IgnoreUnregisteredPitches
	out.IgnoreRepeatPitchClasses = o.IgnoreRepeatPitchClasses || override.IgnoreRepeatPitchClasses
	out.IgnoreOutOfRangePitches = o.IgnoreOutOfRangePitches || override.IgnoreOutOfRangePitches
	if len(override.Activate) > 0 {
		out.Activate = append([]string(nil), override.Activate...)
	}
	if len(override.Deactivate) > 0 {
		out.Deactivate = append([]string(nil), override.Deactivate...)
	}
	if len(override.Remove) > 0 {
		out.Remove = append([]string(nil), override.Remove...)
	}
	if len(override.Require) > 0 {
		out.Require = append([]string(nil), override.Require...)
	}
	if len(override.Stages) > 0 {
		out.Stages = append([]int(nil), override.Stages...)
	}
	return out
}

func (o Options) activationSets() (activate, deactivate, remove tag.Set) {
	return tag.NewSet(o.Activate...), tag.NewSet(o.Deactivate...), tag.NewSet(o.Remove...)
}
