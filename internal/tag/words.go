package tag

// Edition words.
const (
	OnlyParts   = "+PARTS"
	NotParts    = "-PARTS"
	OnlySegment = "+SEGMENT"
	NotSegment  = "-SEGMENT"
	OnlyScore   = "+SCORE"
	NotScore    = "-SCORE"
)

// Provenance words recording which pipeline phase attached an annotation.
const (
	Skeleton        = "SKELETON"
	Phantom         = "PHANTOM"
	Silence         = "SILENCE"
	HiddenNote      = "HIDDEN_NOTE"
	Reapplied       = "REAPPLIED"
	Explicit        = "EXPLICIT"
	Redundant       = "REDUNDANT"
	Default         = "DEFAULT"
	Command         = "COMMAND"
	TempoBracket    = "TEMPO_BRACKET"
	Fermata         = "FERMATA"
	FermataStaff    = "FERMATA_STAFF_LINES"
	Validation      = "VALIDATION"
	ClockTime       = "CLOCK_TIME"
	MeasureNumber   = "MEASURE_NUMBER"
	LocalMeasure    = "LOCAL_MEASURE_NUMBER"
	StageNumber     = "STAGE_NUMBER"
	EmptyStartBar   = "EMPTY_START_BAR"
	TimeSignature   = "TIME_SIGNATURE"
	NotYetPitched   = "NOT_YET_PITCHED"
	NotRegistered   = "NOT_YET_REGISTERED"
	RepeatPitch     = "REPEAT_PITCH_CLASS"
	OctaveCollision = "OCTAVE_COLLISION"
	OutOfRange      = "OUT_OF_RANGE"
	PartAssignment  = "PART_ASSIGNMENT"
)

// Status words combine a classification with an indicator kind, for example
// REAPPLIED_CLEF or EXPLICIT_INSTRUMENT.
func Status(status, kind string) string {
	return status + "_" + kind
}
