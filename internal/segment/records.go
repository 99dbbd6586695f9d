package segment

import (
	"encoding/json"
	"fmt"

	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
)

// Metadata is the display and bookkeeping record of a built segment.
type Metadata struct {
	Segment               string   `json:"segment,omitempty"`
	FirstMeasureNumber    int      `json:"first_measure_number"`
	FinalMeasureNumber    int      `json:"final_measure_number"`
	TimeSignatures        []string `json:"time_signatures"`
	Duration              string   `json:"duration"`
	FermataMeasureNumbers []int    `json:"fermata_measure_numbers"`
	LastMeasureIsFermata  bool     `json:"last_measure_is_fermata"`
	StartClockTime        *float64 `json:"start_clock_time"`
	StopClockTime         *float64 `json:"stop_clock_time"`
	FirstMetronomeMark    bool     `json:"first_metronome_mark"`
}

// PartAssignment is the (part, timespan) pair recorded per part container.
type PartAssignment struct {
	Part  string            `json:"part"`
	Start duration.Duration `json:"start"`
	Stop  duration.Duration `json:"stop"`
}

// Persist is the authoritative bootstrap record for the next segment.
type Persist struct {
	AliveDuringSegment        []string                       `json:"alive_during_segment"`
	PersistentIndicators      map[string][]indicator.Memento `json:"persistent_indicators"`
	VoiceMetadata             map[string]map[string]any      `json:"voice_metadata"`
	ContainerToPartAssignment map[string]PartAssignment      `json:"container_to_part_assignment"`
}

// ToRecord renders the metadata as a pruned, key-sorted record.
func (m Metadata) ToRecord() (map[string]any, error) {
	return toRecord(m)
}

// ToRecord renders the persist record as a pruned, key-sorted record.
func (p Persist) ToRecord() (map[string]any, error) {
	return toRecord(p)
}

// toRecord round-trips through JSON so nested values become plain maps and
// slices, then prunes absent keys. Key order is fixed by encoding/json,
// which sorts map keys when the record is encoded again.
func toRecord(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("segment: encode record: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("segment: decode record: %w", err)
	}
	if err := prune(record, ""); err != nil {
		return nil, err
	}
	return record, nil
}

// prune deletes nil values. A value that exists but is empty means a phase
// computed nothing worth recording and is reported instead of dropped.
func prune(record map[string]any, path string) error {
	for key, value := range record {
		at := key
		if path != "" {
			at = path + "." + key
		}
		switch v := value.(type) {
		case nil:
			delete(record, key)
		case bool:
		case string:
			if v == "" {
				return fmt.Errorf("%w: %s", ErrEmptyRecordValue, at)
			}
		case []any:
			if len(v) == 0 {
				return fmt.Errorf("%w: %s", ErrEmptyRecordValue, at)
			}
		case map[string]any:
			if err := prune(v, at); err != nil {
				return err
			}
			if len(v) == 0 {
				return fmt.Errorf("%w: %s", ErrEmptyRecordValue, at)
			}
		}
	}
	return nil
}
