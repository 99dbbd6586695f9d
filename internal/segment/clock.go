package segment

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/tag"
)

type clockResult struct {
	timed bool
	start float64
	stop  float64
	// times holds the clock time at every measure boundary.
	times []float64
}

// FormatClock renders seconds as M'SS''.
func FormatClock(seconds float64) string {
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d'%02d''", total/60, total%60)
}

// computeClockTime emits dormant measure-number and stage spans, then
// integrates the effective tempo measure by measure into clock-time spans.
// Segments with no tempo at their first measure stay untimed.
func (b *build) computeClockTime() error {
	if err := b.labelMeasures(); err != nil {
		return err
	}
	if err := b.labelStages(); err != nil {
		return err
	}
	start := 0.0
	if prev := b.in.PreviousMetadata; prev != nil && prev.StopClockTime != nil {
		start = *prev.StopClockTime
	}
	mark := b.tree.Effective(b.skips[0], indicator.KindMetronomeMark)
	if mark == nil {
		b.log.Warn("segment %s: no metronome mark in effect at the first measure; clock time not computed", b.in.Name)
		return nil
	}
	times := make([]float64, len(b.sigs)+1)
	clock := start
	for i, sig := range b.sigs {
		times[i] = clock
		if f, ok := b.fermatas[i]; ok {
			clock += f.Length()
			continue
		}
		if w := b.tree.Effective(b.skips[i], indicator.KindMetronomeMark); w != nil {
			mark = w
		}
		clock += mark.Indicator.(indicator.MetronomeMark).Seconds(sig.Duration())
	}
	times[len(b.sigs)] = clock
	b.clock = clockResult{timed: true, start: start, stop: clock, times: times}
	for i := range b.sigs {
		if _, ok := b.fermatas[i]; ok {
			continue
		}
		span := indicator.SpanStart{Name: SpanClockTime, Text: FormatClock(times[i])}
		if err := b.attachSpan(b.skips[i], i+1, span, tag.New(tag.ClockTime), false); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) labelMeasures() error {
	for i := range b.sigs {
		if _, ok := b.fermatas[i]; ok {
			continue
		}
		global := indicator.SpanStart{Name: SpanMeasureNumber, Text: fmt.Sprintf("[%d]", b.firstMeasure+i)}
		if err := b.attachSpan(b.skips[i], i+1, global, tag.New(tag.MeasureNumber), false); err != nil {
			return err
		}
		local := indicator.SpanStart{Name: SpanLocalMeasure, Text: strconv.Itoa(i + 1)}
		if err := b.attachSpan(b.skips[i], i+1, local, tag.New(tag.LocalMeasure), false); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) labelStages() error {
	if len(b.opts.Stages) == 0 {
		return nil
	}
	total := 0
	for _, count := range b.opts.Stages {
		if count < 1 {
			return fmt.Errorf("%w: stage lengths must be positive", ErrInvalidInput)
		}
		total += count
	}
	if total != len(b.sigs) {
		return fmt.Errorf("%w: stages cover %d measures, segment has %d", ErrInvalidInput, total, len(b.sigs))
	}
	first := 0
	for k, count := range b.opts.Stages {
		if _, ok := b.fermatas[first]; !ok {
			span := indicator.SpanStart{Name: SpanStageNumber, Text: fmt.Sprintf("[%s.%d]", b.in.Name, k+1)}
			if err := b.attachSpan(b.skips[first], first+count, span, tag.New(tag.StageNumber), false); err != nil {
				return err
			}
		}
		first += count
	}
	return nil
}
