package score

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/logbook"
	"github.com/kingrea/scoresmith/internal/manifest"
	"github.com/kingrea/scoresmith/internal/metrics"
	"github.com/kingrea/scoresmith/internal/segment"
	"github.com/kingrea/scoresmith/internal/store"
)

// SegmentReport summarizes one built segment.
type SegmentReport struct {
	Segment  string
	Metadata segment.Metadata
	Stats    segment.Stats
	Warnings int
	Elapsed  time.Duration
}

// Report summarizes one score build.
type Report struct {
	Score    string
	RunID    string
	Segments []SegmentReport
}

// Builder builds the segments of a score in order.
type Builder struct {
	registry *command.Registry
	store    store.Store
	journal  *logbook.Logbook
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	defaults segment.Options
	now      func() time.Time
}

// Option customizes a Builder.
type Option func(*Builder)

// WithRegistry replaces the stock command registry.
func WithRegistry(reg *command.Registry) Option {
	return func(b *Builder) {
		if reg != nil {
			b.registry = reg
		}
	}
}

// WithStore persists every built segment and lets BuildSegment read the
// previous one.
func WithStore(s store.Store) Option {
	return func(b *Builder) { b.store = s }
}

// WithJournal sends interpreter warnings and build progress to journal.
func WithJournal(journal *logbook.Logbook) Option {
	return func(b *Builder) { b.journal = journal }
}

// WithMetrics records every segment build.
func WithMetrics(r *metrics.Recorder) Option {
	return func(b *Builder) { b.metrics = r }
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Builder) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// WithDefaults sets the options every segment starts from.
func WithDefaults(opts segment.Options) Option {
	return func(b *Builder) { b.defaults = opts }
}

// NewBuilder returns a builder using the stock command library.
func NewBuilder(opts ...Option) *Builder {
	reg := command.NewRegistry()
	command.RegisterBuiltins(reg)
	b := &Builder{
		registry: reg,
		tracer:   otel.Tracer("scoresmith/score"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds every segment of def in declaration order, each bootstrapped
// from the one before. The first failure stops the build.
func (b *Builder) Build(ctx context.Context, def Definition) (*Report, error) {
	runID := uuid.New().String()
	ctx, span := b.tracer.Start(ctx, "score.Builder.Build",
		trace.WithAttributes(
			attribute.String("score", def.Name),
			attribute.String("run_id", runID),
			attribute.Int("segments", len(def.Segments)),
		),
	)
	defer span.End()

	report, err := b.build(ctx, def, runID, 0, len(def.Segments), nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score build failed")
		return report, err
	}
	span.SetStatus(codes.Ok, "score built")
	return report, nil
}

// BuildSegment rebuilds a single segment, reading its predecessor's records
// from the store.
func (b *Builder) BuildSegment(ctx context.Context, def Definition, name string) (*Report, error) {
	_, index, ok := def.Segment(name)
	if !ok {
		return nil, fmt.Errorf("score %s: unknown segment %q", def.Name, name)
	}
	runID := uuid.New().String()
	ctx, span := b.tracer.Start(ctx, "score.Builder.BuildSegment",
		trace.WithAttributes(
			attribute.String("score", def.Name),
			attribute.String("segment", name),
			attribute.String("run_id", runID),
		),
	)
	defer span.End()

	var prevMeta *segment.Metadata
	var prevPersist *segment.Persist
	if index > 0 {
		if b.store == nil {
			return nil, fmt.Errorf("score %s: segment %s needs a store to read %s", def.Name, name, def.Segments[index-1].Name)
		}
		prev, err := b.store.Load(def.Name, def.Segments[index-1].Name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "previous segment missing")
			return nil, fmt.Errorf("score %s: build %s first: %w", def.Name, def.Segments[index-1].Name, err)
		}
		prevMeta, prevPersist = &prev.Metadata, &prev.Persist
	}
	report, err := b.build(ctx, def, runID, index, index+1, prevMeta, prevPersist)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment build failed")
	}
	return report, err
}

func (b *Builder) build(ctx context.Context, def Definition, runID string, from, to int,
	prevMeta *segment.Metadata, prevPersist *segment.Persist) (*Report, error) {
	report := &Report{Score: def.Name, RunID: runID}
	manifests, err := def.Manifests()
	if err != nil {
		return report, err
	}
	journal := b.journal.Scope(def.Name)
	journal.Info("build %s: segments %d-%d of %d", runID, from+1, to, len(def.Segments))
	for _, spec := range def.Segments[from:to] {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("score %s: %w", def.Name, err)
		}
		seg, result, err := b.buildSegment(ctx, def, spec, manifests, runID, prevMeta, prevPersist)
		if err != nil {
			journal.Error("segment %s: %v", spec.Name, err)
			return report, fmt.Errorf("score %s: %w", def.Name, err)
		}
		report.Segments = append(report.Segments, seg)
		prevMeta, prevPersist = &result.Metadata, &result.Persist
	}
	journal.Info("build %s: done", runID)
	return report, nil
}

// countingLogger counts warnings on their way to the journal.
type countingLogger struct {
	segment.Logger
	warnings int
}

func (c *countingLogger) Warn(format string, args ...any) {
	c.warnings++
	c.Logger.Warn(format, args...)
}

func (b *Builder) buildSegment(ctx context.Context, def Definition, spec SegmentSpec, manifests *manifest.Manifests,
	runID string, prevMeta *segment.Metadata, prevPersist *segment.Persist) (SegmentReport, *segment.Result, error) {
	_, span := b.tracer.Start(ctx, "score.Builder.buildSegment",
		trace.WithAttributes(
			attribute.String("score", def.Name),
			attribute.String("segment", spec.Name),
		),
	)
	defer span.End()

	started := b.now()
	result, err := b.interpret(def, spec, manifests, prevMeta, prevPersist)
	elapsed := b.now().Sub(started)
	if err != nil {
		b.metrics.Observe(def.Name, nil, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment build failed")
		return SegmentReport{}, nil, fmt.Errorf("segment %s: %w", spec.Name, err)
	}
	b.metrics.Observe(def.Name, &result.Stats, elapsed)
	span.SetAttributes(
		attribute.Int("commands", result.Stats.Commands),
		attribute.Int("validation_markers", result.Stats.ValidationMarkers),
		attribute.Int("reapplied", result.Stats.Reapplied),
	)

	if b.store != nil {
		rec := store.Record{
			Metadata: result.Metadata,
			Persist:  result.Persist,
			Tree:     result.tree,
			Build: store.Build{
				ID:       runID,
				Score:    def.Name,
				Segment:  spec.Name,
				BuiltAt:  started.UTC(),
				Elapsed:  elapsed.String(),
				Stats:    result.Stats,
				Warnings: result.warnings,
			},
		}
		if err := b.store.Save(def.Name, spec.Name, rec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save failed")
			return SegmentReport{}, nil, fmt.Errorf("segment %s: %w", spec.Name, err)
		}
	}
	span.SetStatus(codes.Ok, "segment built")
	return SegmentReport{
		Segment:  spec.Name,
		Metadata: result.Metadata,
		Stats:    result.Stats,
		Warnings: result.warnings,
		Elapsed:  elapsed,
	}, result.Result, nil
}

type interpreted struct {
	*segment.Result
	tree     string
	warnings int
}

func (b *Builder) interpret(def Definition, spec SegmentSpec, manifests *manifest.Manifests,
	prevMeta *segment.Metadata, prevPersist *segment.Persist) (*interpreted, error) {
	sigs, err := spec.Signatures()
	if err != nil {
		return nil, err
	}
	commands, err := spec.Commands(b.registry)
	if err != nil {
		return nil, err
	}
	tr, err := def.Template.Build()
	if err != nil {
		return nil, err
	}
	logger := &countingLogger{Logger: b.journal.Scope(def.Name).Scope(spec.Name)}
	in := segment.Input{
		Name:             spec.Name,
		Tree:             tr,
		Template:         def.Template,
		Commands:         commands,
		TimeSignatures:   sigs,
		Manifests:        manifests,
		PreviousMetadata: prevMeta,
		PreviousPersist:  prevPersist,
		Options:          b.defaults.Merge(def.Options).Merge(spec.Options),
	}
	result, err := segment.New(segment.WithLogger(logger)).Interpret(in)
	if err != nil {
		return nil, err
	}
	return &interpreted{Result: result, tree: tr.String(), warnings: logger.warnings}, nil
}

// BuildAll builds independent scores concurrently. Reports come back in the
// order of defs; the first error cancels the remaining builds.
func (b *Builder) BuildAll(ctx context.Context, defs []Definition) ([]*Report, error) {
	seen := map[string]bool{}
	for _, def := range defs {
		if seen[def.Name] {
			return nil, fmt.Errorf("score: duplicate score %q", def.Name)
		}
		seen[def.Name] = true
	}
	reports := make([]*Report, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			report, err := b.Build(ctx, def)
			reports[i] = report
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// IsCanceled reports whether err came from a canceled build.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
