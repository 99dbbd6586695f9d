package segment

import (
	"fmt"
	"sort"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/duration"
	"github.com/kingrea/scoresmith/internal/indicator"
	"github.com/kingrea/scoresmith/internal/manifest"
	"github.com/kingrea/scoresmith/internal/scope"
	"github.com/kingrea/scoresmith/internal/template"
	"github.com/kingrea/scoresmith/internal/tree"
)

// PhantomDuration is the length of the trailing buffer measure.
var PhantomDuration = duration.New(1, 4)

// Logger receives soft warnings. *logbook.Logbook satisfies it.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

// Input is everything one segment build consumes besides its options.
type Input struct {
	Name           string
	Tree           *tree.Tree
	Template       template.Template
	Commands       []command.Command
	TimeSignatures []duration.TimeSignature
	Manifests      *manifest.Manifests
	// PreviousMetadata and PreviousPersist are nil for the first segment.
	PreviousMetadata *Metadata
	PreviousPersist  *Persist
	Options          Options
}

// Stats counts what a build did, for logging and metrics.
type Stats struct {
	Commands          int
	Reapplied         int
	Dropped           int
	ValidationMarkers int
	PartAssignments   int
}

// Result is the output of a successful build.
type Result struct {
	Metadata Metadata
	Persist  Persist
	Stats    Stats
}

// Option customizes an Interpreter.
type Option func(*Interpreter)

// WithLogger routes soft warnings to logger.
func WithLogger(logger Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Interpreter runs the segment pipeline. It holds no per-build state and
// may be reused sequentially or shared across goroutines building different
// trees.
type Interpreter struct {
	logger Logger
}

// New returns an interpreter.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{logger: nopLogger{}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret runs the pipeline with a default interpreter.
func Interpret(in Input) (*Result, error) {
	return New().Interpret(in)
}

// build is the per-call state threaded through the phases.
type build struct {
	in     Input
	log    Logger
	tree   *tree.Tree
	opts   Options
	stats  Stats
	sigs   []duration.TimeSignature
	starts []duration.Duration
	total  duration.Duration

	firstMeasure int
	skips        []tree.NodeID
	rests        []tree.NodeID
	phantomSkip  tree.NodeID
	phantomRest  tree.NodeID

	runtime     command.Runtime
	cache       *scope.Cache
	voiceMeta   map[string]map[string]any
	reapplier   *reapplier
	fermatas    map[int]indicator.Fermata
	fermataNums []int
	lastFermata bool
	clock       clockResult
	parts       map[string]PartAssignment
}

// Interpret builds one segment, mutating in.Tree.
func (i *Interpreter) Interpret(in Input) (*Result, error) {
	b, err := i.prepare(in)
	if err != nil {
		return nil, err
	}
	phases := []struct {
		name string
		run  func() error
	}{
		{"skeleton", b.buildSkeleton},
		{"rhythm", b.dispatchRhythm},
		{"closure", b.checkDurationClosure},
		{"reapply", b.reapply},
		{"indicators", b.dispatchIndicators},
		{"classify", b.classify},
		{"tempo", b.bracketTempi},
		{"fermata", b.detectFermatas},
		{"validation", b.colorValidation},
		{"clock", b.computeClockTime},
		{"checks", b.checkDesign},
		{"activation", b.activateTags},
		{"parts", b.assignParts},
	}
	for _, phase := range phases {
		if err := phase.run(); err != nil {
			return nil, err
		}
	}
	metadata, persist, err := b.collect()
	if err != nil {
		return nil, err
	}
	return &Result{Metadata: metadata, Persist: persist, Stats: b.stats}, nil
}

func (i *Interpreter) prepare(in Input) (*build, error) {
	if in.Tree == nil {
		return nil, fmt.Errorf("%w: tree is required", ErrInvalidInput)
	}
	if len(in.TimeSignatures) == 0 {
		return nil, fmt.Errorf("%w: at least one time signature is required", ErrInvalidInput)
	}
	for _, sig := range in.TimeSignatures {
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	for _, name := range []string{template.GlobalSkips, template.GlobalRests} {
		if _, ok := in.Tree.Context(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownContext, name)
		}
	}
	if in.Manifests == nil {
		in.Manifests = manifest.New()
	}
	if in.Name == "" {
		in.Name = "segment"
	}
	b := &build{
		in:           in,
		log:          i.logger,
		tree:         in.Tree,
		opts:         in.Options,
		sigs:         append([]duration.TimeSignature(nil), in.TimeSignatures...),
		firstMeasure: 1,
		phantomSkip:  tree.NoNode,
		phantomRest:  tree.NoNode,
		voiceMeta:    map[string]map[string]any{},
		fermatas:     map[int]indicator.Fermata{},
		parts:        map[string]PartAssignment{},
	}
	if prev := in.PreviousMetadata; prev != nil && prev.FinalMeasureNumber > 0 {
		b.firstMeasure = prev.FinalMeasureNumber + 1
	}
	starts := duration.Starts(b.sigs)
	b.starts = starts[:len(b.sigs)]
	b.total = starts[len(b.sigs)]
	var previous map[string]map[string]any
	if in.PreviousPersist != nil {
		previous = in.PreviousPersist.VoiceMetadata
	}
	b.runtime = command.NewRuntime(in.Name, b.firstMeasure, in.Manifests, previous, b.starts)
	return b, nil
}

// measures is the number of real (non-phantom) measures.
func (b *build) measures() int { return len(b.sigs) }

func (b *build) isFirstSegment() bool {
	return b.in.PreviousPersist == nil
}

// boundaries returns measure starts plus the final stop, including the
// phantom measure when present.
func (b *build) boundaries() []duration.Duration {
	out := append(append([]duration.Duration(nil), b.starts...), b.total)
	if b.opts.AppendPhantomMeasure {
		out = append(out, b.total.Add(PhantomDuration))
	}
	return out
}

// musicVoices lists the Voice contexts in tree order.
func (b *build) musicVoices() []tree.NodeID {
	return b.tree.ContextsOfType(tree.ContextVoice)
}

// measureIndex returns the 0-based real measure during which offset falls,
// or -1 for offsets in the phantom measure or beyond.
func (b *build) measureIndex(offset duration.Duration) int {
	if !offset.Less(b.total) {
		return -1
	}
	i := sort.Search(len(b.starts), func(i int) bool {
		return offset.Less(b.starts[i])
	})
	return i - 1
}

func (b *build) isPhantom(leaf tree.NodeID) bool {
	if n := b.tree.Node(leaf); n != nil && n.Annotations.Phantom {
		return true
	}
	return b.opts.AppendPhantomMeasure && !b.tree.Start(leaf).Less(b.total)
}

func (b *build) contextName(id tree.NodeID) string {
	if n := b.tree.Node(id); n != nil {
		return n.Name
	}
	return ""
}

// voiceOf returns the name of the Voice enclosing leaf, or "".
func (b *build) voiceOf(leaf tree.NodeID) string {
	if id := b.tree.EnclosingContext(leaf, tree.ContextVoice); id != tree.NoNode {
		return b.contextName(id)
	}
	return ""
}

func (b *build) setVoiceState(voice, parameter string, state any) {
	inner, ok := b.voiceMeta[voice]
	if !ok {
		inner = map[string]any{}
		b.voiceMeta[voice] = inner
	}
	inner[parameter] = state
}

// recordState copies a stateful command's per-voice state into voice
// metadata.
func (b *build) recordState(cmd command.Command) {
	stateful, ok := cmd.(command.Stateful)
	if !ok || stateful.PersistKey() == "" {
		return
	}
	for _, id := range b.musicVoices() {
		voice := b.contextName(id)
		if state, ok := stateful.StateFor(voice); ok {
			b.setVoiceState(voice, stateful.PersistKey(), state)
		}
	}
}
