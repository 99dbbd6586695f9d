package segment

import (
	"fmt"

	"github.com/kingrea/scoresmith/internal/indicator"
)

// checkDesign fails on doubled dynamics and, when requested, on pitched
// leaves lacking a required persistent indicator.
func (b *build) checkDesign() error {
	for _, leaf := range b.tree.Leaves(b.tree.Root()) {
		count := 0
		for _, w := range b.tree.WrappersOf(leaf, indicator.KindDynamic) {
			if w.Active {
				count++
			}
		}
		if count > 1 {
			return fmt.Errorf("%w: %s in %q at measure %d", ErrDoubledDynamic,
				b.tree.Describe(leaf), b.voiceOf(leaf), b.runtime.MeasureNumberAt(b.tree.Start(leaf)))
		}
	}
	if len(b.opts.Require) == 0 {
		return nil
	}
	var kinds []indicator.Kind
	for _, name := range b.opts.Require {
		kind, err := indicator.ParseKind(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		kinds = append(kinds, kind)
	}
	for _, voice := range b.musicVoices() {
		for _, leaf := range b.validationLeaves(voice) {
			for _, kind := range kinds {
				if b.tree.Effective(leaf, kind) == nil {
					return fmt.Errorf("%w: no %s in effect for %s in %q at measure %d", ErrMissingIndicator,
						kind, b.tree.Describe(leaf), b.contextName(voice), b.runtime.MeasureNumberAt(b.tree.Start(leaf)))
				}
			}
		}
	}
	return nil
}
