package segment

import (
	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/scope"
)

// dispatchIndicators runs every non-rhythm command in declaration order
// against a freshly indexed leaf cache.
func (b *build) dispatchIndicators() error {
	b.cache = scope.NewCache(b.tree, b.boundaries())
	for index, cmd := range b.in.Commands {
		ic, ok := cmd.(command.IndicatorCommand)
		if !ok {
			continue
		}
		b.stats.Commands++
		leaves, err := b.cache.Select(cmd.Target(), b.measures())
		if err != nil {
			return &CommandError{Index: index, Command: cmd, Err: err}
		}
		if len(leaves) == 0 {
			if allower, ok := cmd.(command.EmptyAllower); ok && allower.AllowEmpty() {
				b.log.Warn("segment %s: command %d %s selected no leaves", b.in.Name, index+1, cmd)
				continue
			}
			return &CommandError{Index: index, Command: cmd, Err: ErrEmptySelection}
		}
		if err := ic.Apply(b.tree, leaves, b.runtime); err != nil {
			return &CommandError{Index: index, Command: cmd, Err: err}
		}
		if ic.Mutates() {
			b.tree.UpdateOffsets()
			b.cache.Invalidate()
		}
		b.recordState(cmd)
	}
	return nil
}
