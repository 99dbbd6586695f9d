// Package segment interprets one segment of a score: it lays the global
// time grid, places rhythm-command output, reapplies the previous segment's
// persistent indicators, dispatches indicator commands, derives tempo
// brackets, fermata handling, validation markers and clock time, flips tag
// activation, assigns parts and finally emits the metadata and persist
// records the next segment bootstraps from.
//
// Interpret mutates the caller's tree in place. Any returned error leaves the
// tree in an unspecified state; callers must discard it.
package segment
