// Package command defines the contracts the segment interpreter dispatches
// against, the read-only Runtime bundle handed to every invocation, a
// factory Registry keyed by command name, and the stock command library.
//
// Rhythm commands produce detached leaves spanning exactly the duration of
// the time signatures they are given; the interpreter places them. Every
// other command receives a resolved leaf selection and annotates or
// restructures it. Commands that restructure the tree report Mutates() so
// the interpreter refreshes offsets and discards its leaf cache before the
// next command runs.
package command
