// Package score loads score definitions and builds their segments in order.
//
// A definition names a template, optional manifests, default segment options
// and an ordered list of segments, each with time signatures and commands.
// Definitions are YAML files or Go scripts evaluated with yaegi that expose
//
//	func ScoreDefinition() (map[string]any, error)
//
// The Builder runs segments sequentially, handing each the previous
// segment's metadata and persist records; BuildAll builds independent scores
// concurrently.
package score
