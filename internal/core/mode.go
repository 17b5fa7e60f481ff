// Package core is the orchestration layer.  It composes transports
// and capabilities into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	pseudofs  →  fortune  →  capability  →  session  →  core  →  cmd (CLI)
//	                              ↑
//	                          transport
package core

import "context"

// Mode represents a complete operational mode of fortuned (local,
// listen or connect).  Each mode owns its full lifecycle from
// connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
