// Package git opens local repositories and produces the raw diffs the
// daemon hands to review tooling.
//
// This package handles:
//   - Opening repositories from a path (discovering the enclosing .git)
//   - Resolving revisions (branches, tags, abbreviated hashes)
//   - Building size-bounded raw diffs between a base and a head
//   - Typed errors for structured error handling
package git
