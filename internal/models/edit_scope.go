package models

import "fmt"

// EditScope selects which occurrences of a recurring series an edit or delete touches.
type EditScope string

const (
	ScopeInstance EditScope = "instance" // Only the targeted occurrence
	ScopeFuture   EditScope = "future"   // The targeted occurrence and every later one
	ScopeAll      EditScope = "all"      // Every occurrence, via the series master
)

// ParseEditScope maps request input to an EditScope. Empty input means instance.
func ParseEditScope(s string) (EditScope, error) {
	switch EditScope(s) {
	case "", ScopeInstance:
		return ScopeInstance, nil
	case ScopeFuture:
		return ScopeFuture, nil
	case ScopeAll:
		return ScopeAll, nil
	}
	return "", fmt.Errorf("invalid edit scope %q", s)
}
