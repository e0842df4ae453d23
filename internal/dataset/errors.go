package dataset

import (
	"fmt"
	"strings"
)

// Problem is a single defect found while loading a dataset.
type Problem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Error reports a malformed or incomplete dataset. A run never starts when
// loading returns one.
type Error struct {
	Root     string
	Problems []Problem
}

func (e *Error) Error() string {
	switch len(e.Problems) {
	case 0:
		return fmt.Sprintf("dataset %s: invalid", e.Root)
	case 1:
		return fmt.Sprintf("dataset %s: %s: %s", e.Root, e.Problems[0].Path, e.Problems[0].Reason)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "dataset %s: %d problems", e.Root, len(e.Problems))
	for _, p := range e.Problems {
		fmt.Fprintf(&b, "\n  %s: %s", p.Path, p.Reason)
	}
	return b.String()
}

func (e *Error) add(path, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Path: path, Reason: fmt.Sprintf(format, args...)})
}
