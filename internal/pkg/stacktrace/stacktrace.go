// Package stacktrace shortens goroutine dumps for logging.
package stacktrace

import "strings"

// InternalPaths keeps the file:line frames of a debug.Stack dump that point
// into this module's internal tree, e.g. "internal/app/app.go:42".
func InternalPaths(stack []byte) []string {
	var frames []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") || !strings.Contains(line, ".go:") {
			continue
		}

		file, _, _ := strings.Cut(line, " ")
		if _, rel, ok := strings.Cut(file, "/internal/"); ok {
			frames = append(frames, "internal/"+rel)
		}
	}
	return frames
}
