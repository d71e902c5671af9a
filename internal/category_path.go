package internal

import (
	"fmt"
	"strings"
)

// Categories use a materialized path made of fixed-width base36 steps, so
// "0001" is the first root and "00010003" its third child.
const (
	categoryStepLen  = 4
	categoryAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func encodePathStep(n int) (string, error) {
	base := len(categoryAlphabet)
	limit := 1
	for i := 0; i < categoryStepLen; i++ {
		limit *= base
	}
	if n <= 0 || n >= limit {
		return "", fmt.Errorf("category step %d out of range", n)
	}
	buf := make([]byte, categoryStepLen)
	for i := categoryStepLen - 1; i >= 0; i-- {
		buf[i] = categoryAlphabet[n%base]
		n /= base
	}
	return string(buf), nil
}

func pathDepth(path string) int {
	return len(path) / categoryStepLen
}

// ancestorPaths returns the paths of every ancestor, root first.
func ancestorPaths(path string) []string {
	depth := pathDepth(path)
	if depth <= 1 {
		return nil
	}
	out := make([]string, 0, depth-1)
	for i := 1; i < depth; i++ {
		out = append(out, path[:i*categoryStepLen])
	}
	return out
}

func parentPath(path string) string {
	if len(path) <= categoryStepLen {
		return ""
	}
	return path[:len(path)-categoryStepLen]
}

func isDescendantPath(path, ancestor string) bool {
	return len(path) > len(ancestor) && strings.HasPrefix(path, ancestor)
}
