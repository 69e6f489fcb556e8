package publish

import (
	"github.com/pmezard/go-difflib/difflib"
)

// FileDiff is a unified diff between the live artifact and its new content.
type FileDiff struct {
	Path string
	Text string
}

// unifiedDiff renders a unified diff of old against new content for one
// artifact path. Empty old content diffs cleanly as a pure addition.
func unifiedDiff(path string, oldContent, newContent []byte) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldContent)),
		B:        difflib.SplitLines(string(newContent)),
		FromFile: path + ":old",
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
