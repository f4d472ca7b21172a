// Package generate coordinates one generation turn end to end: ownership
// checks, the per-application busy lock, chat persistence, the session cache
// and the normalized event stream.
package generate

import (
	"strings"

	"github.com/sitesmith/backend/internal/shared/types"
)

// ClassifyMode maps an initial prompt to a generation mode with keyword
// rules. Unknown or ambiguous prompts fall back to multi_file, the most
// general mode that needs no build step.
func ClassifyMode(prompt string) types.GenMode {
	p := strings.ToLower(prompt)

	if containsAny(p, "vue", "nuxt") {
		return types.ModeVueProject
	}
	if containsAny(p, "react", "next.js", "nextjs", "jsx") {
		return types.ModeReactProject
	}
	if containsAny(p, "single page", "one page", "single-page", "landing page", "simple page") {
		return types.ModeHTML
	}
	return types.ModeMultiFile
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
