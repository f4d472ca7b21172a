package artifact

import (
	"regexp"
	"strings"

	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

// Fenced block extraction is tag-anchored and case-insensitive. The first
// block of each tag wins; models occasionally repeat themselves.
var fenceRe = regexp.MustCompile("(?is)```([a-z]*)[ \t]*\r?\n(.*?)```")

// Parse converts the accumulated reply of a text-mode generation into its
// artifact. Project modes carry their artifact in written files, not text.
func Parse(mode types.GenMode, text string, writtenPaths []string) (types.CodeArtifact, error) {
	switch mode {
	case types.ModeHTML:
		return parseHTML(text)
	case types.ModeMultiFile:
		return parseMultiFile(text)
	case types.ModeVueProject, types.ModeReactProject:
		if len(writtenPaths) == 0 {
			return nil, errs.New(errs.KindGeneration, "generation wrote no project files")
		}
		return types.ProjectArtifact{ProjectMode: mode, WrittenPaths: writtenPaths}, nil
	default:
		return nil, errs.Newf(errs.KindValidation, "unsupported generation mode %q", mode)
	}
}

func parseHTML(text string) (types.CodeArtifact, error) {
	blocks := extractBlocks(text)
	if html, ok := blocks["html"]; ok && strings.TrimSpace(html) != "" {
		return types.HTMLArtifact{HTML: html}, nil
	}
	// Models sometimes reply with a bare document and no fence.
	if looksLikeHTML(text) {
		return types.HTMLArtifact{HTML: strings.TrimSpace(text)}, nil
	}
	return nil, errs.New(errs.KindGeneration, "reply contains no html document")
}

func parseMultiFile(text string) (types.CodeArtifact, error) {
	blocks := extractBlocks(text)
	html := blocks["html"]
	if strings.TrimSpace(html) == "" {
		if !looksLikeHTML(text) {
			return nil, errs.New(errs.KindGeneration, "reply contains no html document")
		}
		html = strings.TrimSpace(text)
	}
	return types.MultiFileArtifact{
		HTML: html,
		CSS:  blocks["css"],
		JS:   blocks["js"],
	}, nil
}

// extractBlocks returns the first fenced block per tag. Untagged fences are
// kept under "" so a bare ``` block can still back the html fallback.
func extractBlocks(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if tag == "javascript" {
			tag = "js"
		}
		if _, seen := out[tag]; !seen {
			out[tag] = m[2]
		}
	}
	return out
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype html")
}
