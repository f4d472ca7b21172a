package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"plain file", "index.html", false},
		{"nested file", "src/components/App.vue", false},
		{"dot segments resolving inside", "src/../index.html", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../../etc/passwd", true},
		{"hidden traversal", "src/../../outside.txt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, err := SafeJoin(root, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsKind(err, errs.KindValidation))
				return
			}
			require.NoError(t, err)
			rel, relErr := filepath.Rel(root, abs)
			require.NoError(t, relErr)
			assert.NotContains(t, rel, "..")
		})
	}
}

func TestParseHTMLFencedBlock(t *testing.T) {
	text := "Here is your site:\n```html\n<html><body>hi</body></html>\n```\nEnjoy!"

	a, err := Parse(types.ModeHTML, text, nil)
	require.NoError(t, err)

	html, ok := a.(types.HTMLArtifact)
	require.True(t, ok)
	assert.Contains(t, html.HTML, "<body>hi</body>")
}

func TestParseHTMLBareDocumentFallback(t *testing.T) {
	text := "<!DOCTYPE html>\n<html><body>bare</body></html>"

	a, err := Parse(types.ModeHTML, text, nil)
	require.NoError(t, err)
	assert.Contains(t, a.(types.HTMLArtifact).HTML, "bare")
}

func TestParseHTMLNoDocumentFails(t *testing.T) {
	_, err := Parse(types.ModeHTML, "sorry, I cannot do that", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindGeneration))
}

func TestParseMultiFile(t *testing.T) {
	text := "```html\n<html><head><link rel=\"stylesheet\" href=\"style.css\"></head></html>\n```\n" +
		"```css\nbody { margin: 0; }\n```\n" +
		"```js\nconsole.log(\"hi\");\n```\n"

	a, err := Parse(types.ModeMultiFile, text, nil)
	require.NoError(t, err)

	mf, ok := a.(types.MultiFileArtifact)
	require.True(t, ok)
	assert.Contains(t, mf.HTML, "style.css")
	assert.Contains(t, mf.CSS, "margin: 0")
	assert.Contains(t, mf.JS, "console.log")
}

func TestParseMultiFileMissingCSSAndJS(t *testing.T) {
	text := "```html\n<html></html>\n```"

	a, err := Parse(types.ModeMultiFile, text, nil)
	require.NoError(t, err)

	mf := a.(types.MultiFileArtifact)
	assert.NotEmpty(t, mf.HTML)
	assert.Empty(t, mf.CSS)
	assert.Empty(t, mf.JS)
}

func TestParseJavascriptTagAlias(t *testing.T) {
	text := "```html\n<html></html>\n```\n```javascript\nlet x = 1;\n```"

	a, err := Parse(types.ModeMultiFile, text, nil)
	require.NoError(t, err)
	assert.Contains(t, a.(types.MultiFileArtifact).JS, "let x = 1")
}

func TestParseProjectRequiresWrittenFiles(t *testing.T) {
	_, err := Parse(types.ModeVueProject, "summary text", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindGeneration))

	a, err := Parse(types.ModeVueProject, "summary text", []string{"package.json"})
	require.NoError(t, err)
	assert.Equal(t, types.ModeVueProject, a.Mode())
}

func TestSaveHTMLRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewSaver(root, logging.Nop())

	dir, err := s.Save(42, types.HTMLArtifact{HTML: "<html>one</html>"})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>one</html>", string(got))
}

func TestSaveMultiFileOverwritesInPlace(t *testing.T) {
	root := t.TempDir()
	s := NewSaver(root, logging.Nop())

	first := types.MultiFileArtifact{HTML: "<html>v1</html>", CSS: "body{}", JS: "1"}
	dir, err := s.Save(7, first)
	require.NoError(t, err)

	// A stale file from the first save must not survive the second.
	stale := filepath.Join(dir, "leftover.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	second := types.MultiFileArtifact{HTML: "<html>v2</html>", CSS: "", JS: ""}
	dir2, err := s.Save(7, second)
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)

	got, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>v2</html>", string(got))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveProjectVerifiesWrittenFiles(t *testing.T) {
	root := t.TempDir()
	s := NewSaver(root, logging.Nop())

	dir := OutputDir(root, types.ModeReactProject, 3)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.jsx"), []byte("x"), 0o644))

	a := types.ProjectArtifact{
		ProjectMode:  types.ModeReactProject,
		WrittenPaths: []string{"package.json", "src/main.jsx"},
	}
	got, err := s.Save(3, a)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	// A claimed path that never landed fails verification.
	a.WrittenPaths = append(a.WrittenPaths, "src/missing.jsx")
	_, err = s.Save(3, a)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindPersistence))
}
