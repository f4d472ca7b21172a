package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/sitesmith/backend/internal/domain/artifact"
	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/shared/types"
)

const writeFileDesc = "Write a source file of the generated project. " +
	"The path is relative to the project root; parent directories are created as needed. " +
	"Writing to an existing path overwrites it."

type writeFileInput struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file relative to the project root (e.g. src/App.vue)"`
	Content  string `json:"content" jsonschema:"description=Full content of the file"`
}

type writeFileOutput struct {
	FilePath string `json:"file_path"`
	Written  int    `json:"written_bytes"`
}

// newWriteFileTool builds the agent's single tool. Every invocation is
// reported through the callbacks so the event stream mirrors the writes,
// and every path is contained to the application's output directory.
func newWriteFileTool(outputRoot string, mode types.GenMode, appID uint64, cb *genai.Callbacks) (tool.InvokableTool, error) {
	dir := artifact.OutputDir(outputRoot, mode, appID)
	var index atomic.Int64

	invoke := func(ctx context.Context, in *writeFileInput) (*writeFileOutput, error) {
		if in == nil || strings.TrimSpace(in.FilePath) == "" {
			return nil, fmt.Errorf("file_path is required")
		}
		rel := filepath.ToSlash(strings.TrimSpace(in.FilePath))

		if cb.OnToolRequest != nil {
			args, _ := json.Marshal(in)
			cb.OnToolRequest("write_file", string(args), int(index.Add(1))-1)
		}

		abs, err := artifact.SafeJoin(dir, rel)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create parent directory: %w", err)
		}
		if err := os.WriteFile(abs, []byte(in.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}

		if cb.OnToolResult != nil {
			cb.OnToolResult(rel)
		}
		return &writeFileOutput{FilePath: rel, Written: len(in.Content)}, nil
	}

	return utils.InferTool("write_file", writeFileDesc, invoke)
}
