// Package openai implements the generation capability on the eino framework
// with an OpenAI-compatible chat model. Text modes stream a single
// accumulated result; project modes run a tool-calling agent whose write_file
// tool performs the guarded file writes.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/types"
)

// Config holds provider settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	ProjectModel string
	OutputRoot   string
	WindowSize   int
	MaxAgentStep int
}

// Provider builds conversation handles bound to shared chat models.
type Provider struct {
	cfg          Config
	textModel    *einoopenai.ChatModel
	projectModel *einoopenai.ChatModel
	log          *logging.Logger
}

// NewProvider constructs the chat models once; handles share them.
func NewProvider(ctx context.Context, cfg Config, log *logging.Logger) (*Provider, error) {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.MaxAgentStep <= 0 {
		cfg.MaxAgentStep = 40
	}

	textModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create text chat model: %w", err)
	}

	projectModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ProjectModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create project chat model: %w", err)
	}

	return &Provider{
		cfg:          cfg,
		textModel:    textModel,
		projectModel: projectModel,
		log:          log,
	}, nil
}

// NewHandle builds a conversation handle seeded with persisted history.
func (p *Provider) NewHandle(ctx context.Context, appID uint64, mode types.GenMode, history []genai.Message) (genai.Handle, error) {
	window := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "ai":
			window = append(window, schema.AssistantMessage(m.Content, nil))
		default:
			window = append(window, schema.UserMessage(m.Content))
		}
	}

	h := &handle{
		provider: p,
		appID:    appID,
		mode:     mode,
		window:   window,
	}
	h.trimWindow()
	p.log.Debug("created generation handle",
		zap.Uint64("app_id", appID),
		zap.String("mode", mode.String()),
		zap.Int("seeded_messages", len(window)),
	)
	return h, nil
}

// handle is one cached conversation. The window survives across turns until
// the session cache evicts the handle; then it is rebuilt from history.
type handle struct {
	provider *Provider
	appID    uint64
	mode     types.GenMode

	mu     sync.Mutex
	window []*schema.Message
}

func (h *handle) Generate(ctx context.Context, prompt string, cb genai.Callbacks) {
	if h.mode.IsProject() {
		h.generateProject(ctx, prompt, cb)
		return
	}
	h.generateText(ctx, prompt, cb)
}

// generateText streams a single accumulated text result.
func (h *handle) generateText(ctx context.Context, prompt string, cb genai.Callbacks) {
	msgs := h.conversation(prompt)

	reader, err := h.provider.textModel.Stream(ctx, msgs)
	if err != nil {
		cb.OnError(fmt.Errorf("start generation stream: %w", err))
		return
	}
	defer reader.Close()

	var full string
	for {
		msg, recvErr := reader.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			cb.OnError(fmt.Errorf("generation stream: %w", recvErr))
			return
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		full += msg.Content
		cb.OnChunk(msg.Content)
	}

	h.remember(prompt, full)
	cb.OnComplete()
}

// generateProject runs a tool-calling agent; file writes happen inside the
// write_file tool as a side effect of generation.
func (h *handle) generateProject(ctx context.Context, prompt string, cb genai.Callbacks) {
	writeTool, err := newWriteFileTool(h.provider.cfg.OutputRoot, h.mode, h.appID, &cb)
	if err != nil {
		cb.OnError(fmt.Errorf("init write_file tool: %w", err))
		return
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: h.provider.projectModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{writeTool},
		},
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			out := make([]*schema.Message, 0, len(input)+1)
			out = append(out, schema.SystemMessage(systemPrompt(h.mode)))
			out = append(out, input...)
			return out
		},
		MaxStep: h.provider.cfg.MaxAgentStep,
	})
	if err != nil {
		cb.OnError(fmt.Errorf("create generation agent: %w", err))
		return
	}

	h.mu.Lock()
	msgs := make([]*schema.Message, 0, len(h.window)+1)
	msgs = append(msgs, h.window...)
	msgs = append(msgs, schema.UserMessage(prompt))
	h.mu.Unlock()

	reader, err := agent.Stream(ctx, msgs)
	if err != nil {
		cb.OnError(fmt.Errorf("start agent stream: %w", err))
		return
	}
	defer reader.Close()

	var full string
	for {
		msg, recvErr := reader.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			cb.OnError(fmt.Errorf("agent stream: %w", recvErr))
			return
		}
		if msg == nil || msg.Role != schema.Assistant || msg.Content == "" {
			continue
		}
		full += msg.Content
		cb.OnChunk(msg.Content)
	}

	h.remember(prompt, full)
	cb.OnComplete()
}

// conversation assembles system prompt + window + user turn for text modes.
func (h *handle) conversation(prompt string) []*schema.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := make([]*schema.Message, 0, len(h.window)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt(h.mode)))
	msgs = append(msgs, h.window...)
	msgs = append(msgs, schema.UserMessage(prompt))
	return msgs
}

// remember appends the finished turn to the bounded window.
func (h *handle) remember(prompt, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.window = append(h.window, schema.UserMessage(prompt))
	if reply != "" {
		h.window = append(h.window, schema.AssistantMessage(reply, nil))
	}
	h.trimWindowLocked()
}

func (h *handle) trimWindow() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimWindowLocked()
}

func (h *handle) trimWindowLocked() {
	max := h.provider.cfg.WindowSize
	if len(h.window) > max {
		h.window = h.window[len(h.window)-max:]
	}
}
