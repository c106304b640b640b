package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

const systemPrompt = `You narrate a game of Mafia for a group chat.
Rewrite the announcement you are given as one or two atmospheric sentences in {language}.
Keep every name and fact. Never invent deaths and never reveal anyone's role.`

// LLM rewrites the static announcements with a chat model and falls back to
// the static text when the model fails.
type LLM struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	fallback Static
	language string
	logger   *zap.Logger
}

// NewLLM compiles the narration chain around chatModel.
func NewLLM(ctx context.Context, chatModel model.BaseChatModel, language string, logger *zap.Logger) (*LLM, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "English"
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{announcement}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile narration chain: %w", err)
	}

	return &LLM{chain: runnable, language: language, logger: logger}, nil
}

// Narrate returns model-written narration for ev.
func (n *LLM) Narrate(ctx context.Context, ev game.Event) (string, error) {
	base, err := n.fallback.Narrate(ctx, ev)
	if err != nil || base == "" {
		return base, err
	}

	msg, err := n.chain.Invoke(ctx, map[string]any{
		"language":     n.language,
		"announcement": base,
	})
	if err != nil {
		n.logger.Debug("narration model failed, using template",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return base, nil
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return base, nil
	}
	return text, nil
}
