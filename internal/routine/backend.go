package routine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Message roles used in backend conversations.
const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

// chatMessage is one turn in a backend conversation.
type chatMessage struct {
	role       string
	content    string
	toolCalls  []toolCall
	toolCallID string
}

// toolCall is a tool invocation requested by the model.
type toolCall struct {
	id        string
	name      string
	arguments string
}

// toolDefinition describes a tool offered to the model.
type toolDefinition struct {
	name        string
	description string
	parameters  map[string]any
}

// textBackend is the language model behind routine generation. It
// returns the assistant's next turn for a conversation. An empty tools
// slice forces a plain text answer.
type textBackend interface {
	complete(ctx context.Context, messages []chatMessage, tools []toolDefinition) (chatMessage, error)
}

// openAIBackend implements textBackend on the OpenAI chat completions
// API.
type openAIBackend struct {
	client openai.Client
	model  openai.ChatModel
	logger *slog.Logger
}

func newOpenAIBackend(apiKey string, logger *slog.Logger) *openAIBackend {
	return &openAIBackend{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4o,
		logger: logger,
	}
}

func (b *openAIBackend) complete(ctx context.Context, messages []chatMessage, tools []toolDefinition) (chatMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: toOpenAIMessages(messages),
	}
	for _, tool := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.name,
				Description: openai.String(tool.description),
				Parameters:  openai.FunctionParameters(tool.parameters),
			},
		})
	}

	b.logger.LogAttrs(ctx, slog.LevelDebug, "chat completion request",
		slog.Int("message_count", len(messages)),
		slog.Int("tool_count", len(tools)))

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return chatMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return chatMessage{}, fmt.Errorf("chat completion returned no choices")
	}

	choice := completion.Choices[0].Message
	reply := chatMessage{role: roleAssistant, content: choice.Content}
	for _, call := range choice.ToolCalls {
		reply.toolCalls = append(reply.toolCalls, toolCall{
			id:        call.ID,
			name:      call.Function.Name,
			arguments: call.Function.Arguments,
		})
	}

	b.logger.LogAttrs(ctx, slog.LevelDebug, "chat completion response",
		slog.Int64("total_tokens", completion.Usage.TotalTokens),
		slog.Int("tool_calls", len(reply.toolCalls)))
	return reply, nil
}

func toOpenAIMessages(messages []chatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.role {
		case roleSystem:
			out = append(out, openai.SystemMessage(msg.content))
		case roleUser:
			out = append(out, openai.UserMessage(msg.content))
		case roleTool:
			out = append(out, openai.ToolMessage(msg.content, msg.toolCallID))
		case roleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.content != "" {
				assistant.Content.OfString = openai.String(msg.content)
			}
			for _, call := range msg.toolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.id,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.name,
						Arguments: call.arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}
