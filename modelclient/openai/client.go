// Package openai provides a modelclient.Client implementation backed by
// the OpenAI Chat Completions API, using github.com/openai/openai-go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
)

// ChatClient captures the subset of the SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Options configures the adapter.
type Options struct {
	DefaultModel string
}

// Client implements modelclient.Client via the OpenAI Chat Completions API.
type Client struct {
	chat  ChatClient
	model string
}

// New builds an adapter around an existing ChatClient.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	model := strings.TrimSpace(opts.DefaultModel)
	if model == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, model: model}, nil
}

// NewFromAPIKey constructs a client using the SDK's default HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete renders a chat completion.
func (c *Client) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	if len(req.Messages) == 0 {
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "openai", Cause: errors.New("messages are required")}
	}
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.model
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "openai", Cause: err}
	}
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	if tools := encodeTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
		params.ToolChoice = toolChoiceParam(req.ToolChoice)
	}

	comp, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return modelclient.Response{}, &modelclient.TransientError{Provider: "openai", Cause: err}
		}
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "openai", Cause: err}
	}
	return translateResponse(comp)
}

// Stream is not implemented by this adapter.
func (c *Client) Stream(context.Context, modelclient.Request) (modelclient.Streamer, error) {
	return nil, modelclient.ErrStreamingUnsupported
}

// CountTokens estimates tokens by character length; the OpenAI Go SDK
// does not ship a local tokenizer.
func (c *Client) CountTokens(_ context.Context, req modelclient.Request) (int, error) {
	total := 0
	for _, m := range req.Messages {
		total += len(textOf(m))
	}
	const approxCharsPerToken = 4
	return total / approxCharsPerToken, nil
}

func encodeMessages(msgs []message.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if m.System != nil {
				out = append(out, sdk.SystemMessage(m.System.Text))
			}
		case message.RoleUser:
			if m.User != nil {
				out = append(out, sdk.UserMessage(m.User.Text))
			}
		case message.RoleAssistant:
			if m.Assistant == nil {
				continue
			}
			asst := sdk.AssistantMessage(m.Assistant.Text)
			if len(m.Assistant.ToolCalls) > 0 && asst.OfAssistant != nil {
				calls := make([]sdk.ChatCompletionMessageToolCallParam, 0, len(m.Assistant.ToolCalls))
				for _, tc := range m.Assistant.ToolCalls {
					args, err := json.Marshal(tc.Arguments)
					if err != nil {
						return nil, fmt.Errorf("marshal tool call %q arguments: %w", tc.CallID, err)
					}
					calls = append(calls, sdk.ChatCompletionMessageToolCallParam{
						ID: tc.CallID,
						Function: sdk.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					})
				}
				asst.OfAssistant.ToolCalls = calls
			}
			out = append(out, asst)
		case message.RoleToolResult:
			if m.ToolResult != nil {
				out = append(out, sdk.ToolMessage(message.Text(m.ToolResult.Content), m.ToolResult.CallID))
			}
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func encodeTools(defs []modelclient.ToolDefinition) []sdk.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, sdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
				Parameters:  shared.FunctionParameters(d.InputSchema),
			},
		})
	}
	return out
}

// toolChoiceParam translates the canonical ToolChoice into the Chat
// Completions tool_choice union. "auto", "required", and "none" are all
// accepted literal values by the API; any other value names the single
// tool the model must call.
func toolChoiceParam(tc modelclient.ToolChoice) sdk.ChatCompletionToolChoiceOptionUnionParam {
	switch tc {
	case modelclient.ToolChoiceRequired:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("required")}
	case modelclient.ToolChoiceNone:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("none")}
	case "", modelclient.ToolChoiceAuto:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("auto")}
	default:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &sdk.ChatCompletionNamedToolChoiceParam{
				Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{Name: string(tc)},
			},
		}
	}
}

func translateResponse(comp *sdk.ChatCompletion) (modelclient.Response, error) {
	if len(comp.Choices) == 0 {
		return modelclient.Response{}, errors.New("openai: response has no choices")
	}
	choice := comp.Choices[0]
	resp := modelclient.Response{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			return modelclient.Response{}, fmt.Errorf("openai: decode tool call %q arguments: %w", tc.ID, err)
		}
		resp.ToolCalls = append(resp.ToolCalls, message.ToolCallRequest{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	resp.Usage = message.Usage{
		PromptTokens:     int(comp.Usage.PromptTokens),
		CompletionTokens: int(comp.Usage.CompletionTokens),
		TotalTokens:      int(comp.Usage.TotalTokens),
	}
	resp.FinishReason = translateFinishReason(string(choice.FinishReason))
	return resp, nil
}

func parseToolArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func translateFinishReason(reason string) message.FinishReason {
	switch reason {
	case "stop":
		return message.FinishStop
	case "tool_calls":
		return message.FinishToolCalls
	case "length":
		return message.FinishLength
	default:
		return message.FinishStop
	}
}

func textOf(m message.Message) string {
	switch m.Role {
	case message.RoleSystem:
		if m.System != nil {
			return m.System.Text
		}
	case message.RoleUser:
		if m.User != nil {
			return m.User.Text
		}
	case message.RoleAssistant:
		if m.Assistant != nil {
			return m.Assistant.Text
		}
	case message.RoleToolResult:
		if m.ToolResult != nil {
			return message.Text(m.ToolResult.Content)
		}
	}
	return ""
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}
