// Package anthropic provides a modelclient.Client implementation backed by
// the Anthropic Messages API. It translates canonical Request/Response
// values into github.com/anthropics/anthropic-sdk-go calls and back.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter's defaults.
type Options struct {
	// DefaultModel is used when Request.Model is empty.
	DefaultModel string
	// MaxTokens is the completion cap applied when Request.MaxTokens is zero.
	MaxTokens int
	// Temperature is applied when Request.Temperature is zero.
	Temperature float64
}

// Client implements modelclient.Client on top of Anthropic Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an adapter around an existing MessagesClient.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the standard Anthropic HTTP
// client, authenticated with the supplied API key.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	sc := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&sc.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "anthropic", Cause: err}
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return modelclient.Response{}, &modelclient.TransientError{Provider: "anthropic", Cause: err}
		}
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "anthropic", Cause: err}
	}
	return translateResponse(msg)
}

// Stream is not implemented by this adapter; streaming responses are
// synthesized from Complete by the stream package when needed.
func (c *Client) Stream(context.Context, modelclient.Request) (modelclient.Streamer, error) {
	return nil, modelclient.ErrStreamingUnsupported
}

// CountTokens estimates token usage by summing message text lengths at a
// fixed characters-per-token ratio; the Anthropic SDK does not expose a
// local tokenizer.
func (c *Client) CountTokens(_ context.Context, req modelclient.Request) (int, error) {
	total := 0
	for _, m := range req.Messages {
		total += len(textOf(m))
	}
	const approxCharsPerToken = 4
	return total / approxCharsPerToken, nil
}

func (c *Client) prepareRequest(req modelclient.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("max_tokens must be positive")
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.ToolChoice != modelclient.ToolChoiceNone {
		if tools := encodeTools(req.Tools); len(tools) > 0 {
			params.Tools = tools
			params.ToolChoice = toolChoiceParam(req.ToolChoice)
		}
	}
	temp := float64(req.Temperature)
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

func encodeMessages(msgs []message.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, 1)

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if m.System != nil && m.System.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: m.System.Text})
			}
		case message.RoleUser:
			if m.User == nil {
				continue
			}
			if m.User.Text != "" {
				conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.User.Text)))
			}
		case message.RoleAssistant:
			if m.Assistant == nil {
				continue
			}
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.Assistant.ToolCalls))
			if m.Assistant.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Assistant.Text))
			}
			for _, tc := range m.Assistant.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.CallID, tc.Arguments, tc.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case message.RoleToolResult:
			if m.ToolResult == nil {
				continue
			}
			content := message.Text(m.ToolResult.Content)
			conversation = append(conversation, sdk.NewUserMessage(
				sdk.NewToolResultBlock(m.ToolResult.CallID, content, m.ToolResult.IsError),
			))
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []modelclient.ToolDefinition) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: d.InputSchema}
		u := sdk.ToolUnionParamOfTool(schema, d.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out = append(out, u)
	}
	return out
}

// toolChoiceParam translates the canonical ToolChoice into the Anthropic
// SDK's tool_choice union. ToolChoiceNone is handled by the caller
// omitting Tools/ToolChoice entirely, since the Messages API has no
// explicit "none" value.
func toolChoiceParam(tc modelclient.ToolChoice) sdk.ToolChoiceUnionParam {
	switch tc {
	case modelclient.ToolChoiceRequired:
		return sdk.ToolChoiceParamOfAny()
	case "", modelclient.ToolChoiceAuto:
		return sdk.ToolChoiceParamOfAuto()
	default:
		return sdk.ToolChoiceParamOfTool(string(tc))
	}
}

func translateResponse(msg *sdk.Message) (modelclient.Response, error) {
	if msg == nil {
		return modelclient.Response{}, errors.New("anthropic: response message is nil")
	}
	var resp modelclient.Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return modelclient.Response{}, fmt.Errorf("anthropic: decode tool_use input: %w", err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, message.ToolCallRequest{
				CallID:    block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	resp.Usage = message.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	resp.FinishReason = translateFinishReason(string(msg.StopReason))
	return resp, nil
}

func translateFinishReason(stop string) message.FinishReason {
	switch stop {
	case "end_turn", "stop_sequence":
		return message.FinishStop
	case "tool_use":
		return message.FinishToolCalls
	case "max_tokens":
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

// isRateLimited reports whether err represents a provider rate-limiting
// condition (HTTP 429).
func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}
