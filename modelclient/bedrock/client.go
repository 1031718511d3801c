// Package bedrock provides a modelclient.Client implementation backed by
// the AWS Bedrock Converse API. It splits system from conversational
// messages, encodes tool schemas into Bedrock's ToolConfiguration, and
// translates Converse responses (text + tool_use blocks) back into
// canonical structures.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// adapter requires. Satisfied by *bedrockruntime.Client or a mock.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	// DefaultModel is used when Request.Model is empty.
	DefaultModel string
	// MaxTokens caps completion length when Request.MaxTokens is zero.
	MaxTokens int
	// Temperature applies when Request.Temperature is zero.
	Temperature float32
}

// Client implements modelclient.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// New builds an adapter around an existing RuntimeClient.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// Complete issues a Converse request and translates the output.
func (c *Client) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	input, err := c.buildInput(req)
	if err != nil {
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "bedrock", Cause: err}
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isThrottled(err) {
			return modelclient.Response{}, &modelclient.TransientError{Provider: "bedrock", Cause: err}
		}
		return modelclient.Response{}, &modelclient.PermanentError{Provider: "bedrock", Cause: err}
	}
	return translateResponse(output)
}

// Stream is not implemented by this adapter; Bedrock's ConverseStream
// requires an event-stream reader that this module does not wire.
func (c *Client) Stream(context.Context, modelclient.Request) (modelclient.Streamer, error) {
	return nil, modelclient.ErrStreamingUnsupported
}

// CountTokens estimates tokens by character length; Bedrock does not
// expose a local tokenizer for Converse.
func (c *Client) CountTokens(_ context.Context, req modelclient.Request) (int, error) {
	total := 0
	for _, m := range req.Messages {
		total += len(textOf(m))
	}
	const approxCharsPerToken = 4
	return total / approxCharsPerToken, nil
}

func (c *Client) buildInput(req modelclient.Request) (*bedrockruntime.ConverseInput, error) {
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
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: msgs,
		System:   system,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if maxTokens > 0 || temp > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			m := int32(maxTokens)
			cfg.MaxTokens = &m
		}
		if temp > 0 {
			cfg.Temperature = &temp
		}
		input.InferenceConfig = cfg
	}
	if req.ToolChoice != modelclient.ToolChoiceNone {
		if toolConfig := encodeTools(req.Tools); toolConfig != nil {
			toolConfig.ToolChoice = toolChoiceParam(req.ToolChoice)
			input.ToolConfig = toolConfig
		}
	}
	return input, nil
}

func encodeMessages(msgs []message.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0, 1)

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if m.System != nil && m.System.Text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.System.Text})
			}
		case message.RoleUser:
			if m.User == nil || m.User.Text == "" {
				continue
			}
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.User.Text}},
			})
		case message.RoleAssistant:
			if m.Assistant == nil {
				continue
			}
			blocks := make([]brtypes.ContentBlock, 0, 1+len(m.Assistant.ToolCalls))
			if m.Assistant.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Assistant.Text})
			}
			for _, tc := range m.Assistant.ToolCalls {
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(tc.CallID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(tc.Arguments),
				}})
			}
			if len(blocks) > 0 {
				conversation = append(conversation, brtypes.Message{
					Role:    brtypes.ConversationRoleAssistant,
					Content: blocks,
				})
			}
		case message.RoleToolResult:
			if m.ToolResult == nil {
				continue
			}
			content := message.Text(m.ToolResult.Content)
			result := brtypes.ToolResultBlock{
				ToolUseId: aws.String(m.ToolResult.CallID),
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: content}},
			}
			if m.ToolResult.IsError {
				result.Status = brtypes.ToolResultStatusError
			}
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{Value: result}},
			})
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []modelclient.ToolDefinition) *brtypes.ToolConfiguration {
	if len(defs) == 0 {
		return nil
	}
	toolList := make([]brtypes.Tool, 0, len(defs))
	for _, d := range defs {
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(d.InputSchema)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: toolList}
}

// toolChoiceParam translates the canonical ToolChoice into Bedrock's
// Converse tool_choice union. ToolChoiceNone is handled by the caller
// omitting ToolConfig entirely, since Converse has no explicit "none"
// member.
func toolChoiceParam(tc modelclient.ToolChoice) brtypes.ToolChoice {
	switch tc {
	case modelclient.ToolChoiceRequired:
		return &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	case "", modelclient.ToolChoiceAuto:
		return &brtypes.ToolChoiceMemberAuto{Value: brtypes.AutoToolChoice{}}
	default:
		return &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{Name: aws.String(string(tc))}}
	}
}

func translateResponse(output *bedrockruntime.ConverseOutput) (modelclient.Response, error) {
	if output == nil {
		return modelclient.Response{}, errors.New("bedrock: response is nil")
	}
	var resp modelclient.Response
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				resp.Text += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				args, err := decodeDocument(v.Value.Input)
				if err != nil {
					return modelclient.Response{}, fmt.Errorf("bedrock: decode tool_use input: %w", err)
				}
				resp.ToolCalls = append(resp.ToolCalls, message.ToolCallRequest{
					CallID:    aws.ToString(v.Value.ToolUseId),
					Name:      aws.ToString(v.Value.Name),
					Arguments: args,
				})
			}
		}
	}
	if usage := output.Usage; usage != nil {
		resp.Usage = message.Usage{
			PromptTokens:     int(aws.ToInt32(usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(usage.TotalTokens)),
		}
	}
	resp.FinishReason = translateFinishReason(output.StopReason)
	return resp, nil
}

func decodeDocument(doc document.Interface) (map[string]any, error) {
	if doc == nil {
		return nil, nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func translateFinishReason(stop brtypes.StopReason) message.FinishReason {
	switch stop {
	case brtypes.StopReasonEndTurn, brtypes.StopReasonStopSequence:
		return message.FinishStop
	case brtypes.StopReasonToolUse:
		return message.FinishToolCalls
	case brtypes.StopReasonMaxTokens:
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

// isThrottled reports whether err represents a Bedrock throttling
// condition (ThrottlingException).
func isThrottled(err error) bool {
	var apiErr *brtypes.ThrottlingException
	return err != nil && errors.As(err, &apiErr)
}
