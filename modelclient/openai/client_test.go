package openai

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
)

type stubChatClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
}

func (s *stubChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestCompleteTextOnly(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{
				{
					FinishReason: "stop",
					Message:      sdk.ChatCompletionMessage{Content: "world"},
				},
			},
			Usage: sdk.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), modelclient.Request{
		Messages: []message.Message{message.NewUser("hello")},
	})
	require.NoError(t, err)
	require.Equal(t, "world", resp.Text)
	require.Equal(t, message.FinishStop, resp.FinishReason)
	require.Equal(t, 10, resp.Usage.PromptTokens)
	require.Equal(t, 5, resp.Usage.CompletionTokens)
}

func TestCompleteToolCalls(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{
				{
					FinishReason: "tool_calls",
					Message: sdk.ChatCompletionMessage{
						ToolCalls: []sdk.ChatCompletionMessageToolCall{
							{
								ID: "tc_1",
								Function: sdk.ChatCompletionMessageToolCallFunction{
									Name:      "add",
									Arguments: `{"a":1,"b":2}`,
								},
							},
						},
					},
				},
			},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), modelclient.Request{
		Messages: []message.Message{message.NewUser("add 1 and 2")},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "add", resp.ToolCalls[0].Name)
	require.Equal(t, message.FinishToolCalls, resp.FinishReason)
}

func TestCompleteRequiresMessages(t *testing.T) {
	cl, err := New(&stubChatClient{}, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), modelclient.Request{})
	require.Error(t, err)
	var permErr *modelclient.PermanentError
	require.ErrorAs(t, err, &permErr)
}

func TestCompleteEmptyChoicesErrors(t *testing.T) {
	cl, err := New(&stubChatClient{resp: &sdk.ChatCompletion{}}, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), modelclient.Request{
		Messages: []message.Message{message.NewUser("hi")},
	})
	require.Error(t, err)
}

func TestCompleteToolChoiceRequired(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{{FinishReason: "stop", Message: sdk.ChatCompletionMessage{Content: "ok"}}},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), modelclient.Request{
		Messages:   []message.Message{message.NewUser("hello")},
		Tools:      []modelclient.ToolDefinition{{Name: "add"}},
		ToolChoice: modelclient.ToolChoiceRequired,
	})
	require.NoError(t, err)
	require.NotNil(t, stub.lastParams.ToolChoice.OfAuto)
	require.Equal(t, "required", *stub.lastParams.ToolChoice.OfAuto)
}

func TestCompleteToolChoiceNamedTool(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{{FinishReason: "stop", Message: sdk.ChatCompletionMessage{Content: "ok"}}},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), modelclient.Request{
		Messages:   []message.Message{message.NewUser("hello")},
		Tools:      []modelclient.ToolDefinition{{Name: "add"}},
		ToolChoice: "add",
	})
	require.NoError(t, err)
	require.NotNil(t, stub.lastParams.ToolChoice.OfChatCompletionNamedToolChoice)
	require.Equal(t, "add", stub.lastParams.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name)
}

func TestCompleteToolChoiceNoneSentAsLiteral(t *testing.T) {
	stub := &stubChatClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{{FinishReason: "stop", Message: sdk.ChatCompletionMessage{Content: "ok"}}},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), modelclient.Request{
		Messages:   []message.Message{message.NewUser("hello")},
		Tools:      []modelclient.ToolDefinition{{Name: "add"}},
		ToolChoice: modelclient.ToolChoiceNone,
	})
	require.NoError(t, err)
	require.NotNil(t, stub.lastParams.ToolChoice.OfAuto)
	require.Equal(t, "none", *stub.lastParams.ToolChoice.OfAuto)
}

func TestStreamUnsupported(t *testing.T) {
	cl, err := New(&stubChatClient{}, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Stream(context.Background(), modelclient.Request{})
	require.ErrorIs(t, err, modelclient.ErrStreamingUnsupported)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubChatClient{}, Options{})
	require.Error(t, err)
}
