package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"writeway/internal/domain"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	res *genai.GenerateContentResponse
	err error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.res, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func TestNew_EmptyKey(t *testing.T) {
	_, err := New(context.Background(), " ")
	require.Error(t, err)
}

func TestComplete_BuildsRequest(t *testing.T) {
	gen := &fakeGenerator{res: textResponse("好的")}
	c := &Client{models: gen, model: "gemini-test"}

	temp := 0.7
	out, err := c.Complete(context.Background(), domain.CompletionRequest{
		System: "coach",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
			{Role: domain.RoleUser, Content: "help"},
		},
		Temperature: &temp,
		MaxTokens:   2048,
	})
	require.NoError(t, err)
	require.Equal(t, "好的", out)

	require.Equal(t, "gemini-test", gen.model)
	require.Len(t, gen.contents, 3)
	require.Equal(t, string(genai.RoleModel), gen.contents[1].Role)
	require.Equal(t, "hello", gen.contents[1].Parts[0].Text)
	require.Equal(t, int32(2048), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.Temperature)
	require.InDelta(t, 0.7, *gen.config.Temperature, 1e-6)
	require.Equal(t, "coach", gen.config.SystemInstruction.Parts[0].Text)
}

func TestComplete_NoSystemOrTemperature(t *testing.T) {
	gen := &fakeGenerator{res: textResponse("ok")}
	c := &Client{models: gen, model: defaultModel}

	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	require.Nil(t, gen.config.SystemInstruction)
	require.Nil(t, gen.config.Temperature)
}

func TestComplete_Errors(t *testing.T) {
	c := &Client{models: &fakeGenerator{err: genai.APIError{Code: 429, Message: "quota"}}, model: defaultModel}
	_, err := c.Complete(context.Background(), domain.CompletionRequest{})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 429, statusErr.HTTPStatusCode())

	c = &Client{models: &fakeGenerator{err: errors.New("dial tcp")}, model: defaultModel}
	_, err = c.Complete(context.Background(), domain.CompletionRequest{})
	require.ErrorContains(t, err, "dial tcp")
	require.False(t, errors.As(err, &statusErr))

	c = &Client{models: &fakeGenerator{res: &genai.GenerateContentResponse{}}, model: defaultModel}
	_, err = c.Complete(context.Background(), domain.CompletionRequest{})
	require.ErrorContains(t, err, "empty response")
}
