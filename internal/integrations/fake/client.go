// Package fake is an offline completion gateway used when LLM_PROVIDER=mock
// and in transport tests.
package fake

import (
	"context"
	"strings"
	"sync"

	"writeway/internal/domain"
)

// sampleDiagnosis is returned for article analysis requests so the diagnose
// flow can be exercised end to end without a provider.
const sampleDiagnosis = `{"summary":"文章结构完整，观点明确。","score":72,` +
	`"structure":{"score":75,"feedback":"层次清楚","suggestions":["结尾可以再收束一下"]},` +
	`"logic":{"score":70,"feedback":"论证基本连贯","suggestions":["补充一个具体例子"]},` +
	`"expression":{"score":70,"feedback":"语言平实","suggestions":["减少重复用词"]},` +
	`"grammar":{"score":80,"feedback":"无明显语病","issues":[]}}`

// Client replays Replies in order and then falls back to echoing the last
// user message. Requests are recorded for inspection.
type Client struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	requests []domain.CompletionRequest
}

func New(replies ...string) *Client {
	return &Client{Replies: replies}
}

func (c *Client) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) > 0 {
		reply := c.Replies[0]
		c.Replies = c.Replies[1:]
		return reply, nil
	}
	return defaultReply(req), nil
}

// Requests returns a copy of every request seen so far.
func (c *Client) Requests() []domain.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

func defaultReply(req domain.CompletionRequest) string {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if strings.Contains(req.System, "JSON") {
		return sampleDiagnosis
	}
	return "收到：" + last
}
