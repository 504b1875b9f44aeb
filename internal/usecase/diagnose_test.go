package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDiagnoseService_ValidatesDependencies(t *testing.T) {
	_, err := NewDiagnoseService(nil, 2048)
	require.Error(t, err)
}

func TestDiagnose_ShortArticleNeverCallsGateway(t *testing.T) {
	llm := replies(`{"summary":"ok","score":75}`)
	svc, err := NewDiagnoseService(llm, 2048)
	require.NoError(t, err)

	_, err = svc.Diagnose(context.Background(), "0123456789")
	expectError(t, err, ErrorInvalidInput, "article_too_short")

	// 49 characters once the padding is trimmed.
	_, err = svc.Diagnose(context.Background(), "   "+strings.Repeat("字", 49)+"\n\n")
	expectError(t, err, ErrorInvalidInput, "article_too_short")
	require.Empty(t, llm.requests)
}

func TestDiagnose_ExtractsStructuredReply(t *testing.T) {
	llm := replies("以下是分析结果：\n```json\n{\"summary\":\"ok\",\"score\":75}\n```")
	svc, err := NewDiagnoseService(llm, 2048)
	require.NoError(t, err)

	article := strings.Repeat("字", 50)
	d, err := svc.Diagnose(context.Background(), article)
	require.NoError(t, err)
	require.Equal(t, "ok", d.Summary)
	require.Equal(t, 75, d.Score)

	req := llm.lastRequest(t)
	require.Equal(t, diagnosePrompt, req.System)
	require.Len(t, req.Messages, 1)
	require.True(t, strings.HasSuffix(req.Messages[0].Content, article))
}

func TestDiagnose_UnstructuredReplyIsNotAnError(t *testing.T) {
	svc, err := NewDiagnoseService(replies("写得很好。"), 2048)
	require.NoError(t, err)

	d, err := svc.Diagnose(context.Background(), strings.Repeat("a", 60))
	require.NoError(t, err)
	require.Equal(t, "写得很好。", d.Summary)
	require.Zero(t, d.Score)
}

func TestDiagnose_GatewayErrors(t *testing.T) {
	svc, err := NewDiagnoseService(failing(&statusErr{code: 429}), 2048)
	require.NoError(t, err)
	_, err = svc.Diagnose(context.Background(), strings.Repeat("a", 60))
	expectError(t, err, ErrorRateLimited, "completion_rate_limited")
}
