package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"writeway/internal/domain"
)

// MinArticleLength is the shortest trimmed article, in characters, worth a diagnosis.
const MinArticleLength = 50

type DiagnoseService struct {
	llm       Completer
	maxTokens int
}

func NewDiagnoseService(llm Completer, maxTokens int) (*DiagnoseService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	return &DiagnoseService{llm: llm, maxTokens: maxTokens}, nil
}

// Diagnose validates the article before any model call, then extracts a
// structured result from the reply. Unparseable replies are not errors.
func (s *DiagnoseService) Diagnose(ctx context.Context, article string) (domain.Diagnosis, error) {
	if utf8.RuneCountInString(strings.TrimSpace(article)) < MinArticleLength {
		return domain.Diagnosis{}, newError(ErrorInvalidInput, "article_too_short", nil)
	}
	raw, err := s.llm.Complete(ctx, domain.CompletionRequest{
		System:    diagnosePrompt,
		Messages:  []domain.ChatMessage{buildDiagnoseMessage(article)},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return domain.Diagnosis{}, gatewayError("completion", err)
	}
	return ExtractDiagnosis(raw), nil
}
