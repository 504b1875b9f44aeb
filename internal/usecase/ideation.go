package usecase

import (
	"context"
	"errors"
	"strings"

	"writeway/internal/domain"
)

// IdeationService drives the guided topic → audience → purpose → outline flow.
type IdeationService struct {
	llm       Completer
	sessions  SessionStore
	maxTokens int
}

type StartIdeationOutput struct {
	SessionID string
	Stage     domain.Stage
	Prompt    string
}

type RespondInput struct {
	SessionID string
	Message   string
}

type RespondOutput struct {
	Response   string
	Stage      domain.Stage
	IsComplete bool
}

func NewIdeationService(llm Completer, sessions SessionStore, maxTokens int) (*IdeationService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	return &IdeationService{llm: llm, sessions: sessions, maxTokens: maxTokens}, nil
}

func (s *IdeationService) Start(ctx context.Context) (StartIdeationOutput, error) {
	session := domain.Session{
		ID:        newUUID(),
		Kind:      domain.SessionKindIdeation,
		Title:     domain.DefaultSessionTitle,
		Messages:  []domain.ChatMessage{},
		Stage:     domain.StageTopic,
		CreatedAt: now(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return StartIdeationOutput{}, newError(ErrorInternal, "store_write_error", err)
	}
	return StartIdeationOutput{
		SessionID: session.ID,
		Stage:     session.Stage,
		Prompt:    ideationGreeting,
	}, nil
}

// Respond runs one exchange and then advances the stage. The model sees the
// full history; ideation sessions are short enough not to need a window.
func (s *IdeationService) Respond(ctx context.Context, in RespondInput) (RespondOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return RespondOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	session, err := loadSession(ctx, s.sessions, strings.TrimSpace(in.SessionID), domain.SessionKindIdeation)
	if err != nil {
		return RespondOutput{}, err
	}
	session.Stage = normalizeStage(session.Stage)
	session.Messages = append(session.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: in.Message})

	reply, err := s.llm.Complete(ctx, domain.CompletionRequest{
		System:    buildIdeationPrompt(session.Stage),
		Messages:  recentWindow(session.Messages, 0),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return RespondOutput{}, gatewayError("completion", err)
	}
	session.Messages = append(session.Messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	session.Stage = advanceStage(session.Stage, len(session.Messages))

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return RespondOutput{}, newError(ErrorInternal, "store_write_error", err)
	}
	return RespondOutput{
		Response:   reply,
		Stage:      session.Stage,
		IsComplete: ideationComplete(session.Stage, len(session.Messages)),
	}, nil
}

func (s *IdeationService) Delete(ctx context.Context, id string) error {
	if err := s.sessions.DeleteSession(ctx, strings.TrimSpace(id)); err != nil {
		return newError(ErrorInternal, "store_delete_error", err)
	}
	return nil
}
