package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"writeway/internal/domain"
)

const chatTemperature = 0.7

type ChatService struct {
	llm           Completer
	sessions      SessionStore
	historyWindow int
	maxTokens     int
}

type SendMessageInput struct {
	SessionID string
	Message   string
}

type SendMessageOutput struct {
	Response string
	Session  domain.Session
}

func NewChatService(llm Completer, sessions SessionStore, historyWindow, maxTokens int) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &ChatService{
		llm:           llm,
		sessions:      sessions,
		historyWindow: historyWindow,
		maxTokens:     maxTokens,
	}, nil
}

func newChatSession() domain.Session {
	return domain.Session{
		ID:        newUUID(),
		Kind:      domain.SessionKindChat,
		Title:     domain.DefaultSessionTitle,
		Messages:  []domain.ChatMessage{},
		CreatedAt: now(),
	}
}

func (s *ChatService) CreateSession(ctx context.Context) (domain.Session, error) {
	session := newChatSession()
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return domain.Session{}, newError(ErrorInternal, "store_write_error", err)
	}
	return session, nil
}

// ListSessions returns chat sessions newest first.
func (s *ChatService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.sessions.ListSessions(ctx, domain.SessionKindChat)
	if err != nil {
		return nil, newError(ErrorInternal, "store_read_error", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *ChatService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return loadSession(ctx, s.sessions, strings.TrimSpace(id), domain.SessionKindChat)
}

// DeleteSession removes a chat session. Missing ids and sessions of another
// kind are left alone.
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if _, err := loadSession(ctx, s.sessions, id, domain.SessionKindChat); err != nil {
		if CodeOf(err) == ErrorNotFound {
			return nil
		}
		return err
	}
	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		return newError(ErrorInternal, "store_delete_error", err)
	}
	return nil
}

// SendMessage runs one coaching exchange. An empty SessionID starts a new
// session. Nothing is persisted unless the completion succeeds.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (SendMessageOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return SendMessageOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	session := newChatSession()
	isNew := true
	if id := strings.TrimSpace(in.SessionID); id != "" {
		loaded, err := loadSession(ctx, s.sessions, id, domain.SessionKindChat)
		if err != nil {
			return SendMessageOutput{}, err
		}
		session, isNew = loaded, false
	}

	turns := turnCount(len(session.Messages))
	session.Messages = append(session.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: in.Message})
	temperature := chatTemperature

	reply, err := s.llm.Complete(ctx, domain.CompletionRequest{
		System:      coachDirective(turns),
		Messages:    recentWindow(session.Messages, s.historyWindow),
		Temperature: &temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return SendMessageOutput{}, gatewayError("completion", err)
	}
	session.Messages = append(session.Messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})

	if len(session.Messages) == 2 {
		session.Title = deriveTitle(in.Message)
	}

	persist := s.sessions.SaveSession
	if isNew {
		persist = s.sessions.CreateSession
	}
	if err := persist(ctx, session); err != nil {
		return SendMessageOutput{}, newError(ErrorInternal, "store_write_error", err)
	}
	return SendMessageOutput{Response: reply, Session: session}, nil
}
