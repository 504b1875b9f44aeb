package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultSessionTitle is used until a chat session earns a derived title.
const DefaultSessionTitle = "新对话"

type SessionKind string

const (
	SessionKindChat     SessionKind = "chat"
	SessionKindIdeation SessionKind = "ideation"
)

type Stage string

const (
	StageTopic    Stage = "topic"
	StageAudience Stage = "audience"
	StagePurpose  Stage = "purpose"
	StageOutline  Stage = "outline"
)

// Stages lists the ideation stages in their only legal order.
var Stages = []Stage{StageTopic, StageAudience, StagePurpose, StageOutline}

// Index returns the position of s in Stages, or -1 for an unknown value.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Session is one conversation thread. Chat and ideation sessions share the
// shape; Stage is only meaningful for ideation.
type Session struct {
	ID        string        `json:"id"`
	Kind      SessionKind   `json:"kind"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	Stage     Stage         `json:"stage,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]ChatMessage, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
