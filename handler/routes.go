package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"writeway/internal/domain"
	"writeway/internal/usecase"
)

type route struct {
	method   string
	segments []string
	fn       func(ctx context.Context, r request) (any, error)
}

func (h *Handler) buildRoutes() []route {
	r := func(method, pattern string, fn func(ctx context.Context, r request) (any, error)) route {
		return route{method: method, segments: splitPath(pattern), fn: fn}
	}
	return []route{
		r(http.MethodGet, "/api/health", h.health),

		r(http.MethodGet, "/api/chat/sessions", h.listSessions),
		r(http.MethodPost, "/api/chat/sessions", h.createSession),
		r(http.MethodGet, "/api/chat/sessions/{id}", h.getSession),
		r(http.MethodDelete, "/api/chat/sessions/{id}", h.deleteSession),
		r(http.MethodPost, "/api/chat/sessions/{id}/messages", h.sendMessage),
		r(http.MethodPost, "/api/chat/messages", h.sendMessage),

		r(http.MethodPost, "/api/diagnose", h.diagnoseArticle),

		r(http.MethodPost, "/api/ideation/start", h.startIdeation),
		r(http.MethodPost, "/api/ideation/respond", h.respondIdeation),
		r(http.MethodDelete, "/api/ideation/{id}", h.deleteIdeation),

		r(http.MethodGet, "/api/plans", h.listPlans),
		r(http.MethodPost, "/api/plans", h.createPlan),
		r(http.MethodGet, "/api/plans/{id}", h.getPlan),
		r(http.MethodPut, "/api/plans/{id}", h.updatePlan),
		r(http.MethodDelete, "/api/plans/{id}", h.deletePlan),
		r(http.MethodPatch, "/api/plans/{id}/tasks/{taskId}", h.toggleTask),
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// match finds the route for method and path. When the path is known but the
// method is not, the status is 405; an unknown path is 404.
func (h *Handler) match(method, path string) (route, map[string]string, int) {
	segments := splitPath(path)
	pathKnown := false
	for _, rt := range h.routes {
		params, ok := matchSegments(rt.segments, segments)
		if !ok {
			continue
		}
		pathKnown = true
		if rt.method == method {
			return rt, params, http.StatusOK
		}
	}
	if pathKnown {
		return route{}, nil, http.StatusMethodNotAllowed
	}
	return route{}, nil, http.StatusNotFound
}

func matchSegments(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segments[i] == "" {
				return nil, false
			}
			params[p[1:len(p)-1]] = segments[i]
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return params, true
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) health(context.Context, request) (any, error) {
	return healthResponse{Status: "ok", Message: "WriteWay server is running"}, nil
}

type sessionResponse struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Messages []domain.ChatMessage `json:"messages"`
}

type sessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}

func (h *Handler) listSessions(ctx context.Context, _ request) (any, error) {
	sessions, err := h.chat.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt, MessageCount: len(s.Messages)})
	}
	return out, nil
}

func (h *Handler) createSession(ctx context.Context, _ request) (any, error) {
	s, err := h.chat.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return sessionResponse{ID: s.ID, Title: s.Title, Messages: s.Messages}, nil
}

func (h *Handler) getSession(ctx context.Context, r request) (any, error) {
	return h.chat.GetSession(ctx, r.params["id"])
}

func (h *Handler) deleteSession(ctx context.Context, r request) (any, error) {
	if err := h.chat.DeleteSession(ctx, r.params["id"]); err != nil {
		return nil, err
	}
	return successResponse{Success: true}, nil
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type sendMessageResponse struct {
	SessionID string               `json:"sessionId"`
	Response  string               `json:"response"`
	Messages  []domain.ChatMessage `json:"messages"`
}

// sendMessage serves both the path-scoped and the body-scoped variants; a
// path id wins over the body.
func (h *Handler) sendMessage(ctx context.Context, r request) (any, error) {
	var req sendMessageRequest
	if err := r.decode(&req); err != nil {
		return nil, err
	}
	if id, ok := r.params["id"]; ok {
		req.SessionID = id
	}
	out, err := h.chat.SendMessage(ctx, usecase.SendMessageInput{SessionID: req.SessionID, Message: req.Message})
	if err != nil {
		return nil, err
	}
	return sendMessageResponse{SessionID: out.Session.ID, Response: out.Response, Messages: out.Session.Messages}, nil
}

type diagnoseRequest struct {
	Article string `json:"article"`
}

func (h *Handler) diagnoseArticle(ctx context.Context, r request) (any, error) {
	var req diagnoseRequest
	if err := r.decode(&req); err != nil {
		return nil, err
	}
	return h.diagnose.Diagnose(ctx, req.Article)
}

type startIdeationResponse struct {
	SessionID string       `json:"sessionId"`
	Stage     domain.Stage `json:"stage"`
	Prompt    string       `json:"prompt"`
}

func (h *Handler) startIdeation(ctx context.Context, _ request) (any, error) {
	out, err := h.ideation.Start(ctx)
	if err != nil {
		return nil, err
	}
	return startIdeationResponse{SessionID: out.SessionID, Stage: out.Stage, Prompt: out.Prompt}, nil
}

type respondRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type respondResponse struct {
	Response   string       `json:"response"`
	Stage      domain.Stage `json:"stage"`
	IsComplete bool         `json:"isComplete"`
}

func (h *Handler) respondIdeation(ctx context.Context, r request) (any, error) {
	var req respondRequest
	if err := r.decode(&req); err != nil {
		return nil, err
	}
	out, err := h.ideation.Respond(ctx, usecase.RespondInput{SessionID: req.SessionID, Message: req.Message})
	if err != nil {
		return nil, err
	}
	return respondResponse{Response: out.Response, Stage: out.Stage, IsComplete: out.IsComplete}, nil
}

func (h *Handler) deleteIdeation(ctx context.Context, r request) (any, error) {
	if err := h.ideation.Delete(ctx, r.params["id"]); err != nil {
		return nil, err
	}
	return successResponse{Success: true}, nil
}

func (h *Handler) listPlans(ctx context.Context, _ request) (any, error) {
	return h.plans.List(ctx)
}

func (h *Handler) getPlan(ctx context.Context, r request) (any, error) {
	return h.plans.Get(ctx, r.params["id"])
}

type createPlanRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Deadline    *string  `json:"deadline"`
	Tasks       []string `json:"tasks"`
}

func (h *Handler) createPlan(ctx context.Context, r request) (any, error) {
	var req createPlanRequest
	if err := r.decode(&req); err != nil {
		return nil, err
	}
	return h.plans.Create(ctx, usecase.CreatePlanInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Tasks:       req.Tasks,
	})
}

type updatePlanRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Deadline    *string        `json:"deadline"`
	Tasks       *[]domain.Task `json:"tasks"`
}

func (h *Handler) updatePlan(ctx context.Context, r request) (any, error) {
	var req updatePlanRequest
	if err := r.decode(&req); err != nil {
		return nil, err
	}
	return h.plans.Update(ctx, r.params["id"], usecase.UpdatePlanInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Tasks:       req.Tasks,
	})
}

func (h *Handler) toggleTask(ctx context.Context, r request) (any, error) {
	return h.plans.ToggleTask(ctx, r.params["id"], r.params["taskId"])
}

func (h *Handler) deletePlan(ctx context.Context, r request) (any, error) {
	if err := h.plans.Delete(ctx, r.params["id"]); err != nil {
		return nil, err
	}
	return successResponse{Success: true}, nil
}
