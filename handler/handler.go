package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"writeway/internal/domain"
	"writeway/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	CreateSession(ctx context.Context) (domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SendMessage(ctx context.Context, in usecase.SendMessageInput) (usecase.SendMessageOutput, error)
}

type IdeationUseCase interface {
	Start(ctx context.Context) (usecase.StartIdeationOutput, error)
	Respond(ctx context.Context, in usecase.RespondInput) (usecase.RespondOutput, error)
	Delete(ctx context.Context, id string) error
}

type DiagnoseUseCase interface {
	Diagnose(ctx context.Context, article string) (domain.Diagnosis, error)
}

type PlanUseCase interface {
	List(ctx context.Context) ([]domain.Plan, error)
	Get(ctx context.Context, id string) (domain.Plan, error)
	Create(ctx context.Context, in usecase.CreatePlanInput) (domain.Plan, error)
	Update(ctx context.Context, id string, in usecase.UpdatePlanInput) (domain.Plan, error)
	ToggleTask(ctx context.Context, planID, taskID string) (domain.Plan, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	chat     ChatUseCase
	ideation IdeationUseCase
	diagnose DiagnoseUseCase
	plans    PlanUseCase
	logger   *slog.Logger
	routes   []route
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(chat ChatUseCase, ideation IdeationUseCase, diagnose DiagnoseUseCase, plans PlanUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if ideation == nil {
		return nil, errors.New("handler: ideation use case must not be nil")
	}
	if diagnose == nil {
		return nil, errors.New("handler: diagnose use case must not be nil")
	}
	if plans == nil {
		return nil, errors.New("handler: plan use case must not be nil")
	}
	h := &Handler{
		chat:     chat,
		ideation: ideation,
		diagnose: diagnose,
		plans:    plans,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes = h.buildRoutes()
	return h, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type request struct {
	params map[string]string
	body   string
}

// decode unmarshals the request body into dst. An empty body decodes as {}.
func (r request) decode(dst any) error {
	if strings.TrimSpace(r.body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(r.body), dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

// Handle serves one API Gateway proxy request. Failures are reported in the
// response; the returned error is always nil.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	resp := h.dispatch(ctx, logger, event)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	for k, v := range corsHeaders {
		resp.Headers[k] = v
	}
	resp.Headers[correlationHeader] = correlationID

	logger.InfoContext(ctx, "request",
		"method", event.HTTPMethod,
		"path", event.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, logger *slog.Logger, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	method := strings.ToUpper(event.HTTPMethod)
	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}
	}

	rt, params, status := h.match(method, event.Path)
	switch status {
	case http.StatusNotFound:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"})
	case http.StatusMethodNotAllowed:
		return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED", Reason: "method_not_allowed"})
	}

	body := event.Body
	if event.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
		}
		body = string(b)
	}

	out, err := rt.fn(ctx, request{params: params, body: body})
	if err != nil {
		return h.errorToResponse(ctx, logger, err)
	}
	return jsonResponse(http.StatusOK, out)
}

func (h *Handler) errorToResponse(ctx context.Context, logger *slog.Logger, err error) events.APIGatewayProxyResponse {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: "internal_error"})
	}

	status := statusFor(ue.Code)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "use case error", "code", ue.Code, "reason", ue.Reason, "err", ue.Err)
	return jsonResponse(status, errorResponse{Error: string(ue.Code), Reason: ue.Reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type," + correlationHeader,
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","reason":"encode_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
