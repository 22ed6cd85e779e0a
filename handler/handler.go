// Package handler adapts the engine's use cases to API Gateway proxy events.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

type ReportUseCase interface {
	Render(ctx context.Context, token string) (usecase.RenderedReport, error)
}

type IngestUseCase interface {
	Ingest(ctx context.Context, in usecase.IngestInput) (usecase.IngestOutput, error)
}

type AskUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type SessionUseCase interface {
	List(ctx context.Context, ownerScope string, includeArchived bool) ([]domain.Session, error)
	Get(ctx context.Context, ownerScope, id string) (domain.Session, error)
	Rename(ctx context.Context, ownerScope, id, title string) (domain.Session, error)
	ArchiveAll(ctx context.Context, ownerScope string) (int, error)
	Delete(ctx context.Context, ownerScope, id string) error
	DeleteAll(ctx context.Context, ownerScope string) (int, error)
	PurgeIndex(ctx context.Context, ownerScope string) (int, error)
}

type ContactUseCase interface {
	Send(ctx context.Context, form usecase.ContactForm) error
}

// Services groups the use cases behind the API. Chat and Reports are
// required; routes of a nil optional service answer 404.
type Services struct {
	Chat     ChatUseCase
	Reports  ReportUseCase
	Ingest   IngestUseCase
	Ask      AskUseCase
	Sessions SessionUseCase
	Contact  ContactUseCase
}

type Handler struct {
	svc Services
	log *zap.Logger
}

func NewHandler(svc Services, log *zap.Logger) (*Handler, error) {
	if svc.Chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if svc.Reports == nil {
		return nil, errors.New("handler: report use case must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}, nil
}

// Handle routes one API Gateway proxy request. Every response carries the
// caller's correlation id, or a fresh one.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With(
		zap.String("correlation_id", correlationID),
		zap.String("method", req.HTTPMethod),
		zap.String("path", req.Path),
	)

	resp, err := h.dispatch(ctx, req)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.Int("status", status), zap.Error(err))
		} else {
			log.Info("request rejected", zap.Int("status", status), zap.Error(err))
		}
		resp = errorResponse(err)
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	segments := splitPath(req.Path)
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case method == http.MethodGet && matches(segments, "health"):
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	case method == http.MethodPost && matches(segments, "chat"):
		return h.chat(ctx, req)
	case method == http.MethodGet && matches(segments, "reports", "*"):
		return h.report(ctx, segments[1])
	case method == http.MethodPost && matches(segments, "ingest") && h.svc.Ingest != nil:
		return h.ingest(ctx, req)
	case method == http.MethodPost && matches(segments, "ask") && h.svc.Ask != nil:
		return h.ask(ctx, req)
	case method == http.MethodPost && matches(segments, "contact") && h.svc.Contact != nil:
		return h.contact(ctx, req)
	case h.svc.Sessions != nil:
		return h.sessions(ctx, method, segments, req)
	}
	return events.APIGatewayProxyResponse{}, routeNotFound(method, req.Path)
}

func (h *Handler) sessions(ctx context.Context, method string, segments []string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	owner := req.QueryStringParameters["ownerScope"]

	switch {
	case method == http.MethodGet && matches(segments, "chats"):
		includeArchived, _ := strconv.ParseBool(req.QueryStringParameters["includeArchived"])
		list, err := h.svc.Sessions.List(ctx, owner, includeArchived)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return jsonResponse(http.StatusOK, SessionsResponse{Sessions: list})
	case method == http.MethodDelete && matches(segments, "chats"):
		n, err := h.svc.Sessions.DeleteAll(ctx, owner)
		return countResponse(n, err)
	case method == http.MethodPost && matches(segments, "chats", "archive"):
		var body OwnerRequest
		if err := decode(req.Body, &body); err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		n, err := h.svc.Sessions.ArchiveAll(ctx, body.OwnerScope)
		return countResponse(n, err)
	case method == http.MethodGet && matches(segments, "chats", "*"):
		s, err := h.svc.Sessions.Get(ctx, owner, segments[1])
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return jsonResponse(http.StatusOK, s)
	case method == http.MethodPatch && matches(segments, "chats", "*"):
		var body RenameRequest
		if err := decode(req.Body, &body); err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		s, err := h.svc.Sessions.Rename(ctx, body.OwnerScope, segments[1], body.Title)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return jsonResponse(http.StatusOK, s)
	case method == http.MethodDelete && matches(segments, "chats", "*"):
		if err := h.svc.Sessions.Delete(ctx, owner, segments[1]); err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
	case method == http.MethodDelete && matches(segments, "index"):
		n, err := h.svc.Sessions.PurgeIndex(ctx, owner)
		return countResponse(n, err)
	}
	return events.APIGatewayProxyResponse{}, routeNotFound(method, req.Path)
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body ChatRequest
	if err := decode(req.Body, &body); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	out, err := h.svc.Chat.Submit(ctx, body.Input())
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return jsonResponse(http.StatusOK, NewChatResponse(out))
}

func (h *Handler) report(ctx context.Context, token string) (events.APIGatewayProxyResponse, error) {
	doc, err := h.svc.Reports.Render(ctx, token)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":        doc.ContentType,
			"Content-Disposition": ContentDisposition(doc.Filename),
		},
		Body:            base64.StdEncoding.EncodeToString(doc.Body),
		IsBase64Encoded: true,
	}, nil
}

func (h *Handler) ingest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body IngestRequest
	if err := decode(req.Body, &body); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	out, err := h.svc.Ingest.Ingest(ctx, usecase.IngestInput{OwnerScope: body.OwnerScope, Filename: body.Filename, Data: body.Data})
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return jsonResponse(http.StatusOK, IngestResponse{ChunksProduced: out.ChunksProduced, ChunksIndexed: out.ChunksIndexed})
}

func (h *Handler) ask(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body AskRequest
	if err := decode(req.Body, &body); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	out, err := h.svc.Ask.Ask(ctx, usecase.AskInput{OwnerScope: body.OwnerScope, Question: body.Question})
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return jsonResponse(http.StatusOK, NewAskResponse(out))
}

func (h *Handler) contact(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body ContactRequest
	if err := decode(req.Body, &body); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	if err := h.svc.Contact.Send(ctx, body.Form()); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return jsonResponse(http.StatusOK, map[string]string{"message": "Form submitted successfully"})
}

func NewAskResponse(out usecase.AskOutput) AskResponse {
	excerpts := out.Context
	if excerpts == nil {
		excerpts = []string{}
	}
	return AskResponse{Answer: out.Answer, Context: excerpts}
}

// StatusFor maps a use case error to its HTTP status. Errors without a code
// are internal.
func StatusFor(err error) int {
	switch usecase.CodeOf(err) {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error payload for err.
func ErrorBody(err error) ErrorResponse {
	out := ErrorResponse{Error: string(usecase.CodeOf(err))}
	var ue *usecase.Error
	if errors.As(err, &ue) {
		out.Reason = ue.Reason
	}
	return out
}

// ContentDisposition marks a download as an attachment named filename.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	resp, marshalErr := jsonResponse(StatusFor(err), ErrorBody(err))
	if marshalErr != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}
	}
	return resp
}

func countResponse(n int, err error) (events.APIGatewayProxyResponse, error) {
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return jsonResponse(http.StatusOK, CountResponse{Count: n})
}

func jsonResponse(status int, v any) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("handler: marshal response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func decode(body string, v any) error {
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func routeNotFound(method, path string) error {
	return &usecase.Error{Code: usecase.ErrorNotFound, Reason: "route_not_found", Err: fmt.Errorf("%s %s", method, path)}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// matches reports whether segments equal pattern, where "*" matches any
// single non-empty segment.
func matches(segments []string, pattern ...string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != p {
			return false
		}
	}
	return true
}
