package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"assistant-engine/handler"
	"assistant-engine/internal/domain"
	"assistant-engine/internal/usecase"
)

type fakeChat struct {
	in  usecase.SubmitInput
	err error
}

func (f *fakeChat) Submit(_ context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error) {
	f.in = in
	if f.err != nil {
		return usecase.SubmitOutput{}, f.err
	}
	return usecase.SubmitOutput{Answer: "answer to " + in.Text, SessionID: "s-1"}, nil
}

type fakeReports struct{ rendered int }

func (f *fakeReports) Render(_ context.Context, token string) (usecase.RenderedReport, error) {
	if token != "good" || f.rendered > 0 {
		return usecase.RenderedReport{}, &usecase.Error{Code: usecase.ErrorNotFound, Reason: "report_not_found"}
	}
	f.rendered++
	return usecase.RenderedReport{Filename: "Plan.docx", ContentType: "application/test", Body: []byte("PK")}, nil
}

type fakeIngest struct{ in usecase.IngestInput }

func (f *fakeIngest) Ingest(_ context.Context, in usecase.IngestInput) (usecase.IngestOutput, error) {
	f.in = in
	return usecase.IngestOutput{ChunksProduced: 1, ChunksIndexed: 1}, nil
}

type fakeSessions struct {
	deleted string
}

func (f *fakeSessions) List(_ context.Context, owner string, _ bool) ([]domain.Session, error) {
	return []domain.Session{{ID: "a", OwnerScope: owner, Turns: []domain.Turn{}}}, nil
}

func (f *fakeSessions) Get(_ context.Context, owner, id string) (domain.Session, error) {
	if id == "missing" {
		return domain.Session{}, &usecase.Error{Code: usecase.ErrorNotFound, Reason: "session_not_found"}
	}
	return domain.Session{ID: id, OwnerScope: owner}, nil
}

func (f *fakeSessions) Rename(_ context.Context, owner, id, title string) (domain.Session, error) {
	return domain.Session{ID: id, OwnerScope: owner, Title: title}, nil
}

func (f *fakeSessions) ArchiveAll(context.Context, string) (int, error) { return 1, nil }

func (f *fakeSessions) Delete(_ context.Context, owner, id string) error {
	f.deleted = owner + "/" + id
	return nil
}

func (f *fakeSessions) DeleteAll(context.Context, string) (int, error) { return 2, nil }

func (f *fakeSessions) PurgeIndex(context.Context, string) (int, error) { return 3, nil }

func newTestRouter(svc handler.Services) *gin.Engine {
	if svc.Chat == nil {
		svc.Chat = &fakeChat{}
	}
	if svc.Reports == nil {
		svc.Reports = &fakeReports{}
	}
	return NewRouter(svc, Options{Mode: gin.TestMode, MaxUploadBytes: 64}, nil)
}

func serve(r *gin.Engine, req *nethttp.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body any) *nethttp.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	w := serve(newTestRouter(handler.Services{}), httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	require.NotEmpty(t, w.Header().Get(correlationHeader))
}

func TestChat_JSON(t *testing.T) {
	chat := &fakeChat{}
	r := newTestRouter(handler.Services{Chat: chat})

	req := jsonRequest(t, nethttp.MethodPost, "/api/chat", handler.ChatRequest{OwnerScope: "alice", Message: "hi"})
	req.Header.Set(correlationHeader, "corr-1")
	w := serve(r, req)

	require.Equal(t, nethttp.StatusOK, w.Code)
	require.Equal(t, "corr-1", w.Header().Get(correlationHeader))
	require.Equal(t, "alice", chat.in.OwnerScope)

	var out handler.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, handler.ChatResponse{Answer: "answer to hi", Citations: []domain.Citation{}, SessionID: "s-1"}, out)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField string, files map[string][]byte) *nethttp.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(fileField, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(nethttp.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestChat_Multipart(t *testing.T) {
	chat := &fakeChat{}
	r := newTestRouter(handler.Services{Chat: chat})

	req := multipartRequest(t, "/api/chat",
		map[string]string{"ownerScope": "alice", "sessionId": "s-1", "message": "see file", "singleShot": "true"},
		"files", map[string][]byte{"a.pdf": []byte("%PDF-1.4")})
	w := serve(r, req)

	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.Equal(t, usecase.SubmitInput{
		OwnerScope: "alice",
		SessionID:  "s-1",
		Text:       "see file",
		SingleShot: true,
		Uploads:    []usecase.Upload{{Filename: "a.pdf", Data: []byte("%PDF-1.4")}},
	}, chat.in)
}

func TestChat_FileTooLarge(t *testing.T) {
	r := newTestRouter(handler.Services{})
	req := multipartRequest(t, "/api/chat", map[string]string{"ownerScope": "alice"},
		"files", map[string][]byte{"big.pdf": bytes.Repeat([]byte("x"), 65)})
	w := serve(r, req)

	require.Equal(t, nethttp.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"INVALID_INPUT","reason":"file_too_large"}`, w.Body.String())
}

func TestChat_ErrorMapping(t *testing.T) {
	r := newTestRouter(handler.Services{Chat: &fakeChat{err: &usecase.Error{Code: usecase.ErrorConflict, Reason: "session_version_conflict"}}})
	w := serve(r, jsonRequest(t, nethttp.MethodPost, "/api/chat", handler.ChatRequest{OwnerScope: "a", Message: "m"}))
	require.Equal(t, nethttp.StatusConflict, w.Code)
	require.JSONEq(t, `{"error":"CONFLICT","reason":"session_version_conflict"}`, w.Body.String())

	bad := httptest.NewRequest(nethttp.MethodPost, "/api/chat", bytes.NewBufferString("{"))
	bad.Header.Set("Content-Type", "application/json")
	w = serve(r, bad)
	require.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestReportDownloadIsSingleUse(t *testing.T) {
	r := newTestRouter(handler.Services{Reports: &fakeReports{}})

	w := serve(r, httptest.NewRequest(nethttp.MethodGet, "/reports/good", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.Equal(t, "application/test", w.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="Plan.docx"`, w.Header().Get("Content-Disposition"))
	require.Equal(t, "PK", w.Body.String())

	w = serve(r, httptest.NewRequest(nethttp.MethodGet, "/reports/good", nil))
	require.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestIngest_Multipart(t *testing.T) {
	ingest := &fakeIngest{}
	r := newTestRouter(handler.Services{Ingest: ingest})

	w := serve(r, multipartRequest(t, "/api/ingest", map[string]string{"ownerScope": "alice"},
		"file", map[string][]byte{"notes.txt": []byte("hello")}))
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.Equal(t, usecase.IngestInput{OwnerScope: "alice", Filename: "notes.txt", Data: []byte("hello")}, ingest.in)
	require.JSONEq(t, `{"chunksProduced":1,"chunksIndexed":1}`, w.Body.String())

	w = serve(r, multipartRequest(t, "/api/ingest", map[string]string{"ownerScope": "alice"}, "file", nil))
	require.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestSessionRoutes(t *testing.T) {
	sessions := &fakeSessions{}
	r := newTestRouter(handler.Services{Sessions: sessions})

	w := serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/chats?ownerScope=alice", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	var list handler.SessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)

	w = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/chats/missing?ownerScope=alice", nil))
	require.Equal(t, nethttp.StatusNotFound, w.Code)

	w = serve(r, jsonRequest(t, nethttp.MethodPatch, "/api/chats/s1", handler.RenameRequest{OwnerScope: "alice", Title: "T"}))
	require.Equal(t, nethttp.StatusOK, w.Code)

	w = serve(r, jsonRequest(t, nethttp.MethodPost, "/api/chats/archive", handler.OwnerRequest{OwnerScope: "alice"}))
	require.JSONEq(t, `{"count":1}`, w.Body.String())

	w = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/chats/s1?ownerScope=alice", nil))
	require.Equal(t, nethttp.StatusNoContent, w.Code)
	require.Equal(t, "alice/s1", sessions.deleted)

	w = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/chats?ownerScope=alice", nil))
	require.JSONEq(t, `{"count":2}`, w.Body.String())

	w = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/index?ownerScope=alice", nil))
	require.JSONEq(t, `{"count":3}`, w.Body.String())
}

func TestOptionalRoutesAbsent(t *testing.T) {
	r := newTestRouter(handler.Services{})
	for _, path := range []string{"/api/ask", "/api/ingest", "/api/contact"} {
		w := serve(r, jsonRequest(t, nethttp.MethodPost, path, map[string]string{}))
		require.Equal(t, nethttp.StatusNotFound, w.Code, path)
	}
}
