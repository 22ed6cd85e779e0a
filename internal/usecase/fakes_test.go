package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/integrations/openai"
	"assistant-engine/internal/report/pending"
	"assistant-engine/internal/repository"
)

type llmResponse struct {
	answer string
	err    error
}

// mockLLM replays responses in order, repeating the last one, and records
// every message list it receives.
type mockLLM struct {
	mu        sync.Mutex
	responses []llmResponse
	calls     [][]domain.ChatMessage
}

func (m *mockLLM) Complete(_ context.Context, msgs []domain.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msgs)
	if len(m.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx].answer, m.responses[idx].err
}

func (m *mockLLM) lastCall(t *testing.T) []domain.ChatMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.calls, "llm was never called")
	return m.calls[len(m.calls)-1]
}

func answers(replies ...string) *mockLLM {
	m := &mockLLM{}
	for _, r := range replies {
		m.responses = append(m.responses, llmResponse{answer: r})
	}
	return m
}

func rateLimited() error {
	return &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests, URL: "https://api.test", Body: "slow down"}
}

type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeExtractor) ExtractText(_ context.Context, filename string, _ []byte) (string, error) {
	if err, ok := f.errs[filename]; ok {
		return "", err
	}
	text, ok := f.texts[filename]
	if !ok {
		return "", fmt.Errorf("no text for %s", filename)
	}
	return text, nil
}

type fakeImages struct {
	desc string
	err  error
}

func (f *fakeImages) DescribeImage(_ context.Context, _ []byte) (string, error) {
	return f.desc, f.err
}

type fakeIndex struct {
	mu        sync.Mutex
	chunks    map[string][]string
	ids       []string
	upsertErr error
	searchErr error
	purgeErr  error
	hits      []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{chunks: make(map[string][]string)}
}

func (f *fakeIndex) Upsert(_ context.Context, ownerScope, id, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.chunks[ownerScope] = append(f.chunks[ownerScope], text)
	f.ids = append(f.ids, id)
	return 1, nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ string, topK int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) PurgeOwner(_ context.Context, ownerScope string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	n := len(f.chunks[ownerScope])
	delete(f.chunks, ownerScope)
	return n, nil
}

func (f *fakeIndex) count(ownerScope string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks[ownerScope])
}

type fakeBlobs struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
	putErr  error
	delErr  error
}

func (f *fakeBlobs) Put(_ context.Context, name string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts = append(f.puts, name)
	return "https://blobs.test/" + name, nil
}

func (f *fakeBlobs) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	return f.delErr
}

// fakePending mirrors pending.MemoryStore without its janitor goroutine.
type fakePending struct {
	mu      sync.Mutex
	bodies  map[string]string
	putErr  error
	takeErr error
}

func newFakePending() *fakePending {
	return &fakePending{bodies: make(map[string]string)}
}

func (f *fakePending) Put(_ context.Context, token, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.bodies[token] = body
	return nil
}

func (f *fakePending) Take(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeErr != nil {
		return "", f.takeErr
	}
	body, ok := f.bodies[token]
	if !ok {
		return "", pending.ErrNotFound
	}
	delete(f.bodies, token)
	return body, nil
}

// faultyStore wraps the in-memory store and injects failures.
type faultyStore struct {
	*repository.Memory
	getErr     error
	replaceErr error
	queryErr   error
	createErr  error
	deleteErr  error
}

func (f *faultyStore) Get(ctx context.Context, ownerScope, id string) (domain.Session, error) {
	if f.getErr != nil {
		return domain.Session{}, f.getErr
	}
	return f.Memory.Get(ctx, ownerScope, id)
}

func (f *faultyStore) Replace(ctx context.Context, s domain.Session, expected int64) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.Memory.Replace(ctx, s, expected)
}

func (f *faultyStore) QueryByID(ctx context.Context, id string) ([]domain.Session, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Memory.QueryByID(ctx, id)
}

func (f *faultyStore) QueryByOwnerScope(ctx context.Context, ownerScope string) ([]domain.Session, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Memory.QueryByOwnerScope(ctx, ownerScope)
}

func (f *faultyStore) CreateOnly(ctx context.Context, s domain.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Memory.CreateOnly(ctx, s)
}

func (f *faultyStore) Delete(ctx context.Context, ownerScope, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.Delete(ctx, ownerScope, id)
}

type fakeMailer struct {
	sent []domain.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg domain.Email) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func requireCode(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	require.Error(t, err)
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, code, ue.Code)
	if reason != "" {
		require.Equal(t, reason, ue.Reason)
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func contentsOf(msgs []domain.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role + ": " + strings.SplitN(m.Content, "\n", 2)[0]
	}
	return out
}
