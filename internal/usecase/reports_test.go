package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"assistant-engine/internal/report"
)

func TestNewReportService_PathBase(t *testing.T) {
	_, err := NewReportService(nil, newFakePending(), "", nil)
	require.Error(t, err)
	_, err = NewReportService(answers("x"), nil, "", nil)
	require.Error(t, err)

	svc, err := NewReportService(answers("body"), newFakePending(), "https://api.example.com/download", nil)
	require.NoError(t, err)
	token, url, err := svc.Prepare(context.Background(), "brief")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/download/"+token, url)
}

func TestReportService_PrepareAndRenderOnce(t *testing.T) {
	store := newFakePending()
	svc, err := NewReportService(answers("# Market Outlook\n## Trends\n- **AI** adoption\nClosing words."), store, "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	token, url, err := svc.Prepare(ctx, "short brief")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "/reports/"+token, url)

	doc, err := svc.Render(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Market_Outlook.docx", doc.Filename)
	require.Equal(t, report.ContentType, doc.ContentType)
	require.Equal(t, "PK", string(doc.Body[:2]))

	_, err = svc.Render(ctx, token)
	requireCode(t, err, ErrorNotFound, "report_not_found")
}

func TestReportService_ExpansionFallback(t *testing.T) {
	for name, llm := range map[string]*mockLLM{
		"error": {responses: []llmResponse{{err: errors.New("timeout")}}},
		"empty": answers("   "),
	} {
		svc, err := NewReportService(llm, newFakePending(), "", nil)
		require.NoError(t, err)
		require.Equal(t, "the brief\n\n"+ExpansionFallbackNotice, svc.Expand(context.Background(), "the brief"), name)
	}
}

func TestReportService_StoreFailures(t *testing.T) {
	store := newFakePending()
	svc, err := NewReportService(answers("body"), store, "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	store.putErr = errors.New("redis: connection refused")
	_, _, err = svc.Prepare(ctx, "brief")
	requireCode(t, err, ErrorInternal, "report_store_error")

	store.putErr = nil
	store.takeErr = errors.New("redis: connection refused")
	_, err = svc.Render(ctx, "tok")
	requireCode(t, err, ErrorInternal, "report_store_error")

	_, err = svc.Render(ctx, "  ")
	requireCode(t, err, ErrorInvalidInput, "missing_token")
}

func TestReportService_UnknownToken(t *testing.T) {
	svc, err := NewReportService(answers("body"), newFakePending(), "", nil)
	require.NoError(t, err)
	_, err = svc.Render(context.Background(), "never-issued")
	requireCode(t, err, ErrorNotFound, "report_not_found")
}
