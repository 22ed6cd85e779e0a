package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"assistant-engine/internal/report"
	"assistant-engine/internal/report/pending"
)

// ExpansionFallbackNotice is appended to the short answer when the model
// cannot expand it into a full report.
const ExpansionFallbackNotice = "(Additional detailed analysis could not be generated due to an error.)"

const defaultReportPath = "/reports/"

type ReportService struct {
	llm      LLMClient
	pending  PendingReports
	pathBase string
	log      *zap.Logger
}

// RenderedReport is a finished document ready for download.
type RenderedReport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// NewReportService wires report expansion and rendering. Download URLs are
// pathBase followed by the token; pathBase defaults to "/reports/".
func NewReportService(llm LLMClient, store PendingReports, pathBase string, log *zap.Logger) (*ReportService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: pending report store must not be nil")
	}
	pathBase = strings.TrimSpace(pathBase)
	if pathBase == "" {
		pathBase = defaultReportPath
	}
	if !strings.HasSuffix(pathBase, "/") {
		pathBase += "/"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{llm: llm, pending: store, pathBase: pathBase, log: log}, nil
}

// Expand asks the model for a long-form report from brief. It never fails:
// on any model error the brief is returned with ExpansionFallbackNotice.
func (s *ReportService) Expand(ctx context.Context, brief string) string {
	body, err := s.llm.Complete(ctx, expansionMessages(brief))
	if err == nil && strings.TrimSpace(body) != "" {
		return body
	}
	if err == nil {
		err = errors.New("empty expansion")
	}
	s.log.Warn("report expansion failed, using fallback body", zap.Error(err))
	return brief + "\n\n" + ExpansionFallbackNotice
}

// Prepare expands brief and stores it under a fresh single-use token.
func (s *ReportService) Prepare(ctx context.Context, brief string) (token, url string, err error) {
	body := s.Expand(ctx, brief)
	token = newUUID()
	if err := s.pending.Put(ctx, token, body); err != nil {
		return "", "", newError(ErrorInternal, "report_store_error", err)
	}
	return token, s.pathBase + token, nil
}

// Render consumes token and returns the document. A token can be rendered
// once; later calls fail with NOT_FOUND.
func (s *ReportService) Render(ctx context.Context, token string) (RenderedReport, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return RenderedReport{}, newError(ErrorInvalidInput, "missing_token", nil)
	}

	body, err := s.pending.Take(ctx, token)
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			return RenderedReport{}, newError(ErrorNotFound, "report_not_found", err)
		}
		return RenderedReport{}, newError(ErrorInternal, "report_store_error", err)
	}

	doc := report.Parse(body)
	data, err := report.Render(doc)
	if err != nil {
		// Put the body back so the token stays usable.
		if putErr := s.pending.Put(ctx, token, body); putErr != nil {
			s.log.Error("restore pending report failed", zap.String("token", token), zap.Error(putErr))
		}
		return RenderedReport{}, newError(ErrorInternal, "report_render_error", err)
	}
	return RenderedReport{
		Filename:    doc.Filename(),
		ContentType: report.ContentType,
		Body:        data,
	}, nil
}
