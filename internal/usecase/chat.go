package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assistant-engine/internal/chunker"
	"assistant-engine/internal/domain"
	"assistant-engine/internal/reply"
	"assistant-engine/internal/repository"
	"assistant-engine/internal/retrieval"
)

const (
	defaultHistoryWindow = 20
	defaultMaxNoteChars  = 12000
	defaultMaxMessageLen = 8000
	maxTitleRunes        = 60
	modelErrorPrefix     = "Error occurred: "
	attachmentOnlyPrompt = "Please review the attached file."
)

// ChatDeps are the collaborators of ChatService. Images, Blobs and Index are
// optional; without them images get no description, uploads get no URL and
// turns are answered without retrieval.
type ChatDeps struct {
	Store     SessionStore
	LLM       LLMClient
	Extractor TextExtractor
	Images    ImageDescriber
	Blobs     BlobStore
	Index     Index
	Reports   *ReportService
	Logger    *zap.Logger
}

// ChatOptions tune ChatService; zero values select defaults.
type ChatOptions struct {
	HistoryWindow     int
	MaxNoteChars      int
	MaxMessageLen     int
	ChunkSize         int
	IngestConcurrency int
	TopK              int
	IDAttempts        int
	IDBackoff         time.Duration
}

// ChatService runs one conversational turn end to end.
type ChatService struct {
	store     SessionStore
	llm       LLMClient
	extractor TextExtractor
	images    ImageDescriber
	blobs     BlobStore
	index     Index
	indexer   *chunkIndexer
	reports   *ReportService
	ids       *idAllocator
	log       *zap.Logger
	now       func() time.Time

	historyWindow int
	maxNoteChars  int
	maxMessageLen int
	topK          int
}

// Upload is one file attached to a turn.
type Upload struct {
	Filename string
	Data     []byte
}

type SubmitInput struct {
	OwnerScope string
	SessionID  string
	Text       string
	Uploads    []Upload
	// SingleShot answers without replaying the session's prior turns.
	SingleShot bool
}

type SubmitOutput struct {
	Answer        string
	Citations     []domain.Citation
	DownloadToken string
	DownloadURL   string
	SessionID     string
}

func NewChatService(deps ChatDeps, opts ChatOptions) (*ChatService, error) {
	if deps.Store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if deps.LLM == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if deps.Extractor == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if deps.Reports == nil {
		return nil, errors.New("usecase: report service must not be nil")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &ChatService{
		store:         deps.Store,
		llm:           deps.LLM,
		extractor:     deps.Extractor,
		images:        deps.Images,
		blobs:         deps.Blobs,
		index:         deps.Index,
		reports:       deps.Reports,
		ids:           newIDAllocator(deps.Store, opts.IDAttempts, opts.IDBackoff, log),
		log:           log,
		now:           time.Now,
		historyWindow: orDefault(opts.HistoryWindow, defaultHistoryWindow),
		maxNoteChars:  orDefault(opts.MaxNoteChars, defaultMaxNoteChars),
		maxMessageLen: orDefault(opts.MaxMessageLen, defaultMaxMessageLen),
		topK:          orDefault(opts.TopK, retrieval.DefaultTopK),
	}
	if deps.Index != nil {
		s.indexer = &chunkIndexer{
			index:       deps.Index,
			size:        orDefault(opts.ChunkSize, chunker.DefaultSize),
			concurrency: opts.IngestConcurrency,
			log:         log,
		}
	}
	return s, nil
}

// Submit appends a user turn (and its uploads) to a session, asks the model
// and persists both turns with one version-checked write.
//
// A missing or unknown SessionID starts a new session with a freshly minted
// id. A concurrent write to the same session surfaces as CONFLICT.
func (s *ChatService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	ownerScope := strings.TrimSpace(in.OwnerScope)
	if ownerScope == "" {
		return SubmitOutput{}, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Uploads) == 0 {
		return SubmitOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len([]rune(text)) > s.maxMessageLen {
		return SubmitOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	for _, up := range in.Uploads {
		if strings.TrimSpace(up.Filename) == "" {
			return SubmitOutput{}, newError(ErrorInvalidInput, "missing_filename", nil)
		}
	}

	session, fresh, err := s.loadOrReserve(ctx, ownerScope, strings.TrimSpace(in.SessionID))
	if err != nil {
		return SubmitOutput{}, err
	}
	log := s.log.With(zap.String("owner_scope", ownerScope), zap.String("session_id", session.ID))

	var history []domain.Turn
	if !fresh && !in.SingleShot {
		history = lastTurns(session.Turns, s.historyWindow)
	}

	var notes []domain.ChatMessage
	for _, up := range in.Uploads {
		att, note := s.processUpload(ctx, log, ownerScope, up)
		session.Attachments = append(session.Attachments, att)
		notes = append(notes, note)
	}
	if note, ok := s.grounding(ctx, log, ownerScope, text); ok {
		notes = append(notes, note)
	}

	prompt := text
	if prompt == "" {
		prompt = attachmentOnlyPrompt
	}
	raw, err := s.llm.Complete(ctx, buildTurnMessages(history, notes, prompt))
	if err != nil {
		log.Error("model call failed", zap.Error(err))
		raw = modelErrorPrefix + err.Error()
	}

	parsed := reply.Parse(raw)
	out := SubmitOutput{
		Answer:    parsed.Visible,
		Citations: toDomainCitations(parsed.Citations),
		SessionID: session.ID,
	}
	if parsed.ReportRequested {
		token, url, err := s.reports.Prepare(ctx, parsed.Visible)
		if err != nil {
			log.Warn("report could not be prepared", zap.Error(err))
		} else {
			out.DownloadToken, out.DownloadURL = token, url
		}
	}

	// The assistant turn keeps the raw reply so replayed history still shows
	// the model its References trailer.
	now := s.now().UTC()
	session.Turns = append(session.Turns,
		domain.Turn{Role: domain.RoleUser, Content: text},
		domain.Turn{Role: domain.RoleAssistant, Content: raw},
	)
	if session.Title == "" {
		session.Title = deriveTitle(text, in.Uploads)
	}
	session.UpdatedAt = now
	expected := session.Version
	session.Version++

	if err := s.store.Replace(ctx, session, expected); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return SubmitOutput{}, newError(ErrorConflict, "session_version_conflict", err)
		}
		if fresh {
			s.releaseSkeleton(ctx, log, session)
		}
		return SubmitOutput{}, newError(ErrorInternal, "session_write_error", err)
	}
	log.Info("turn completed",
		zap.Bool("new_session", fresh),
		zap.Int("uploads", len(in.Uploads)),
		zap.Int("citations", len(out.Citations)),
		zap.Bool("report", out.DownloadToken != ""),
	)
	return out, nil
}

// releaseSkeleton removes the session reserved for this turn after its only
// write failed. A conflicting write means someone else owns the record now,
// so that path leaves it alone.
func (s *ChatService) releaseSkeleton(ctx context.Context, log *zap.Logger, session domain.Session) {
	if err := s.store.Delete(context.WithoutCancel(ctx), session.OwnerScope, session.ID); err != nil {
		log.Warn("reserved session not released", zap.Error(err))
	}
}

// loadOrReserve returns the session at (ownerScope, id), or a freshly
// reserved one when id is empty or unknown in the scope.
func (s *ChatService) loadOrReserve(ctx context.Context, ownerScope, id string) (domain.Session, bool, error) {
	if id != "" {
		session, err := s.store.Get(ctx, ownerScope, id)
		if err == nil {
			return session, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, false, newError(ErrorInternal, "session_read_error", err)
		}
	}
	session, err := s.ids.reserve(ctx, ownerScope)
	if err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

// grounding searches the owner's index for the turn text. It contributes a
// note only when something matched.
func (s *ChatService) grounding(ctx context.Context, log *zap.Logger, ownerScope, text string) (domain.ChatMessage, bool) {
	if s.index == nil || text == "" {
		return domain.ChatMessage{}, false
	}
	excerpts, err := s.index.Search(ctx, ownerScope, text, s.topK)
	if err != nil {
		log.Warn("retrieval failed, continuing without context", zap.Error(err))
		return domain.ChatMessage{}, false
	}
	if len(excerpts) == 0 {
		return domain.ChatMessage{}, false
	}
	return groundingNote(excerpts), true
}

func deriveTitle(text string, uploads []Upload) string {
	title := strings.Join(strings.Fields(text), " ")
	if title == "" && len(uploads) > 0 {
		title = uploads[0].Filename
	}
	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes])) + "..."
	}
	return title
}

func toDomainCitations(in []reply.Citation) []domain.Citation {
	out := make([]domain.Citation, 0, len(in))
	for _, c := range in {
		out = append(out, domain.Citation{Name: c.Name, URL: c.URL, Description: c.Description})
	}
	return out
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

var newUUID = func() string {
	return uuid.NewString()
}
