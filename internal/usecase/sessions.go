package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/repository"
)

const maxRenameRunes = 200

// SessionService manages stored sessions outside of a chat turn.
type SessionService struct {
	store SessionStore
	blobs BlobStore
	index Index
	log   *zap.Logger
	now   func() time.Time
}

// NewSessionService requires a store; blobs and index may be nil when those
// backends are not configured.
func NewSessionService(store SessionStore, blobs BlobStore, index Index, log *zap.Logger) (*SessionService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{store: store, blobs: blobs, index: index, log: log, now: time.Now}, nil
}

// List returns the owner's sessions, most recently updated first. An empty
// owner scope lists nothing.
func (s *SessionService) List(ctx context.Context, ownerScope string, includeArchived bool) ([]domain.Session, error) {
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return []domain.Session{}, nil
	}
	all, err := s.store.QueryByOwnerScope(ctx, ownerScope)
	if err != nil {
		return nil, newError(ErrorInternal, "session_list_error", err)
	}
	out := make([]domain.Session, 0, len(all))
	for _, sess := range all {
		if sess.Archived && !includeArchived {
			continue
		}
		out = append(out, sess)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, ownerScope, id string) (domain.Session, error) {
	if err := requireKey(ownerScope, id); err != nil {
		return domain.Session{}, err
	}
	sess, err := s.store.Get(ctx, strings.TrimSpace(ownerScope), strings.TrimSpace(id))
	if err != nil {
		return domain.Session{}, storeReadError(err)
	}
	return sess, nil
}

func (s *SessionService) Rename(ctx context.Context, ownerScope, id, title string) (domain.Session, error) {
	if err := requireKey(ownerScope, id); err != nil {
		return domain.Session{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Session{}, newError(ErrorInvalidInput, "empty_title", nil)
	}
	if len([]rune(title)) > maxRenameRunes {
		return domain.Session{}, newError(ErrorInvalidInput, "title_too_long", nil)
	}

	sess, err := s.store.Get(ctx, strings.TrimSpace(ownerScope), strings.TrimSpace(id))
	if err != nil {
		return domain.Session{}, storeReadError(err)
	}
	sess.Title = title
	if err := s.replace(ctx, &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// ArchiveAll marks every active session of the owner archived and returns how
// many changed.
func (s *SessionService) ArchiveAll(ctx context.Context, ownerScope string) (int, error) {
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return 0, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	all, err := s.store.QueryByOwnerScope(ctx, ownerScope)
	if err != nil {
		return 0, newError(ErrorInternal, "session_list_error", err)
	}
	archived := 0
	for i := range all {
		if all[i].Archived {
			continue
		}
		all[i].Archived = true
		if err := s.replace(ctx, &all[i]); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// Delete removes one session and its uploaded blobs.
func (s *SessionService) Delete(ctx context.Context, ownerScope, id string) error {
	if err := requireKey(ownerScope, id); err != nil {
		return err
	}
	sess, err := s.store.Get(ctx, strings.TrimSpace(ownerScope), strings.TrimSpace(id))
	if err != nil {
		return storeReadError(err)
	}
	return s.destroy(ctx, sess)
}

// DeleteAll removes every session of the owner and returns how many were deleted.
func (s *SessionService) DeleteAll(ctx context.Context, ownerScope string) (int, error) {
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return 0, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	all, err := s.store.QueryByOwnerScope(ctx, ownerScope)
	if err != nil {
		return 0, newError(ErrorInternal, "session_list_error", err)
	}
	for i, sess := range all {
		if err := s.destroy(ctx, sess); err != nil {
			return i, err
		}
	}
	return len(all), nil
}

// PurgeIndex drops every indexed chunk of the owner.
func (s *SessionService) PurgeIndex(ctx context.Context, ownerScope string) (int, error) {
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return 0, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	if s.index == nil {
		return 0, nil
	}
	n, err := s.index.PurgeOwner(ctx, ownerScope)
	if err != nil {
		return 0, newError(ErrorUpstream, "index_purge_error", err)
	}
	return n, nil
}

func (s *SessionService) destroy(ctx context.Context, sess domain.Session) error {
	if s.blobs != nil {
		for _, att := range sess.Attachments {
			if att.BlobKey == "" {
				continue
			}
			if err := s.blobs.Delete(ctx, att.BlobKey); err != nil {
				s.log.Warn("blob delete failed",
					zap.String("session_id", sess.ID),
					zap.String("blob_key", att.BlobKey),
					zap.Error(err),
				)
			}
		}
	}
	if err := s.store.Delete(ctx, sess.OwnerScope, sess.ID); err != nil {
		return newError(ErrorInternal, "session_delete_error", err)
	}
	return nil
}

func (s *SessionService) replace(ctx context.Context, sess *domain.Session) error {
	expected := sess.Version
	sess.Version++
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Replace(ctx, *sess, expected); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return newError(ErrorConflict, "session_version_conflict", err)
		}
		return newError(ErrorInternal, "session_write_error", err)
	}
	return nil
}

func requireKey(ownerScope, id string) error {
	if strings.TrimSpace(ownerScope) == "" {
		return newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	if strings.TrimSpace(id) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	return nil
}

func storeReadError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrorNotFound, "session_not_found", err)
	}
	return newError(ErrorInternal, "session_read_error", err)
}
