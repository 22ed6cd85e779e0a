package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/repository"
)

func seedSession(t *testing.T, store *repository.Memory, ownerScope, id string, updated time.Time, mutate ...func(*domain.Session)) {
	t.Helper()
	s := domain.Session{ID: id, OwnerScope: ownerScope, Turns: []domain.Turn{}, Version: 1, CreatedAt: updated, UpdatedAt: updated}
	for _, m := range mutate {
		m(&s)
	}
	require.NoError(t, store.CreateOnly(context.Background(), s))
}

func newSessionFixture(t *testing.T) (*SessionService, *repository.Memory, *fakeBlobs, *fakeIndex) {
	t.Helper()
	store := repository.NewMemory()
	blobs := &fakeBlobs{}
	idx := newFakeIndex()
	svc, err := NewSessionService(store, blobs, idx, nil)
	require.NoError(t, err)
	svc.now = fixedClock(testNow)
	return svc, store, blobs, idx
}

func TestSessionList(t *testing.T) {
	svc, store, _, _ := newSessionFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedSession(t, store, "alice", "a", base)
	seedSession(t, store, "alice", "b", base.Add(2*time.Hour))
	seedSession(t, store, "alice", "c", base.Add(time.Hour), func(s *domain.Session) { s.Archived = true })
	seedSession(t, store, "bob", "d", base)
	ctx := context.Background()

	active, err := svc.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, idsOf(active))

	all, err := svc.List(ctx, "alice", true)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "a"}, idsOf(all))

	none, err := svc.List(ctx, " ", true)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func idsOf(sessions []domain.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestSessionGet(t *testing.T) {
	svc, store, _, _ := newSessionFixture(t)
	seedSession(t, store, "alice", "a", testNow)
	ctx := context.Background()

	s, err := svc.Get(ctx, "alice", "a")
	require.NoError(t, err)
	require.Equal(t, "a", s.ID)

	_, err = svc.Get(ctx, "bob", "a")
	requireCode(t, err, ErrorNotFound, "session_not_found")
	_, err = svc.Get(ctx, "alice", "")
	requireCode(t, err, ErrorInvalidInput, "missing_session_id")
}

func TestSessionRename(t *testing.T) {
	svc, store, _, _ := newSessionFixture(t)
	seedSession(t, store, "alice", "a", time.Time{})
	ctx := context.Background()

	s, err := svc.Rename(ctx, "alice", "a", "  Budget review ")
	require.NoError(t, err)
	require.Equal(t, "Budget review", s.Title)
	require.Equal(t, int64(2), s.Version)
	require.Equal(t, testNow, s.UpdatedAt)

	stored, err := store.Get(ctx, "alice", "a")
	require.NoError(t, err)
	require.Equal(t, "Budget review", stored.Title)

	_, err = svc.Rename(ctx, "alice", "a", " ")
	requireCode(t, err, ErrorInvalidInput, "empty_title")
	long := make([]rune, maxRenameRunes+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Rename(ctx, "alice", "a", string(long))
	requireCode(t, err, ErrorInvalidInput, "title_too_long")
	_, err = svc.Rename(ctx, "alice", "missing", "t")
	requireCode(t, err, ErrorNotFound, "session_not_found")
}

func TestSessionRename_Conflict(t *testing.T) {
	store := &faultyStore{Memory: repository.NewMemory(), replaceErr: repository.ErrConflict}
	seedSession(t, store.Memory, "alice", "a", testNow)
	svc, err := NewSessionService(store, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Rename(context.Background(), "alice", "a", "t")
	requireCode(t, err, ErrorConflict, "session_version_conflict")
}

func TestSessionArchiveAll(t *testing.T) {
	svc, store, _, _ := newSessionFixture(t)
	seedSession(t, store, "alice", "a", testNow)
	seedSession(t, store, "alice", "b", testNow, func(s *domain.Session) { s.Archived = true })
	seedSession(t, store, "alice", "c", testNow)
	seedSession(t, store, "bob", "d", testNow)
	ctx := context.Background()

	n, err := svc.ArchiveAll(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	active, err := svc.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Empty(t, active)
	bob, err := svc.List(ctx, "bob", false)
	require.NoError(t, err)
	require.Len(t, bob, 1)

	_, err = svc.ArchiveAll(ctx, "")
	requireCode(t, err, ErrorInvalidInput, "missing_owner_scope")
}

func TestSessionDelete_CascadesBlobs(t *testing.T) {
	svc, store, blobs, _ := newSessionFixture(t)
	seedSession(t, store, "alice", "a", testNow, func(s *domain.Session) {
		s.Attachments = []domain.Attachment{
			{Filename: "x.pdf", BlobKey: "1-x.pdf"},
			{Filename: "y.png"},
			{Filename: "z.png", BlobKey: "2-z.png"},
		}
	})
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "alice", "a"))
	require.Equal(t, []string{"1-x.pdf", "2-z.png"}, blobs.deletes)
	_, err := store.Get(ctx, "alice", "a")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = svc.Delete(ctx, "alice", "a")
	requireCode(t, err, ErrorNotFound, "session_not_found")
}

func TestSessionDelete_BlobFailureStillDeletes(t *testing.T) {
	svc, store, blobs, _ := newSessionFixture(t)
	blobs.delErr = errors.New("AccessDenied")
	seedSession(t, store, "alice", "a", testNow, func(s *domain.Session) {
		s.Attachments = []domain.Attachment{{Filename: "x.pdf", BlobKey: "1-x.pdf"}}
	})

	require.NoError(t, svc.Delete(context.Background(), "alice", "a"))
	_, err := store.Get(context.Background(), "alice", "a")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionDeleteAll(t *testing.T) {
	svc, store, _, _ := newSessionFixture(t)
	seedSession(t, store, "alice", "a", testNow)
	seedSession(t, store, "alice", "b", testNow)
	seedSession(t, store, "bob", "c", testNow)
	ctx := context.Background()

	n, err := svc.DeleteAll(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	left, err := store.QueryByOwnerScope(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, left)
	bob, err := store.QueryByOwnerScope(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)

	_, err = svc.DeleteAll(ctx, "  ")
	requireCode(t, err, ErrorInvalidInput, "missing_owner_scope")
}

func TestSessionStoreFailures(t *testing.T) {
	store := &faultyStore{Memory: repository.NewMemory(), queryErr: errors.New("throttled")}
	svc, err := NewSessionService(store, nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.List(ctx, "alice", false)
	requireCode(t, err, ErrorInternal, "session_list_error")
	_, err = svc.DeleteAll(ctx, "alice")
	requireCode(t, err, ErrorInternal, "session_list_error")

	store = &faultyStore{Memory: repository.NewMemory(), deleteErr: errors.New("throttled")}
	seedSession(t, store.Memory, "alice", "a", testNow)
	svc, err = NewSessionService(store, nil, nil, nil)
	require.NoError(t, err)
	err = svc.Delete(ctx, "alice", "a")
	requireCode(t, err, ErrorInternal, "session_delete_error")
}

func TestSessionPurgeIndex(t *testing.T) {
	svc, _, _, idx := newSessionFixture(t)
	ctx := context.Background()
	_, err := idx.Upsert(ctx, "alice", "c1", "one")
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, "alice", "c2", "two")
	require.NoError(t, err)

	n, err := svc.PurgeIndex(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Zero(t, idx.count("alice"))

	idx.purgeErr = errors.New("locked")
	_, err = svc.PurgeIndex(ctx, "alice")
	requireCode(t, err, ErrorUpstream, "index_purge_error")

	noIndex, err := NewSessionService(repository.NewMemory(), nil, nil, nil)
	require.NoError(t, err)
	n, err = noIndex.PurgeIndex(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, n)
}
