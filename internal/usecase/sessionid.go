package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/repository"
)

const (
	defaultIDAttempts     = 5
	defaultIDBackoff      = 50 * time.Millisecond
	maxScopeSuffixRunes   = 12
	randomSuffixHexDigits = 8
)

// errIDTaken marks a candidate that is already in use somewhere; the
// allocator retries with a fresh candidate.
var errIDTaken = errors.New("session id taken")

// idAllocator mints session ids that are unique across every owner scope on
// a store that only enforces uniqueness per (ownerScope, id).
type idAllocator struct {
	store    SessionStore
	attempts int
	initial  time.Duration
	log      *zap.Logger
	now      func() time.Time
	// candidate is replaceable in tests to force collisions.
	candidate func(ownerScope string, now time.Time) string
}

func newIDAllocator(store SessionStore, attempts int, initial time.Duration, log *zap.Logger) *idAllocator {
	if attempts <= 0 {
		attempts = defaultIDAttempts
	}
	if initial <= 0 {
		initial = defaultIDBackoff
	}
	return &idAllocator{
		store:     store,
		attempts:  attempts,
		initial:   initial,
		log:       log,
		now:       time.Now,
		candidate: candidateID,
	}
}

// candidateID is base36 unix nanos, a random suffix and the sanitised owner
// scope, joined by "-".
func candidateID(ownerScope string, now time.Time) string {
	random := strings.ReplaceAll(newUUID(), "-", "")[:randomSuffixHexDigits]
	id := strconv.FormatInt(now.UnixNano(), 36) + "-" + random
	if suffix := scopeSuffix(ownerScope); suffix != "" {
		id += "-" + suffix
	}
	return id
}

func scopeSuffix(ownerScope string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToLower(ownerScope) {
		if n == maxScopeSuffixRunes {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

// reserve finds an unused id and claims it with a skeleton session at
// version 1. The check is optimistic: a create-only conflict or a
// cross-scope twin found after creation both lead to a fresh candidate.
func (a *idAllocator) reserve(ctx context.Context, ownerScope string) (domain.Session, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initial
	b.MaxInterval = 16 * a.initial

	attempt := 0
	op := func() (domain.Session, error) {
		attempt++
		return a.tryReserve(ctx, ownerScope)
	}
	notify := func(err error, wait time.Duration) {
		a.log.Debug("session id candidate rejected",
			zap.String("owner_scope", ownerScope),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	s, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(a.attempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if errors.Is(err, errIDTaken) {
			return domain.Session{}, newError(ErrorInternal, "session_id_exhausted", fmt.Errorf("after %d attempts: %w", a.attempts, err))
		}
		return domain.Session{}, newError(ErrorInternal, "session_store_error", err)
	}
	return s, nil
}

func (a *idAllocator) tryReserve(ctx context.Context, ownerScope string) (domain.Session, error) {
	now := a.now().UTC()
	id := a.candidate(ownerScope, now)

	existing, err := a.store.QueryByID(ctx, id)
	if err != nil {
		return domain.Session{}, backoff.Permanent(fmt.Errorf("query candidate: %w", err))
	}
	if len(existing) > 0 {
		return domain.Session{}, errIDTaken
	}

	skeleton := domain.Session{
		ID:         id,
		OwnerScope: ownerScope,
		Turns:      []domain.Turn{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.CreateOnly(ctx, skeleton); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Session{}, errIDTaken
		}
		return domain.Session{}, backoff.Permanent(fmt.Errorf("create skeleton: %w", err))
	}

	// Two writers in different scopes can both pass the check above. Whoever
	// sees a twin after creating yields; at least the later writer sees the
	// earlier one, so two sessions never keep the same id.
	twins, err := a.store.QueryByID(ctx, id)
	if err != nil {
		return domain.Session{}, backoff.Permanent(fmt.Errorf("verify candidate: %w", err))
	}
	for _, t := range twins {
		if t.OwnerScope == ownerScope {
			continue
		}
		if err := a.store.Delete(ctx, ownerScope, id); err != nil {
			return domain.Session{}, backoff.Permanent(fmt.Errorf("release candidate: %w", err))
		}
		return domain.Session{}, errIDTaken
	}
	return skeleton, nil
}
