package usecase

import (
	"context"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/repository"
)

type LLMClient interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// SessionStore is satisfied by repository.Client and repository.Memory.
type SessionStore interface {
	Get(ctx context.Context, ownerScope, id string) (domain.Session, error)
	CreateOnly(ctx context.Context, s domain.Session) error
	Replace(ctx context.Context, s domain.Session, expectedVersion int64) error
	QueryByOwnerScope(ctx context.Context, ownerScope string) ([]domain.Session, error)
	QueryByID(ctx context.Context, id string) ([]domain.Session, error)
	Delete(ctx context.Context, ownerScope, id string) error
}

var (
	_ SessionStore = (*repository.Client)(nil)
	_ SessionStore = (*repository.Memory)(nil)
)

type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

type ImageDescriber interface {
	DescribeImage(ctx context.Context, data []byte) (string, error)
}

type Index interface {
	Upsert(ctx context.Context, ownerScope, id, text string) (int, error)
	Search(ctx context.Context, ownerScope, query string, topK int) ([]string, error)
	PurgeOwner(ctx context.Context, ownerScope string) (int, error)
}

type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
}

// PendingReports holds expanded report bodies until their single render.
type PendingReports interface {
	Put(ctx context.Context, token, body string) error
	Take(ctx context.Context, token string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.Email) error
}
