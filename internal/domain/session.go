package domain

import "time"

// Attachment media kinds.
const (
	MediaDocument = "document"
	MediaImage    = "image"
	MediaOther    = "other"
)

// Turn is a single persisted conversation message. Turns are append-only.
type Turn struct {
	Role    string `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

// Attachment is an uploaded artifact owned by a Session.
type Attachment struct {
	Filename  string `json:"filename" dynamodbav:"filename"`
	URL       string `json:"url,omitempty" dynamodbav:"url,omitempty"`
	BlobKey   string `json:"-" dynamodbav:"blobKey,omitempty"`
	MediaKind string `json:"mediaKind" dynamodbav:"mediaKind"`
	Text      string `json:"text,omitempty" dynamodbav:"text,omitempty"`
}

// Session is a persisted conversation addressed by (OwnerScope, ID).
//
// Version increases by one on every successful write and guards replaces
// against concurrent appends.
type Session struct {
	ID          string       `json:"id"`
	OwnerScope  string       `json:"ownerScope"`
	Title       string       `json:"title,omitempty"`
	Archived    bool         `json:"archived"`
	Turns       []Turn       `json:"messages"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Version     int64        `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Chunk is a bounded-size fragment of extracted text indexed for retrieval.
type Chunk struct {
	ID         string
	OwnerScope string
	Text       string
}
