package handler

import (
	"assistant-engine/internal/domain"
	"assistant-engine/internal/usecase"
)

// Wire shapes shared by the Lambda handler and the HTTP server. Binary
// payloads travel as base64 strings in JSON.

type FileUpload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type ChatRequest struct {
	OwnerScope string       `json:"ownerScope"`
	SessionID  string       `json:"sessionId,omitempty"`
	Message    string       `json:"message"`
	SingleShot bool         `json:"singleShot,omitempty"`
	Files      []FileUpload `json:"files,omitempty"`
}

func (r ChatRequest) Input() usecase.SubmitInput {
	uploads := make([]usecase.Upload, 0, len(r.Files))
	for _, f := range r.Files {
		uploads = append(uploads, usecase.Upload{Filename: f.Filename, Data: f.Data})
	}
	return usecase.SubmitInput{
		OwnerScope: r.OwnerScope,
		SessionID:  r.SessionID,
		Text:       r.Message,
		Uploads:    uploads,
		SingleShot: r.SingleShot,
	}
}

type ChatResponse struct {
	Answer        string            `json:"answer"`
	Citations     []domain.Citation `json:"citations"`
	DownloadToken string            `json:"downloadToken,omitempty"`
	DownloadURL   string            `json:"downloadUrl,omitempty"`
	SessionID     string            `json:"sessionId"`
}

func NewChatResponse(out usecase.SubmitOutput) ChatResponse {
	citations := out.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return ChatResponse{
		Answer:        out.Answer,
		Citations:     citations,
		DownloadToken: out.DownloadToken,
		DownloadURL:   out.DownloadURL,
		SessionID:     out.SessionID,
	}
}

type IngestRequest struct {
	OwnerScope string `json:"ownerScope"`
	Filename   string `json:"filename"`
	Data       []byte `json:"data"`
}

type IngestResponse struct {
	ChunksProduced int `json:"chunksProduced"`
	ChunksIndexed  int `json:"chunksIndexed"`
}

type AskRequest struct {
	OwnerScope string `json:"ownerScope"`
	Question   string `json:"question"`
}

type AskResponse struct {
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
}

type RenameRequest struct {
	OwnerScope string `json:"ownerScope"`
	Title      string `json:"title"`
}

type OwnerRequest struct {
	OwnerScope string `json:"ownerScope"`
}

type SessionsResponse struct {
	Sessions []domain.Session `json:"sessions"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type ContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Note      string `json:"note"`
}

func (r ContactRequest) Form() usecase.ContactForm {
	return usecase.ContactForm{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Company:   r.Company,
		Email:     r.Email,
		Note:      r.Note,
	}
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
