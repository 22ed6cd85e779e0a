package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/extract"
	"assistant-engine/internal/integrations/vision"
)

// processUpload stores the file, extracts what it can and returns the
// attachment record plus the note the model sees for it. Failures never
// abort the turn; they turn into an assistant-role note instead.
func (s *ChatService) processUpload(ctx context.Context, log *zap.Logger, ownerScope string, up Upload) (domain.Attachment, domain.ChatMessage) {
	name := filepath.Base(up.Filename)
	log = log.With(zap.String("filename", name))
	att := domain.Attachment{Filename: name, MediaKind: domain.MediaOther}
	att.URL, att.BlobKey = s.storeBlob(ctx, log, name, up.Data)

	kind := extract.KindOf(name)
	switch kind {
	case extract.KindPDF, extract.KindDOCX:
		att.MediaKind = domain.MediaDocument
		text, err := s.extractor.ExtractText(ctx, name, up.Data)
		if err != nil {
			log.Warn("attachment extraction failed", zap.Error(err))
			return att, readErrorNote(name, err)
		}
		// The session keeps the same excerpt the model sees; the index gets
		// the full text.
		att.Text = truncateRunes(text, s.maxNoteChars)
		s.indexAttachment(ctx, log, ownerScope, text)
		if kind == extract.KindDOCX {
			if strings.TrimSpace(text) == "" {
				return att, domain.ChatMessage{Role: domain.RoleAssistant, Content: "The DOCX file seems empty or unreadable."}
			}
			return att, systemNote("Text extracted from the DOCX:\n" + truncateRunes(text, s.maxNoteChars))
		}
		return att, systemNote("This is the text extracted from the PDF:\n" + truncateRunes(text, s.maxNoteChars))

	case extract.KindImage:
		att.MediaKind = domain.MediaImage
		desc := vision.NoDescription
		if s.images != nil {
			d, err := s.images.DescribeImage(ctx, up.Data)
			if err != nil {
				log.Warn("image description failed", zap.Error(err))
				return att, readErrorNote(name, err)
			}
			if strings.TrimSpace(d) != "" {
				desc = d
			}
		}
		att.Text = desc
		return att, systemNote("Here's what the image seems to show: " + desc)

	default:
		return att, systemNote(fmt.Sprintf("The user attached %q; its contents could not be read as text.", name))
	}
}

// storeBlob uploads data under "<unixMillis>-<name>". A failed upload leaves
// the attachment without a locator.
func (s *ChatService) storeBlob(ctx context.Context, log *zap.Logger, name string, data []byte) (url, key string) {
	if s.blobs == nil {
		return "", ""
	}
	key = fmt.Sprintf("%d-%s", s.now().UnixMilli(), name)
	url, err := s.blobs.Put(ctx, key, data, extract.ContentType(name))
	if err != nil {
		log.Warn("attachment upload failed", zap.String("blob_key", key), zap.Error(err))
		return "", ""
	}
	return url, key
}

// indexAttachment makes document text searchable for later turns and QA.
func (s *ChatService) indexAttachment(ctx context.Context, log *zap.Logger, ownerScope, text string) {
	if s.indexer == nil || strings.TrimSpace(text) == "" {
		return
	}
	produced, indexed, err := s.indexer.indexText(ctx, ownerScope, text)
	if err != nil || indexed < produced {
		log.Warn("attachment only partly indexed",
			zap.Int("chunks_produced", produced),
			zap.Int("chunks_indexed", indexed),
			zap.Error(err),
		)
	}
}

func systemNote(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleSystem, Content: content}
}

func readErrorNote(name string, err error) domain.ChatMessage {
	return domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: fmt.Sprintf("Error reading uploaded file %s: %v", name, err),
	}
}
