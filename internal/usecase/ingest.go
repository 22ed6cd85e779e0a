package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"assistant-engine/internal/chunker"
	"assistant-engine/internal/extract"
)

const defaultIngestConcurrency = 4

// chunkIndexer splits text and writes the chunks to the index with bounded
// parallelism. Individual upsert failures are logged and counted, not fatal.
type chunkIndexer struct {
	index       Index
	size        int
	concurrency int
	log         *zap.Logger
}

func (c *chunkIndexer) indexText(ctx context.Context, ownerScope, text string) (produced, indexed int, err error) {
	chunks := chunker.Split(text, c.size)
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	limit := c.concurrency
	if limit <= 0 {
		limit = defaultIngestConcurrency
	}
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id := ownerScope + "-" + newUUID()
			n, err := c.index.Upsert(gctx, ownerScope, id, chunk)
			if err != nil {
				c.log.Warn("chunk upsert failed",
					zap.String("owner_scope", ownerScope),
					zap.String("chunk_id", id),
					zap.Error(err),
				)
				return nil
			}
			written.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return len(chunks), int(written.Load()), err
	}
	return len(chunks), int(written.Load()), nil
}

type IngestService struct {
	extractor TextExtractor
	indexer   *chunkIndexer
	log       *zap.Logger
}

type IngestInput struct {
	OwnerScope string
	Filename   string
	Data       []byte
}

type IngestOutput struct {
	ChunksProduced int
	ChunksIndexed  int
}

// NewIngestService builds the ingestion pipeline. chunkSize and concurrency
// fall back to defaults when not positive.
func NewIngestService(extractor TextExtractor, index Index, chunkSize, concurrency int, log *zap.Logger) (*IngestService, error) {
	if extractor == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if index == nil {
		return nil, errors.New("usecase: index must not be nil")
	}
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{
		extractor: extractor,
		indexer:   &chunkIndexer{index: index, size: chunkSize, concurrency: concurrency, log: log},
		log:       log,
	}, nil
}

func ingestible(kind extract.Kind) bool {
	switch kind {
	case extract.KindPDF, extract.KindDOCX, extract.KindText, extract.KindCSV, extract.KindXLSX:
		return true
	}
	return false
}

// Ingest extracts, chunks and indexes one file for the owner scope.
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) (IngestOutput, error) {
	ownerScope := strings.TrimSpace(in.OwnerScope)
	if ownerScope == "" {
		return IngestOutput{}, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	if strings.TrimSpace(in.Filename) == "" || len(in.Data) == 0 {
		return IngestOutput{}, newError(ErrorInvalidInput, "missing_file", nil)
	}
	if !ingestible(extract.KindOf(in.Filename)) {
		return IngestOutput{}, newError(ErrorInvalidInput, "unsupported_file_type", nil)
	}

	text, err := s.extractor.ExtractText(ctx, in.Filename, in.Data)
	if err != nil {
		return IngestOutput{}, newError(ErrorInvalidInput, "extraction_failed", err)
	}

	produced, indexed, err := s.indexer.indexText(ctx, ownerScope, text)
	if err != nil {
		return IngestOutput{}, newError(ErrorInternal, "ingest_interrupted", err)
	}
	if produced > 0 && indexed == 0 {
		return IngestOutput{ChunksProduced: produced}, newError(ErrorUpstream, "index_unavailable", nil)
	}

	s.log.Info("document ingested",
		zap.String("owner_scope", ownerScope),
		zap.String("filename", in.Filename),
		zap.Int("chunks_produced", produced),
		zap.Int("chunks_indexed", indexed),
	)
	return IngestOutput{ChunksProduced: produced, ChunksIndexed: indexed}, nil
}
