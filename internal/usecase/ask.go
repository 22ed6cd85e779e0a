package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"assistant-engine/internal/retrieval"
)

const defaultMaxQuestion = 2000

// AskService answers a question from the owner's indexed documents.
type AskService struct {
	index          Index
	llm            LLMClient
	topK           int
	maxQuestionLen int
	log            *zap.Logger
}

type AskInput struct {
	OwnerScope string
	Question   string
}

type AskOutput struct {
	Answer string
	// Context holds the excerpts the answer was grounded on.
	Context []string
}

func NewAskService(index Index, llm LLMClient, topK, maxQuestionLen int, log *zap.Logger) (*AskService, error) {
	if index == nil {
		return nil, errors.New("usecase: index must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AskService{index: index, llm: llm, topK: topK, maxQuestionLen: maxQuestionLen, log: log}, nil
}

// Ask returns the model's raw answer; citation markers are not parsed.
// Index failures degrade to an empty context, model failures are returned.
func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	ownerScope := strings.TrimSpace(in.OwnerScope)
	if ownerScope == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "missing_owner_scope", nil)
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if len([]rune(question)) > s.maxQuestionLen {
		return AskOutput{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}

	excerpts, err := s.index.Search(ctx, ownerScope, question, s.topK)
	if err != nil {
		s.log.Warn("retrieval failed, answering without context",
			zap.String("owner_scope", ownerScope),
			zap.Error(err),
		)
		excerpts = nil
	}

	answer, err := s.llm.Complete(ctx, qaMessages(question, excerpts))
	if err != nil {
		return AskOutput{}, modelError("llm", err)
	}
	return AskOutput{Answer: answer, Context: excerpts}, nil
}
