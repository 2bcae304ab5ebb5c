package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// answerTemperature keeps answers close to the excerpts.
const answerTemperature = 0.2

const defaultHistoryLimit = 50

// AnswerService answers questions grounded in a user's documents.
//
// A question moves through validation, retrieval, prompt composition, a
// single completion call and persistence. Declines and failures are
// returned as *domain.AskError.
type AnswerService struct {
	status    driving.StatusService
	retriever *Retriever
	embedder  driven.EmbeddingService
	llm       driven.LLMService
	prompts   driven.PromptStore
	chats     driven.ChatStore
	metrics   driven.PipelineMetrics
	timeout   time.Duration
	now       func() time.Time
}

// NewAnswerService creates a new answer service.
// The embedder and metrics parameters are optional (can be nil). Without
// an embedder, retrieval always takes the recency fallback.
func NewAnswerService(
	status driving.StatusService,
	retriever *Retriever,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	chats driven.ChatStore,
	callTimeout time.Duration,
	metrics driven.PipelineMetrics,
) *AnswerService {
	if callTimeout <= 0 {
		callTimeout = domain.DefaultPipelineSettings().CallTimeout
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AnswerService{
		status:    status,
		retriever: retriever,
		embedder:  embedder,
		llm:       llm,
		prompts:   prompts,
		chats:     chats,
		metrics:   metrics,
		timeout:   callTimeout,
		now:       time.Now,
	}
}

// Ask answers a question.
func (s *AnswerService) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	start := time.Now()
	answer, err := s.ask(ctx, req)

	var outcome string
	switch {
	case err == nil:
		outcome = string(answer.Mode)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	default:
		outcome = string(domain.KindInternal)
		if askErr, ok := domain.AsAskError(err); ok {
			outcome = string(askErr.Kind)
		}
	}
	s.metrics.QuestionAnswered(outcome, time.Since(start))

	return answer, err
}

func (s *AnswerService) ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	logger.Section("Ask")

	// Validating
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, &domain.AskError{Kind: domain.KindInvalidInput, Message: "Question must not be empty."}
	}
	if s.llm == nil || s.retriever == nil || s.prompts == nil || s.chats == nil {
		return nil, &domain.AskError{
			Kind:    domain.KindInternal,
			Message: "No language model is configured.",
			Err:     domain.ErrLLMUnavailable,
		}
	}
	if req.DocumentID != "" {
		progress, err := s.status.GetDocumentStatus(ctx, req.OwnerID, req.DocumentID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.AskError{Kind: domain.KindNotFound, Message: "Document not found.", Err: err}
		}
		if err != nil {
			return nil, s.internal(ctx, "Could not check the document status.", err)
		}
		if decline := domain.DeclineForStatus(progress.Status); decline != nil {
			logger.Debug("Declined: document %s is %s", req.DocumentID, progress.Status)
			return nil, decline
		}
	}

	// Retrieving
	result, err := s.retrieve(ctx, req)
	if errors.Is(err, domain.ErrDocumentNotReady) {
		return nil, s.declineNotReady(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.DocumentID != "" && len(result.Matches) == 0 {
		return nil, &domain.AskError{
			Kind:    domain.KindNoRelevantContent,
			Message: "No relevant content was found in this document for your question.",
		}
	}

	// Composing
	mode := domain.AnswerGeneral
	if len(result.Matches) > 0 {
		mode = domain.AnswerGrounded
	}
	system, user, err := s.compose(req.Query, result)
	if err != nil {
		return nil, s.internal(ctx, "Could not load prompt templates.", err)
	}

	// Completing
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.llm.Complete(callCtx, system, user, driven.CompletionOptions{Temperature: answerTemperature})
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.AskError{
			Kind:    domain.KindProviderUnavailable,
			Message: "The AI service is temporarily unavailable. Please try again.",
			Err:     err,
		}
	}

	// Persisting
	exchange := &domain.ChatExchange{
		ID:         uuid.New().String(),
		UserID:     req.OwnerID,
		DocumentID: req.DocumentID,
		Query:      req.Query,
		Answer:     text,
		Mode:       mode,
		CreatedAt:  s.now(),
	}
	if err := s.chats.SaveExchange(ctx, exchange); err != nil {
		logger.Error("save chat exchange: %v", err)
	}

	return &domain.Answer{
		ExchangeID:  exchange.ID,
		Text:        text,
		Mode:        mode,
		Provenance:  result.Provenance,
		Excerpts:    excerpts(result.Matches),
		Suggestions: ExtractSuggestions(text),
	}, nil
}

// retrieve embeds the question and searches. Failures degrade rather than
// abort, except a scoped document that stopped being ready since the
// status check.
func (s *AnswerService) retrieve(ctx context.Context, req domain.AskRequest) (*domain.RetrievalResult, error) {
	var vector []float32
	if s.embedder != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		v, err := s.embedder.Embed(callCtx, req.Query)
		cancel()
		if err != nil {
			logger.Warn("Question embedding failed, using recent chunks: %v", err)
		} else {
			vector = v
		}
	}

	result, err := s.retriever.Search(ctx, domain.RetrievalQuery{
		Vector:     vector,
		OwnerID:    req.OwnerID,
		DocumentID: req.DocumentID,
	})
	if errors.Is(err, domain.ErrDocumentNotReady) {
		return nil, err
	}
	if err != nil {
		logger.Warn("Retrieval failed: %v", err)
		return &domain.RetrievalResult{Provenance: domain.ProvenanceFallback}, nil
	}
	return result, nil
}

// declineNotReady declines with the document's current status, assuming
// processing when it cannot be read.
func (s *AnswerService) declineNotReady(ctx context.Context, req domain.AskRequest) error {
	status := domain.DocumentProcessing
	if progress, err := s.status.GetDocumentStatus(ctx, req.OwnerID, req.DocumentID); err == nil &&
		progress.Status != domain.DocumentReady {
		status = progress.Status
	}
	logger.Debug("Declined: document %s is %s at retrieval", req.DocumentID, status)
	return domain.DeclineForStatus(status)
}

func (s *AnswerService) compose(query string, result *domain.RetrievalResult) (string, string, error) {
	system, err := s.prompts.Load(driven.PromptSystem)
	if err != nil {
		return "", "", err
	}

	if len(result.Matches) == 0 {
		tmpl, err := s.prompts.Load(driven.PromptGeneralAnswer)
		if err != nil {
			return "", "", err
		}
		return system, fmt.Sprintf(tmpl, query), nil
	}

	tmpl, err := s.prompts.Load(driven.PromptGroundedAnswer)
	if err != nil {
		return "", "", err
	}
	return system, fmt.Sprintf(tmpl, FormatExcerpts(result), query), nil
}

// FormatExcerpts renders matches as labelled excerpt blocks.
func FormatExcerpts(result *domain.RetrievalResult) string {
	label := "EXCERPT"
	if result.Provenance == domain.ProvenanceFallback {
		label = "RECENT EXCERPT (unranked)"
	}

	blocks := make([]string, 0, len(result.Matches))
	for i, m := range result.Matches {
		blocks = append(blocks, fmt.Sprintf("[%s %d from %s]\n%s", label, i+1, m.DocumentName, m.Chunk.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func (s *AnswerService) internal(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Error("ask: %s: %v", msg, err)
	return &domain.AskError{Kind: domain.KindInternal, Message: msg, Err: err}
}

func excerpts(matches []domain.ChunkMatch) []domain.SourceExcerpt {
	out := make([]domain.SourceExcerpt, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.SourceExcerpt{
			ChunkID:      m.Chunk.ID,
			DocumentID:   m.Chunk.DocumentID,
			DocumentName: m.DocumentName,
			Position:     m.Chunk.Position,
			Content:      m.Chunk.Content,
			Score:        m.Score,
		})
	}
	return out
}

// History returns past exchanges, newest first.
func (s *AnswerService) History(ctx context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error) {
	if s.chats == nil {
		return []domain.ChatExchange{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	exchanges, err := s.chats.ListExchanges(ctx, userID, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	return exchanges, nil
}
