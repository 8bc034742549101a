// Package analysis rates papers with a language model and promotes
// high-quality ones to verified.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paperchain/core/internal/models"
	"github.com/paperchain/core/internal/pkg/ipfs"
	"github.com/paperchain/core/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize bounds the characters sent to the model in one request.
	DefaultChunkSize = 12000
	// FullThreshold is the promotion rating when the whole paper was analyzed.
	FullThreshold = 7
	// SampledThreshold is the promotion rating when only a sample was analyzed.
	SampledThreshold = 6

	minRating = 1
	maxRating = 10
)

var (
	ErrPaperNotFound = errors.New("paper not found")
	ErrNoModel       = errors.New("analysis model is not configured")
	errInvalidOutput = errors.New("invalid JSON response from AI")
)

// Mode tells whether a verdict came from the full text or from a sample.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeSampled Mode = "sampled"
)

// Result is the outcome of one analysis run.
type Result struct {
	Analysis  models.AIAnalysis
	Mode      Mode
	Chunks    int
	Threshold int
	Verified  bool
	// FromAbstract is set when the body could not be retrieved.
	FromAbstract bool
}

// Observer receives analysis outcomes, e.g. for metrics.
type Observer interface {
	ObserveAnalysis(mode string, verified bool, err error)
}

type Service struct {
	repo      repository.Repository
	store     ipfs.Store
	model     Model
	chunkSize int
	logger    *zap.Logger
	observer  Observer
}

type Option func(*Service)

func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func NewService(repo repository.Repository, store ipfs.Store, model Model, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		store:     store,
		model:     model,
		chunkSize: DefaultChunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the analysis pipeline for a paper and writes the result back.
func (s *Service) Analyze(ctx context.Context, paperID uint) (*Result, error) {
	res, err := s.analyze(ctx, paperID)
	if s.observer != nil {
		mode, verified := "", false
		if res != nil {
			mode, verified = string(res.Mode), res.Verified
		}
		s.observer.ObserveAnalysis(mode, verified, err)
	}
	return res, err
}

func (s *Service) analyze(ctx context.Context, paperID uint) (*Result, error) {
	if s.model == nil {
		return nil, ErrNoModel
	}
	paper, err := s.repo.GetPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}

	body, fromAbstract := s.loadBody(ctx, paper)
	chunks := ChunkText(body, s.chunkSize)

	res := &Result{Chunks: len(chunks), FromAbstract: fromAbstract}
	var analysis *models.AIAnalysis
	if len(chunks) <= 1 {
		res.Mode, res.Threshold = ModeFull, FullThreshold
		system, user := buildFullPrompt(paper.Title, body)
		analysis, err = s.ask(ctx, system, user)
	} else {
		res.Mode, res.Threshold = ModeSampled, SampledThreshold
		analysis, err = s.analyzeSampled(ctx, paper, chunks)
	}
	if err != nil {
		return nil, err
	}
	res.Analysis = *analysis

	if ok, err := s.repo.UpdatePaperAIAnalysis(ctx, paper.ID, analysis); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	} else if !ok {
		return nil, ErrPaperNotFound
	}

	if analysis.QualityRating >= res.Threshold {
		if err := s.promote(ctx, paper); err != nil {
			return nil, err
		}
		res.Verified = true
	}

	s.logger.Info("paper analyzed",
		zap.Uint("paper_id", paper.ID),
		zap.String("mode", string(res.Mode)),
		zap.Int("chunks", res.Chunks),
		zap.Int("quality_rating", analysis.QualityRating),
		zap.Bool("verified", res.Verified),
		zap.Bool("from_abstract", fromAbstract),
	)
	return res, nil
}

// loadBody fetches the paper body, falling back to the abstract.
func (s *Service) loadBody(ctx context.Context, paper *models.PaperModel) (string, bool) {
	if s.store == nil {
		return paper.Abstract, true
	}
	data, err := s.store.Retrieve(ctx, paper.IPFSCid)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		s.logger.Info("paper body unavailable, using abstract",
			zap.Uint("paper_id", paper.ID),
			zap.String("cid", paper.IPFSCid),
			zap.Error(err),
		)
		return paper.Abstract, true
	}
	return string(data), false
}

func (s *Service) analyzeSampled(ctx context.Context, paper *models.PaperModel, chunks []string) (*models.AIAnalysis, error) {
	system, user := buildAbstractPrompt(paper.Title, paper.Abstract)
	if baseline, err := s.ask(ctx, system, user); err != nil {
		s.logger.Warn("abstract baseline failed, continuing with sample",
			zap.Uint("paper_id", paper.ID),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("abstract baseline",
			zap.Uint("paper_id", paper.ID),
			zap.Int("quality_rating", baseline.QualityRating),
		)
	}

	intro, ok := findIntroduction(chunks)
	if !ok {
		intro = chunks[0]
	}
	conclusion, ok := findConclusion(chunks)
	if !ok {
		conclusion = chunks[len(chunks)-1]
	}

	system, user = buildSampledPrompt(paper.Title, buildSample(paper.Title, paper.Abstract, intro, conclusion))
	return s.ask(ctx, system, user)
}

func (s *Service) promote(ctx context.Context, paper *models.PaperModel) error {
	if _, err := s.repo.UpdatePaperStatus(ctx, paper.ID, models.PaperVerified); err != nil {
		return fmt.Errorf("promote paper: %w", err)
	}
	if _, err := s.repo.UpdatePaperAIVerified(ctx, paper.ID, true); err != nil {
		return fmt.Errorf("promote paper: %w", err)
	}
	if _, err := s.repo.AwardTokens(ctx, repository.Award{
		UserID: paper.AuthorID,
		Amount: repository.VerificationBonus,
		Reason: repository.VerificationReason,
	}); err != nil {
		return fmt.Errorf("award verification bonus: %w", err)
	}
	return nil
}

func (s *Service) ask(ctx context.Context, system, user string) (*models.AIAnalysis, error) {
	raw, err := s.model.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	return parseAnalysis(raw)
}

type analysisOutput struct {
	PlagiarismCheck       string          `json:"plagiarismCheck"`
	ReferenceVerification string          `json:"referenceVerification"`
	ContentSummary        string          `json:"contentSummary"`
	QualityRating         json.RawMessage `json:"qualityRating"`
}

func parseAnalysis(raw string) (*models.AIAnalysis, error) {
	var out analysisOutput
	if err := unmarshalAIJSON(raw, &out); err != nil {
		return nil, err
	}
	rating, err := parseRating(out.QualityRating)
	if err != nil {
		return nil, err
	}
	return &models.AIAnalysis{
		PlagiarismCheck:       strings.TrimSpace(out.PlagiarismCheck),
		ReferenceVerification: strings.TrimSpace(out.ReferenceVerification),
		ContentSummary:        strings.TrimSpace(out.ContentSummary),
		QualityRating:         rating,
	}, nil
}

// parseRating accepts a number or a numeric string, clamps it to 1..10 and
// rounds to the nearest integer.
func parseRating(raw json.RawMessage) (int, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0, fmt.Errorf("%w: missing qualityRating", errInvalidOutput)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: qualityRating %q", errInvalidOutput, text)
	}
	f = math.Max(minRating, math.Min(maxRating, f))
	return int(math.Round(f)), nil
}

func unmarshalAIJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}
	return errInvalidOutput
}
