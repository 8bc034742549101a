package paper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paperchain/core/internal/models"
	"github.com/paperchain/core/internal/modules/identity"
	"github.com/paperchain/core/internal/modules/processing/analysis"
	"github.com/paperchain/core/internal/pkg/ipfs"
	"github.com/paperchain/core/internal/pkg/signature"
	"github.com/paperchain/core/internal/pkg/taskqueue"
	"github.com/paperchain/core/internal/repository"
	"go.uber.org/zap"
)

const analysisTaskType = "paper.analysis"

// Analyzer runs AI analysis for a paper.
type Analyzer interface {
	Analyze(ctx context.Context, paperID uint) (*analysis.Result, error)
}

// Dispatcher schedules background work without waiting for it.
type Dispatcher interface {
	Dispatch(taskType string, payload any, fn taskqueue.Func) taskqueue.Task
}

// Recorder receives lifecycle events, e.g. for metrics.
type Recorder interface {
	PaperSubmitted()
	ReviewSubmitted()
	TokensAwarded(reason string, amount int)
	Upload(kind string, err error)
}

type nopRecorder struct{}

func (nopRecorder) PaperSubmitted()           {}
func (nopRecorder) ReviewSubmitted()          {}
func (nopRecorder) TokensAwarded(string, int) {}
func (nopRecorder) Upload(string, error)      {}

type Service struct {
	repo       repository.Repository
	identities *identity.Resolver
	store      ipfs.Store
	analyzer   Analyzer
	dispatcher Dispatcher
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
}

type Deps struct {
	Repo       repository.Repository
	Identities *identity.Resolver
	Store      ipfs.Store
	Analyzer   Analyzer
	Dispatcher Dispatcher
	Recorder   Recorder
	Logger     *zap.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:       d.Repo,
		identities: d.Identities,
		store:      d.Store,
		analyzer:   d.Analyzer,
		dispatcher: d.Dispatcher,
		recorder:   d.Recorder,
		logger:     d.Logger,
		now:        time.Now,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// List returns every paper with its author, newest first.
func (s *Service) List(ctx context.Context) ([]models.PaperWithAuthor, error) {
	return s.repo.GetAllPapers(ctx)
}

// Get returns a paper with its author and counts the view.
func (s *Service) Get(ctx context.Context, id uint) (*models.PaperWithAuthor, error) {
	ok, err := s.repo.IncrementPaperViews(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaperNotFound
	}
	p, err := s.repo.GetPaperWithAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaperNotFound
	}
	return p, nil
}

// Submit stores a new paper and schedules its analysis.
// An empty signature skips verification.
func (s *Service) Submit(ctx context.Context, dto SubmitPaperDTO) (*models.PaperModel, error) {
	if dto.Signature != "" {
		msg := signature.SubmissionMessage(dto.Title, dto.IPFSCid)
		if !signature.Verify(msg, dto.Signature, dto.WalletAddress) {
			s.logger.Info("paper signature rejected", zap.String("wallet", dto.WalletAddress))
			return nil, ErrInvalidSignature
		}
	}

	author, err := s.identities.Resolve(ctx, dto.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve author: %w", err)
	}

	paper, err := s.repo.CreatePaper(ctx, repository.NewPaper{
		Title:        dto.Title,
		Abstract:     dto.Abstract,
		AuthorID:     author.ID,
		IPFSCid:      dto.IPFSCid,
		MetadataHash: dto.MetadataHash,
		Tags:         dto.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("create paper: %w", err)
	}
	s.recorder.PaperSubmitted()
	s.recorder.TokensAwarded(repository.SubmissionReason, repository.SubmissionBonus)

	s.logger.Info("paper submitted",
		zap.Uint("paper_id", paper.ID),
		zap.Uint("author_id", author.ID),
		zap.String("cid", paper.IPFSCid),
		zap.Bool("signed", dto.Signature != ""),
	)
	s.scheduleAnalysis(paper.ID)
	return paper, nil
}

func (s *Service) scheduleAnalysis(paperID uint) {
	if s.analyzer == nil || s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(analysisTaskType, map[string]uint{"paperId": paperID}, func(ctx context.Context) error {
		res, err := s.analyzer.Analyze(ctx, paperID)
		if err != nil {
			return err
		}
		if res.Verified {
			s.recorder.TokensAwarded(repository.VerificationReason, repository.VerificationBonus)
		}
		return nil
	})
}

// Reanalyze runs analysis synchronously and reports the resulting status.
func (s *Service) Reanalyze(ctx context.Context, paperID uint) (*analyzeResponse, error) {
	existing, err := s.repo.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPaperNotFound
	}
	if s.analyzer == nil {
		return nil, analysis.ErrNoModel
	}
	res, err := s.analyzer.Analyze(ctx, paperID)
	if err != nil {
		if errors.Is(err, analysis.ErrPaperNotFound) {
			return nil, ErrPaperNotFound
		}
		return nil, err
	}
	if res.Verified {
		s.recorder.TokensAwarded(repository.VerificationReason, repository.VerificationBonus)
	}

	paper, err := s.repo.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}
	return &analyzeResponse{
		Analysis:   res.Analysis,
		Status:     paper.Status,
		AIVerified: paper.AIVerified,
		Mode:       string(res.Mode),
	}, nil
}

// Reviews returns the reviews of a paper, newest first.
func (s *Service) Reviews(ctx context.Context, paperID uint) ([]models.ReviewWithReviewer, error) {
	return s.repo.GetReviewsWithReviewer(ctx, paperID)
}

// Review records a peer review. The review document is pinned to the
// content store first; a pin failure aborts the review.
func (s *Service) Review(ctx context.Context, paperID uint, dto CreateReviewDTO) (*models.ReviewModel, error) {
	paper, err := s.repo.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}

	reviewer, err := s.identities.Lookup(ctx, dto.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("lookup reviewer: %w", err)
	}
	if reviewer == nil {
		return nil, ErrReviewerNotFound
	}
	if reviewer.ID == paper.AuthorID {
		return nil, ErrSelfReview
	}

	cid, err := s.store.UploadJSON(ctx, fmt.Sprintf("review-paper-%d", paper.ID), reviewPayload{
		PaperID:   paper.ID,
		Reviewer:  reviewer.Wallet(),
		Content:   dto.Content,
		Rating:    dto.Rating,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	s.recorder.Upload("review", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinFailed, err)
	}

	review, err := s.repo.CreateReview(ctx, repository.NewReview{
		PaperID:    paper.ID,
		ReviewerID: reviewer.ID,
		Content:    dto.Content,
		Rating:     dto.Rating,
		IPFSCid:    cid,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSelfReview):
			return nil, ErrSelfReview
		case errors.Is(err, repository.ErrPaperNotFound):
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.recorder.ReviewSubmitted()

	paperRef := paper.ID
	if _, err := s.repo.AwardTokens(ctx, repository.Award{
		UserID:  reviewer.ID,
		Amount:  repository.ReviewBonus,
		Reason:  repository.ReviewReason,
		PaperID: &paperRef,
	}); err != nil {
		return nil, fmt.Errorf("award review bonus: %w", err)
	}
	s.recorder.TokensAwarded(repository.ReviewReason, repository.ReviewBonus)

	s.logger.Info("review submitted",
		zap.Uint("review_id", review.ID),
		zap.Uint("paper_id", paper.ID),
		zap.Uint("reviewer_id", reviewer.ID),
		zap.Int("rating", review.Rating),
		zap.String("cid", cid),
	)
	return review, nil
}
