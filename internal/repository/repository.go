// Package repository owns papers, users, reviews and the token ledger.
//
// Every mutation of the four entity collections goes through a Repository.
// Memory is the default in-process implementation; Gorm persists the same
// operation set to MySQL.
package repository

import (
	"context"
	"strings"

	"github.com/paperchain/core/internal/models"
)

const (
	// SubmissionBonus is awarded to the author when a paper is created.
	SubmissionBonus = 3
	// ReviewBonus is awarded to a reviewer for each accepted review.
	ReviewBonus = 5
	// VerificationBonus is awarded to the author when AI analysis verifies a paper.
	VerificationBonus = 10
	// ReviewedThreshold is the review count that moves a paper to reviewed.
	ReviewedThreshold = 2

	SubmissionReason   = "Paper submission"
	ReviewReason       = "Peer review submitted"
	VerificationReason = "High-quality paper verified by AI"
)

// NewPaper carries the caller-supplied fields of a paper.
type NewPaper struct {
	Title        string
	Abstract     string
	AuthorID     uint
	IPFSCid      string
	MetadataHash *string
	Tags         []string
}

// NewReview carries the caller-supplied fields of a review.
type NewReview struct {
	PaperID         uint
	ReviewerID      uint
	Content         string
	Rating          int
	IPFSCid         string
	TransactionHash *string
}

// Award describes a token ledger entry.
// PaperID attributes the award to a paper explicitly; when nil and the reason
// mentions a review, the reviewer's most recent review decides the paper.
type Award struct {
	UserID          uint
	Amount          int
	Reason          string
	TransactionHash *string
	PaperID         *uint
}

// Repository is the operation set shared by all storage backends.
//
// Targeted paper mutations report false when the paper does not exist; the
// error is reserved for backend failures.
type Repository interface {
	GetUser(ctx context.Context, id uint) (*models.UserModel, error)
	GetUserByWallet(ctx context.Context, wallet string) (*models.UserModel, error)
	FindOrCreateUserByWallet(ctx context.Context, wallet string, user models.UserModel) (*models.UserModel, bool, error)
	GetUserTokens(ctx context.Context, userID uint) ([]models.TokenModel, error)

	CreatePaper(ctx context.Context, p NewPaper) (*models.PaperModel, error)
	GetPaper(ctx context.Context, id uint) (*models.PaperModel, error)
	GetAllPapers(ctx context.Context) ([]models.PaperWithAuthor, error)
	GetPaperWithAuthor(ctx context.Context, id uint) (*models.PaperWithAuthor, error)
	UpdatePaperStatus(ctx context.Context, id uint, status models.PaperStatus) (bool, error)
	UpdatePaperAIVerified(ctx context.Context, id uint, verified bool) (bool, error)
	UpdatePaperAIAnalysis(ctx context.Context, id uint, analysis *models.AIAnalysis) (bool, error)
	IncrementPaperViews(ctx context.Context, id uint) (bool, error)

	CreateReview(ctx context.Context, r NewReview) (*models.ReviewModel, error)
	GetReviewsByPaper(ctx context.Context, paperID uint) ([]models.ReviewModel, error)
	GetReviewsWithReviewer(ctx context.Context, paperID uint) ([]models.ReviewWithReviewer, error)
	CountReviews(ctx context.Context, paperID uint) (int, error)

	AwardTokens(ctx context.Context, a Award) (*models.TokenModel, error)
}

// NormalizeWallet canonicalizes a wallet address for storage and lookup.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func isReviewReason(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "review")
}

func copyTags(tags []string) models.StringArray {
	out := make(models.StringArray, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
