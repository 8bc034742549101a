package paper

import (
	"errors"

	"github.com/paperchain/core/internal/models"
)

type SubmitPaperDTO struct {
	Title         string   `json:"title"         binding:"required,min=1,max=500"`
	Abstract      string   `json:"abstract"      binding:"required,min=50"`
	IPFSCid       string   `json:"ipfsCid"       binding:"required"`
	MetadataHash  *string  `json:"metadataHash"`
	Tags          []string `json:"tags"`
	WalletAddress string   `json:"walletAddress" binding:"required"`
	Signature     string   `json:"signature"`
}

type CreateReviewDTO struct {
	Content       string `json:"content"       binding:"required,min=50"`
	Rating        int    `json:"rating"        binding:"required,min=1,max=5"`
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// reviewPayload is the document pinned to the content store for each review.
type reviewPayload struct {
	PaperID   uint   `json:"paperId"`
	Reviewer  string `json:"reviewer"`
	Content   string `json:"content"`
	Rating    int    `json:"rating"`
	Timestamp string `json:"timestamp"`
}

type analyzeResponse struct {
	Analysis   models.AIAnalysis  `json:"analysis"`
	Status     models.PaperStatus `json:"status"`
	AIVerified bool               `json:"aiVerified"`
	Mode       string             `json:"mode"`
}

var (
	ErrPaperNotFound    = errors.New("paper not found")
	ErrReviewerNotFound = errors.New("reviewer not found")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSelfReview       = errors.New("authors cannot review their own paper")
	ErrPinFailed        = errors.New("failed to pin review to content store")
)
