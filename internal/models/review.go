package models

// ReviewModel is an immutable peer review of a paper.
type ReviewModel struct {
	Base
	PaperID         uint    `json:"paperId"         gorm:"index;not null"`
	ReviewerID      uint    `json:"reviewerId"      gorm:"index;not null"`
	Content         string  `json:"content"         gorm:"type:text;not null"`
	Rating          int     `json:"rating"          gorm:"not null"`
	IPFSCid         string  `json:"ipfsCid"         gorm:"column:ipfs_cid;not null"`
	TransactionHash *string `json:"transactionHash"`
}

func (ReviewModel) TableName() string { return "reviews" }

// ReviewWithReviewer is a review joined with the reviewer summary.
type ReviewWithReviewer struct {
	ReviewModel
	Reviewer UserSummary `json:"reviewer"`
}
