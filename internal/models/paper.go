package models

// PaperStatus is the lifecycle state of a paper.
// Transitions are submitted -> reviewed -> verified, but verified may be reached
// directly from submitted through AI analysis.
type PaperStatus string

const (
	PaperSubmitted PaperStatus = "submitted"
	PaperReviewed  PaperStatus = "reviewed"
	PaperVerified  PaperStatus = "verified"
)

// Valid reports whether s is one of the known statuses.
func (s PaperStatus) Valid() bool {
	switch s {
	case PaperSubmitted, PaperReviewed, PaperVerified:
		return true
	}
	return false
}

// AIAnalysis is the structured verdict returned by the language model.
type AIAnalysis struct {
	PlagiarismCheck       string `json:"plagiarismCheck"`
	ReferenceVerification string `json:"referenceVerification"`
	ContentSummary        string `json:"contentSummary"`
	QualityRating         int    `json:"qualityRating"`
}

// PaperModel is a submitted research paper.
type PaperModel struct {
	Base
	Title        string      `json:"title"        gorm:"not null"`
	Abstract     string      `json:"abstract"     gorm:"type:text;not null"`
	AuthorID     uint        `json:"authorId"     gorm:"index;not null"`
	IPFSCid      string      `json:"ipfsCid"      gorm:"column:ipfs_cid;not null"`
	MetadataHash *string     `json:"metadataHash"`
	Status       PaperStatus `json:"status"       gorm:"size:16;index;not null;default:'submitted'"`
	Tags         StringArray `json:"tags"         gorm:"type:text"`
	ViewCount    int         `json:"viewCount"    gorm:"not null;default:0"`
	TokenCount   int         `json:"tokenCount"   gorm:"not null;default:0"`
	AIVerified   bool        `json:"aiVerified"   gorm:"column:ai_verified;not null;default:false"`
	AIAnalysis   *AIAnalysis `json:"aiAnalysis"   gorm:"column:ai_analysis;type:text;serializer:json"`
}

func (PaperModel) TableName() string { return "papers" }

// PaperWithAuthor is a paper joined with its author summary and live review count.
type PaperWithAuthor struct {
	PaperModel
	Author      UserSummary `json:"author"`
	ReviewCount int         `json:"reviewCount"`
}
