package models

// TokenModel is an append-only reward ledger entry.
type TokenModel struct {
	Base
	UserID          uint    `json:"userId"          gorm:"index;not null"`
	Amount          int     `json:"amount"          gorm:"not null"`
	Reason          string  `json:"reason"          gorm:"not null"`
	TransactionHash *string `json:"transactionHash"`
	PaperID         *uint   `json:"paperId"         gorm:"index"`
}

func (TokenModel) TableName() string { return "tokens" }
