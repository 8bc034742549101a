package repository

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPaperNotFound = errors.New("paper not found")
	ErrSelfReview    = errors.New("authors cannot review their own paper")
	ErrInvalidAmount = errors.New("token amount must be positive")
	ErrEmptyWallet   = errors.New("wallet address is required")
)
