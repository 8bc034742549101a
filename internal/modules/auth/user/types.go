package user

import (
	"errors"
	"time"

	"github.com/paperchain/core/internal/models"
)

var errUserNotFound = errors.New("user not found")

type profileResponse struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress"`
	Institution   string    `json:"institution"`
	Bio           string    `json:"bio"`
	ProfileImage  string    `json:"profileImage"`
	TokenBalance  int       `json:"tokenBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}

type tokensResponse struct {
	WalletAddress string              `json:"walletAddress"`
	Balance       int                 `json:"balance"`
	Transactions  []models.TokenModel `json:"transactions"`
}

func toProfile(u *models.UserModel) profileResponse {
	return profileResponse{
		ID:            u.ID,
		Username:      u.Username,
		WalletAddress: u.Wallet(),
		Institution:   u.Institution,
		Bio:           u.Bio,
		ProfileImage:  u.ProfileImage,
		TokenBalance:  u.TokenBalance,
		CreatedAt:     u.CreatedAt,
	}
}
