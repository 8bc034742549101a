package models

// AuthPlaceholder is the credential stored for users created from a wallet address.
// Wallet users never log in with a password; the value only satisfies the not-null column.
const AuthPlaceholder = "wallet-auth"

// UserModel is a researcher identified by a wallet address.
type UserModel struct {
	Base
	Username      string  `json:"username"      gorm:"uniqueIndex;size:191;not null"`
	Password      string  `json:"-"             gorm:"not null"`
	WalletAddress *string `json:"walletAddress" gorm:"uniqueIndex;size:64"`
	Institution   string  `json:"institution"`
	Bio           string  `json:"bio"           gorm:"type:text"`
	ProfileImage  string  `json:"profileImage"`
	TokenBalance  int     `json:"tokenBalance"  gorm:"not null;default:0"`
}

func (UserModel) TableName() string { return "users" }

// Wallet returns the wallet address or "" when the user has none.
func (u *UserModel) Wallet() string {
	if u == nil || u.WalletAddress == nil {
		return ""
	}
	return *u.WalletAddress
}

// UserSummary is the author/reviewer projection joined onto papers and reviews.
type UserSummary struct {
	ID            uint   `json:"id"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Institution   string `json:"institution,omitempty"`
	ProfileImage  string `json:"profileImage,omitempty"`
}

// UnknownAuthor is used when a paper or review references a missing user.
var UnknownAuthor = UserSummary{Username: "Unknown Author"}

// Summary projects the user onto the fields exposed next to papers and reviews.
func (u *UserModel) Summary() UserSummary {
	if u == nil {
		return UnknownAuthor
	}
	return UserSummary{
		ID:            u.ID,
		Username:      u.Username,
		WalletAddress: u.Wallet(),
		Institution:   u.Institution,
		ProfileImage:  u.ProfileImage,
	}
}
