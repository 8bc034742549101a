package user

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/paperchain/core/internal/pkg/response"
	"github.com/paperchain/core/internal/repository"
)

// Handler serves public wallet profiles.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.GET("/:walletAddress", h.profile)
	users.GET("/:walletAddress/tokens", h.tokens)
}

// profile GET /users/:walletAddress
func (h *Handler) profile(c *gin.Context) {
	u, err := h.svc.GetByWallet(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		if errors.Is(err, repository.ErrEmptyWallet) {
			response.BadRequest(c, "Wallet address is required")
			return
		}
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFound(c, "User not found")
		return
	}
	response.OK(c, toProfile(u))
}

// tokens GET /users/:walletAddress/tokens
func (h *Handler) tokens(c *gin.Context) {
	u, entries, err := h.svc.Tokens(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		switch {
		case errors.Is(err, errUserNotFound):
			response.NotFound(c, "User not found")
		case errors.Is(err, repository.ErrEmptyWallet):
			response.BadRequest(c, "Wallet address is required")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, tokensResponse{
		WalletAddress: u.Wallet(),
		Balance:       u.TokenBalance,
		Transactions:  entries,
	})
}
