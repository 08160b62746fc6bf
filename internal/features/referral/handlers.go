package referral

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"unifarm.app/ledger/internal/api/respond"
	"unifarm.app/ledger/internal/features/account"
)

// Handler — HTTP-обработчики реферальной программы.
type Handler struct {
	service  *Service
	accounts *account.Service
	repo     *account.Repository
}

// NewHandler создаёт обработчик рефералов.
func NewHandler(service *Service, accounts *account.Service, repo *account.Repository) *Handler {
	return &Handler{service: service, accounts: accounts, repo: repo}
}

type linkRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	RefCode string `json:"ref_code" binding:"required"`
}

// Link привязывает пригласившего по реферальному коду. Одноразово.
// POST /api/v1/referrals/link
func (h *Handler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	if err := h.accounts.LinkReferrer(c.Request.Context(), req.UserID, req.RefCode); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": true})
}

// Stats возвращает сводку реферальной сети.
// GET /api/v1/referrals/stats?user_id=
func (h *Handler) Stats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respond.BadRequest(c, "некорректный user_id")
		return
	}
	ctx := c.Request.Context()

	acc, err := h.accounts.Get(ctx, userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	levels, err := h.repo.CountReferralsByLevel(ctx, userID, MaxDepth)
	if err != nil {
		respond.Error(c, err)
		return
	}
	stats, err := h.service.Stats(ctx, userID, acc.RefCode, levels)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
