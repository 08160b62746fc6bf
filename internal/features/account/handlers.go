package account

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"unifarm.app/ledger/internal/api/respond"
)

// Handler — HTTP-обработчики аккаунтов.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик аккаунтов.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	RefCode string `json:"ref_code"`
}

// Register регистрирует аккаунт, опционально привязывая пригласившего.
// POST /api/v1/accounts/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	acc, err := h.service.Register(c.Request.Context(), req.UserID, req.RefCode)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

// Get возвращает аккаунт.
// GET /api/v1/accounts/:user_id
func (h *Handler) Get(c *gin.Context) {
	userID, ok := ParseUserID(c)
	if !ok {
		return
	}
	acc, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// ParseUserID читает user_id из параметра пути. При ошибке пишет 400
// и возвращает false.
func ParseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respond.BadRequest(c, "некорректный user_id")
		return 0, false
	}
	return userID, true
}
