package farming

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/api/respond"
	"unifarm.app/ledger/internal/common"
)

// Handler — HTTP-обработчики фарминга.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик фарминга.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit переводит средства с баланса в принципал фарминга.
// POST /api/v1/farming/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	kind, ok := ParseKind(req.Kind)
	if !ok {
		respond.BadRequest(c, "некорректный тариф")
		return
	}
	st, err := h.service.Deposit(c.Request.Context(), req.UserID, kind, req.Amount)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, stateView(st))
}

type claimRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Kind   string `json:"kind"`
}

// Claim начисляет накопленный доход по запросу.
// POST /api/v1/farming/claim
func (h *Handler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	kind, ok := ParseKind(req.Kind)
	if !ok {
		respond.BadRequest(c, "некорректный тариф")
		return
	}
	acc, st, err := h.service.Claim(c.Request.Context(), req.UserID, kind)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"periods": acc.Periods,
		"credit":  acc.Credit,
		"capped":  acc.Capped,
		"state":   stateView(st),
	})
}

func stateView(st *State) gin.H {
	return gin.H{
		"user_id":         st.UserID,
		"kind":            st.Kind,
		"currency":        st.Kind.Currency(),
		"deposit":         st.Deposit,
		"daily_rate":      st.DailyRate,
		"last_settled_at": common.FormatDateTime(st.LastSettledAt),
		"active":          st.Active,
	}
}
