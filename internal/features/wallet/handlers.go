package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/api/respond"
	"unifarm.app/ledger/internal/common"
)

// Handler — HTTP-обработчики кошелька.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик кошелька.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	UserID   int64           `json:"user_id" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	TxHash   string          `json:"tx_hash" binding:"required"`
}

// Deposit зачисляет внешний депозит.
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	cur, err := common.ParseCurrency(req.Currency)
	if err != nil {
		respond.Error(c, err)
		return
	}
	entry, duplicate, err := h.service.Deposit(c.Request.Context(), req.UserID, cur, req.Amount, req.TxHash)
	if err != nil {
		respond.Error(c, err)
		return
	}
	status := "completed"
	code := http.StatusCreated
	if duplicate {
		status = "duplicate"
		code = http.StatusOK
	}
	c.JSON(code, gin.H{"entry_id": entry.ID, "status": status})
}

type withdrawRequest struct {
	UserID      int64           `json:"user_id" binding:"required"`
	Currency    string          `json:"currency" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Destination string          `json:"destination" binding:"required"`
}

// Withdraw оформляет заявку на вывод.
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "некорректное тело запроса")
		return
	}
	cur, err := common.ParseCurrency(req.Currency)
	if err != nil {
		respond.Error(c, err)
		return
	}
	entry, err := h.service.Withdraw(c.Request.Context(), req.UserID, cur, req.Amount, req.Destination)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"entry_id": entry.ID, "status": string(entry.Status)})
}

// Approve подтверждает pending-вывод. Только для администратора.
// POST /api/v1/admin/withdrawals/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	entry, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": entry.ID, "status": string(entry.Status)})
}

// Reject отклоняет pending-вывод с возвратом средств.
// POST /api/v1/admin/withdrawals/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	entry, err := h.service.Reject(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": entry.ID, "status": string(entry.Status)})
}

// Balance возвращает балансы пользователя.
// GET /api/v1/wallet/balance?user_id=
func (h *Handler) Balance(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	balances, err := h.service.Balances(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// Transactions возвращает страницу истории с курсорной пагинацией.
// GET /api/v1/wallet/transactions?user_id=&cursor=&limit=
func (h *Handler) Transactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	cursor, _ := strconv.ParseInt(c.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.service.History(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	var next int64
	if len(entries) > 0 {
		next = entries[len(entries)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "next_cursor": next})
}

// Transaction возвращает одну запись истории по id.
// GET /api/v1/wallet/transactions/:id
func (h *Handler) Transaction(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	entry, err := h.service.Entry(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func parseEntryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.BadRequest(c, "некорректный id записи")
		return 0, false
	}
	return id, true
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respond.BadRequest(c, "некорректный user_id")
		return 0, false
	}
	return userID, true
}
