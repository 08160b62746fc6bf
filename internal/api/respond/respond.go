// Package respond отображает доменные ошибки в HTTP-ответы.
// Наружу уходит только текст известных sentinel-ошибок; внутренние
// ошибки логируются и отдаются как 500 без деталей.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
)

var statusByErr = map[error]int{
	common.ErrInvalidAmount:      http.StatusBadRequest,
	common.ErrInvalidCurrency:    http.StatusBadRequest,
	common.ErrInvalidAddress:     http.StatusBadRequest,
	common.ErrSelfReferral:       http.StatusBadRequest,
	common.ErrReferralCycle:      http.StatusBadRequest,
	common.ErrAccountNotFound:    http.StatusNotFound,
	common.ErrEntryNotFound:      http.StatusNotFound,
	common.ErrRefCodeNotFound:    http.StatusNotFound,
	common.ErrFarmingInactive:    http.StatusNotFound,
	common.ErrAccountExists:      http.StatusConflict,
	common.ErrReferrerAlreadySet: http.StatusConflict,
	common.ErrEntryNotPending:    http.StatusConflict,
	common.ErrInsufficientFunds:  http.StatusUnprocessableEntity,
	common.ErrNotAdmin:           http.StatusForbidden,
	common.ErrTooManyAttempts:    http.StatusTooManyRequests,
}

// Error пишет ответ об ошибке с кодом по её виду.
func Error(c *gin.Context, err error) {
	for sentinel, status := range statusByErr {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(status, gin.H{"error": sentinel.Error()})
			return
		}
	}
	log.WithError(err).WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Внутренняя ошибка обработки запроса")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
}

// BadRequest пишет 400 с текстом причины.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
