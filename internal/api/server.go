package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/account"
	"unifarm.app/ledger/internal/features/farming"
	"unifarm.app/ledger/internal/features/referral"
	"unifarm.app/ledger/internal/features/wallet"
)

// Handlers — обработчики фич, монтируемые на роутер.
type Handlers struct {
	Account  *account.Handler
	Wallet   *wallet.Handler
	Farming  *farming.Handler
	Referral *referral.Handler
}

// Server — HTTP-сервер API.
type Server struct {
	httpServer  *http.Server
	rateLimiter *RateLimiter
}

// NewServer собирает роутер и сервер.
func NewServer(cfg *config.Config, db *pgxpool.Pool, h Handlers) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(), RequestLogger())

	rl := NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": "postgres недоступен"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1", rl.Middleware())
	{
		v1.POST("/accounts/register", h.Account.Register)
		v1.GET("/accounts/:user_id", h.Account.Get)

		v1.POST("/referrals/link", h.Referral.Link)
		v1.GET("/referrals/stats", h.Referral.Stats)

		v1.POST("/wallet/deposit", h.Wallet.Deposit)
		v1.POST("/wallet/withdraw", h.Wallet.Withdraw)
		v1.GET("/wallet/balance", h.Wallet.Balance)
		v1.GET("/wallet/transactions", h.Wallet.Transactions)
		v1.GET("/wallet/transactions/:id", h.Wallet.Transaction)

		v1.POST("/farming/deposit", h.Farming.Deposit)
		v1.POST("/farming/claim", h.Farming.Claim)

		adminAuth := NewAdminAuth(cfg.AdminPasswordHash)
		admin := v1.Group("/admin", adminAuth.Middleware())
		{
			admin.POST("/withdrawals/:id/approve", h.Wallet.Approve)
			admin.POST("/withdrawals/:id/reject", h.Wallet.Reject)
		}
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: router,
		},
		rateLimiter: rl,
	}
}

// Start запускает сервер. Блокируется до остановки.
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP-сервер запущен")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер и лимитер.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	return s.httpServer.Shutdown(ctx)
}
