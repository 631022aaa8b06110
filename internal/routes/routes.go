package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "invoice-reconciliation-backend/internal/handlers"
	"invoice-reconciliation-backend/internal/locking"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/explanation"
	"invoice-reconciliation-backend/internal/services/invoices"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
	"invoice-reconciliation-backend/internal/services/transactions"
)

// Dependencies are the shared resources the API is built from.
type Dependencies struct {
	DB        *gorm.DB
	Locker    locking.Locker
	Explainer *explanation.Service
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	store := repository.NewStore(deps.DB)

	invoiceService := invoices.NewService(store, deps.Logger)
	transactionService := transactions.NewService(store, deps.Logger, deps.Metrics)
	reconService := service.NewReconciliationService(
		store,
		deps.Locker,
		deps.Explainer,
		deps.Logger,
		deps.Metrics,
	)

	tenantHandler := handler.NewTenantHandler(invoiceService, deps.Logger)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, deps.Logger)
	txHandler := handler.NewTransactionHandler(transactionService, deps.Logger)
	reconHandler := handler.NewReconciliationHandler(reconService, deps.Logger)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/tenants", tenantHandler.CreateTenant)
	api.GET("/tenants", tenantHandler.ListTenants)

	tenant := api.Group("/tenants/:tenantId")
	tenant.GET("", tenantHandler.GetTenant)

	// Vendor routes
	tenant.POST("/vendors", tenantHandler.CreateVendor)
	tenant.GET("/vendors", tenantHandler.ListVendors)

	// Invoice routes
	invoiceRoutes := tenant.Group("/invoices")
	{
		invoiceRoutes.POST("", invoiceHandler.CreateInvoice)
		invoiceRoutes.GET("", invoiceHandler.ListInvoices)
		invoiceRoutes.POST("/upload", invoiceHandler.UploadInvoices)
		invoiceRoutes.GET("/:invoiceId", invoiceHandler.GetInvoice)
		invoiceRoutes.DELETE("/:invoiceId", invoiceHandler.DeleteInvoice)
	}

	// Bank transaction routes
	tx := tenant.Group("/bank-transactions")
	tx.POST("/import", txHandler.Import)
	tx.POST("/upload", txHandler.Upload)
	tx.GET("", txHandler.ListTransactions)
	tx.GET("/:transactionId", txHandler.GetTransaction)

	// Reconciliation routes
	recon := tenant.Group("/reconcile")
	recon.POST("", reconHandler.Run)
	recon.GET("/runs", reconHandler.ListRuns)
	recon.GET("/explain", reconHandler.Explain)
	recon.GET("/matches", reconHandler.GetMatches)
	recon.GET("/matches/:matchId", reconHandler.GetMatch)
	recon.POST("/matches/:matchId/confirm", reconHandler.Confirm)
	recon.POST("/matches/:matchId/reject", reconHandler.Reject)
	recon.GET("/matches/:matchId/audit", reconHandler.AuditTrail)
}
