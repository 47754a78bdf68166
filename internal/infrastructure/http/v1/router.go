// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"tillsync/internal/core/security"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/domain/documents"
	"tillsync/internal/domain/ledger"
	"tillsync/internal/infrastructure/http/v1/handlers"
	"tillsync/internal/infrastructure/http/v1/middleware"
	"tillsync/internal/session"
	"tillsync/pkg/logger"
)

// Sessions is what the router needs from session.Manager.
type Sessions interface {
	handlers.SessionSource
	middleware.Authenticator
}

var _ Sessions = (*session.Manager)(nil)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Sessions owns the single till session and its engine
	Sessions Sessions

	// DB is the local store, pinged by the readiness probe
	DB handlers.Pinger

	// Outbox lists queued remote writes
	Outbox handlers.OutboxLister

	// Audit reads and verifies the audit chain
	Audit handlers.AuditReader

	// Logger for request logging
	Logger *logger.Logger

	// Version reported by /health/info
	Version string

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Sessions, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		sessionHandler := handlers.NewSessionHandler(base, cfg.Sessions)
		v1.POST("/session/login", sessionHandler.Login)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.Sessions))

		protected.POST("/session/logout", sessionHandler.Logout)
		protected.GET("/session/me", sessionHandler.Me)

		registerLedgerRoutes(protected, base)
		registerCashDayRoutes(protected, base)
		registerSyncRoutes(protected, base, cfg)
	}

	return router
}

// registerLedgerRoutes registers documents, parties and goods.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler) {
	// --- DOCUMENTS ---
	RegisterResourceRoutes(rg.Group("/sales"), handlers.NewResourceHandler(base, handlers.ResourceOps[documents.Sale, ledger.SaleInput, ledger.SalePatch]{
		List:   (*ledger.Service).GetSales,
		Get:    (*ledger.Service).GetSale,
		Create: (*ledger.Service).AddSale,
		Update: (*ledger.Service).UpdateSale,
		Delete: (*ledger.Service).DeleteSale,
	}), security.PermissionRecord, security.PermissionEditLedger)

	RegisterResourceRoutes(rg.Group("/purchases"), handlers.NewResourceHandler(base, handlers.ResourceOps[documents.Purchase, ledger.PurchaseInput, ledger.PurchasePatch]{
		List:   (*ledger.Service).GetPurchases,
		Get:    (*ledger.Service).GetPurchase,
		Create: (*ledger.Service).AddPurchase,
		Update: (*ledger.Service).UpdatePurchase,
		Delete: (*ledger.Service).DeletePurchase,
	}), security.PermissionRecord, security.PermissionEditLedger)

	RegisterResourceRoutes(rg.Group("/cash-entries"), handlers.NewResourceHandler(base, handlers.ResourceOps[documents.CashEntry, ledger.CashEntryInput, ledger.CashEntryPatch]{
		List:   (*ledger.Service).GetCashEntries,
		Get:    (*ledger.Service).GetCashEntry,
		Create: (*ledger.Service).AddCashEntry,
		Update: (*ledger.Service).UpdateCashEntry,
		Delete: (*ledger.Service).DeleteCashEntry,
	}), security.PermissionRecord, security.PermissionEditLedger)

	// --- CATALOGS ---
	RegisterResourceRoutes(rg.Group("/goods"), handlers.NewResourceHandler(base, handlers.ResourceOps[catalog.Good, ledger.GoodInput, ledger.GoodPatch]{
		List:   (*ledger.Service).GetGoods,
		Get:    (*ledger.Service).GetGood,
		Create: (*ledger.Service).AddGood,
		Update: (*ledger.Service).UpdateGood,
		Delete: (*ledger.Service).DeleteGood,
	}), security.PermissionManageParty, security.PermissionManageParty)

	debtors := rg.Group("/debtors")
	RegisterResourceRoutes(debtors, handlers.NewResourceHandler(base, handlers.ResourceOps[catalog.Debtor, ledger.PartyInput, ledger.PartyPatch]{
		List:   (*ledger.Service).GetDebtors,
		Get:    (*ledger.Service).GetDebtor,
		Create: (*ledger.Service).AddDebtor,
		Update: (*ledger.Service).UpdateDebtor,
		Delete: (*ledger.Service).DeleteDebtor,
	}), security.PermissionManageParty, security.PermissionManageParty)

	creditors := rg.Group("/creditors")
	RegisterResourceRoutes(creditors, handlers.NewResourceHandler(base, handlers.ResourceOps[catalog.Creditor, ledger.PartyInput, ledger.PartyPatch]{
		List:   (*ledger.Service).GetCreditors,
		Get:    (*ledger.Service).GetCreditor,
		Create: (*ledger.Service).AddCreditor,
		Update: (*ledger.Service).UpdateCreditor,
		Delete: (*ledger.Service).DeleteCreditor,
	}), security.PermissionManageParty, security.PermissionManageParty)

	RegisterResourceRoutes(rg.Group("/suppliers"), handlers.NewResourceHandler(base, handlers.ResourceOps[catalog.Supplier, ledger.SupplierInput, ledger.SupplierPatch]{
		List:   (*ledger.Service).GetSuppliers,
		Get:    (*ledger.Service).GetSupplier,
		Create: (*ledger.Service).AddSupplier,
		Update: (*ledger.Service).UpdateSupplier,
		Delete: (*ledger.Service).DeleteSupplier,
	}), security.PermissionManageParty, security.PermissionManageParty)

	// --- SETTLEMENTS ---
	payments := handlers.NewPaymentHandler(base)
	debtors.POST("/:id/payments", middleware.RequirePermission(security.PermissionRecord), payments.DebtorPayment)
	debtors.PUT("/:id/repayment-date", middleware.RequirePermission(security.PermissionManageParty), payments.RepaymentDate)
	creditors.POST("/:id/payments", middleware.RequirePermission(security.PermissionRecord), payments.CreditorPayment)
}

// registerCashDayRoutes registers the cash-day state machine.
func registerCashDayRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler) {
	h := handlers.NewCashDayHandler(base)
	days := rg.Group("/cash-days")
	{
		days.GET("", h.List)
		days.GET("/export", h.Export)
		days.POST("/open", middleware.RequirePermission(security.PermissionOpenDay), h.Open)
		days.POST("/close", middleware.RequirePermission(security.PermissionCloseDay), h.Close)
		days.GET("/:date", h.Get)
		days.GET("/:date/expected", h.Expected)
		days.POST("/:date/reopen", middleware.RequirePermission(security.PermissionReopenDay), h.Reopen)
		days.POST("/:date/unlock", middleware.RequirePermission(security.PermissionReopenDay), h.Unlock)
	}
}

// registerSyncRoutes registers raw collections, engine controls and the audit chain.
func registerSyncRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	collections := handlers.NewCollectionHandler(base)
	colls := rg.Group("/collections")
	{
		colls.GET("/:name", collections.List)
		colls.GET("/:name/stream", collections.Stream)
		colls.PUT("/:name", middleware.RequirePermission(security.PermissionManageParty), collections.Replace)
	}

	sync := handlers.NewSyncHandler(base, cfg.Outbox, cfg.Audit)
	syncGroup := rg.Group("/sync")
	{
		syncGroup.GET("/status", sync.Status)
		syncGroup.POST("/drain", middleware.RequirePermission(security.PermissionSync), sync.Drain)
		syncGroup.POST("/resync", middleware.RequirePermission(security.PermissionSync), sync.Resync)
		syncGroup.GET("/outbox", middleware.RequirePermission(security.PermissionSync), sync.Outbox)
	}

	audit := rg.Group("/audit")
	{
		audit.POST("/verify", middleware.RequirePermission(security.PermissionSync), sync.Verify)
		audit.GET("/:collection/:id", sync.History)
	}
}
