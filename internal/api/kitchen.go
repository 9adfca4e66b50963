// Package api exposes the order, reservation and inventory services over
// HTTP and serves the live views over websockets.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"catering/internal/inventory"
	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/orders"
	"catering/internal/realtime"
	"catering/internal/reservations"
)

// Database is the read side the handlers query directly
type Database interface {
	Ping() error
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	StockLevel(ctx context.Context, itemID uint) (*models.StockLevel, error)
	TransactionsForOrder(ctx context.Context, orderID uint) ([]models.InventoryTransaction, error)
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Deps are the services the API serves
type Deps struct {
	Orders       *orders.Service
	Reservations *reservations.Allocator
	Ledger       *inventory.Ledger
	DB           Database
	Hub          *realtime.Hub
	Monitor      *monitoring.Monitor
	Logger       *zap.Logger
	JWTSecret    string
}

// KitchenAPI is the HTTP surface of the service
type KitchenAPI struct {
	Router  *gin.Engine
	orders  *orders.Service
	alloc   *reservations.Allocator
	ledger  *inventory.Ledger
	db      Database
	hub     *realtime.Hub
	monitor *monitoring.Monitor
	logger  *zap.Logger
	secret  string
}

// NewKitchenAPI creates the router and registers every route
func NewKitchenAPI(deps Deps) *KitchenAPI {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	k := &KitchenAPI{
		Router:  router,
		orders:  deps.Orders,
		alloc:   deps.Reservations,
		ledger:  deps.Ledger,
		db:      deps.DB,
		hub:     deps.Hub,
		monitor: deps.Monitor,
		logger:  deps.Logger,
		secret:  deps.JWTSecret,
	}
	k.setupRoutes()
	return k
}

// setupRoutes configures all API endpoints
func (k *KitchenAPI) setupRoutes() {
	k.Router.GET("/health", k.Health)

	public := k.Router.Group("/api/v1/public")
	{
		public.GET("/events/:token", k.GetPublicEvent)
		public.POST("/events/:token/reservations", k.ReserveByToken)
	}
	k.Router.GET("/ws/events/:token", k.EventLive)

	authed := Authenticate(k.secret)
	staff := RequireRole(RoleAdmin, RoleKitchen)
	admin := RequireRole(RoleAdmin)

	v1 := k.Router.Group("/api/v1", authed)
	{
		// Orders
		v1.POST("/orders", RequireRole(RoleAdmin, RoleKitchen, RoleCustomer), k.CreateOrder)
		v1.GET("/orders", staff, k.ListOrders)
		v1.GET("/orders/:id", k.GetOrder)
		v1.POST("/orders/:id/transition", staff, k.TransitionOrder)
		v1.POST("/orders/:id/send-back", staff, k.SendBack)
		v1.POST("/orders/:id/driver", staff, k.AssignDriver)
		v1.POST("/orders/:id/archive", admin, k.ArchiveOrder)
		v1.POST("/orders/archive-day", admin, k.ArchiveDay)
		v1.GET("/orders/:id/consumption", staff, k.OrderConsumption)

		// Drivers and customers act on their own orders
		v1.GET("/drivers/me/orders", RequireRole(RoleDriver), k.DriverOrders)
		v1.POST("/drivers/me/orders/:id/status", RequireRole(RoleDriver), k.UpdateDriverStatus)
		v1.GET("/customers/me/orders", RequireRole(RoleCustomer), k.CustomerOrders)

		// Inventory
		v1.GET("/inventory", staff, k.GetInventory)
		v1.GET("/inventory/:id", staff, k.GetStockLevel)
		v1.POST("/inventory/:id/receipts", admin, k.RecordReceipt)

		// Events and reservations
		v1.POST("/events", admin, k.CreateEvent)
		v1.GET("/events/:id", staff, k.GetEvent)
		v1.GET("/events/:id/availability", staff, k.GetAvailability)
		v1.GET("/events/:id/reservations", staff, k.ListReservations)
		v1.POST("/events/:id/reservations", staff, k.Reserve)
		v1.POST("/reservations/:id/cancel", staff, k.CancelReservation)

		v1.GET("/audit", admin, k.ListAudit)
	}

	ws := k.Router.Group("/ws", authed)
	{
		ws.GET("/kitchen", staff, k.KitchenLive)
		ws.GET("/drivers/:id", k.DriverLive)
		ws.GET("/customers/:id", k.CustomerLive)
	}
}

// Health reports database reachability and the runtime snapshot
func (k *KitchenAPI) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := k.db.Ping(); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	body := gin.H{"status": status}
	if k.monitor != nil {
		k.monitor.RecordMetric("live_subscribers", k.hub.Subscribers())
		body["runtime"] = k.monitor.GetMetrics()
	}
	c.JSON(code, body)
}

// Inventory handlers

func (k *KitchenAPI) GetInventory(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := k.db.ListItems(ctx)
	if err != nil {
		k.respondError(c, err)
		return
	}

	levels := make([]*models.StockLevel, 0, len(items))
	for _, item := range items {
		level, err := k.db.StockLevel(ctx, item.ID)
		if err != nil {
			k.respondError(c, err)
			return
		}
		levels = append(levels, level)
	}
	c.JSON(http.StatusOK, levels)
}

func (k *KitchenAPI) GetStockLevel(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	level, err := k.db.StockLevel(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

type receiptRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
}

func (k *KitchenAPI) RecordReceipt(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "Stock receipt"
	}

	txn, err := k.ledger.RecordReceipt(c.Request.Context(), id, req.Quantity, req.Reason)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (k *KitchenAPI) OrderConsumption(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	txns, err := k.db.TransactionsForOrder(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (k *KitchenAPI) ListAudit(c *gin.Context) {
	limit := 100
	if v, err := queryInt(c, "limit"); err == nil && v > 0 {
		limit = v
	}
	entries, err := k.db.ListAudit(c.Request.Context(), limit)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
