package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catering/internal/models"
	"catering/internal/orders"
)

func queryInt(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Query(name))
}

// CreateOrder places an order. Customers always order for themselves.
func (k *KitchenAPI) CreateOrder(c *gin.Context) {
	var in orders.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p := principal(c); p != nil && p.Role == RoleCustomer {
		id := p.UserID
		in.CustomerID = &id
	}

	order, err := k.orders.CreateOrder(c.Request.Context(), in)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders returns the live board (view=active, the default) or history
func (k *KitchenAPI) ListOrders(c *gin.Context) {
	var (
		list []models.Order
		err  error
	)
	switch view := c.DefaultQuery("view", "active"); view {
	case "active":
		list, err = k.orders.Active(c.Request.Context())
	case "history":
		limit, _ := queryInt(c, "limit")
		list, err = k.orders.History(c.Request.Context(), limit)
	default:
		err = models.Validationf("unknown view %q", view)
	}
	if err != nil {
		k.respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Order{}
	}
	c.JSON(http.StatusOK, list)
}

// GetOrder returns one order to staff, its customer or its driver
func (k *KitchenAPI) GetOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	order, err := k.orders.Get(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}

	p := principal(c)
	switch {
	case isStaff(p):
	case p.Role == RoleDriver && order.AssignedTo(p.UserID):
	case p.Role == RoleCustomer && order.CustomerID != nil && *order.CustomerID == p.UserID:
	default:
		// hide the order's existence from other callers
		k.respondError(c, models.NotFoundf("order %d", id))
		return
	}
	c.JSON(http.StatusOK, order)
}

type transitionRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (k *KitchenAPI) TransitionOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := k.orders.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (k *KitchenAPI) SendBack(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	order, err := k.orders.SendBack(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type assignDriverRequest struct {
	DriverID uint `json:"driver_id" binding:"required"`
}

func (k *KitchenAPI) AssignDriver(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	var req assignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := k.orders.AssignDriver(c.Request.Context(), id, req.DriverID)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (k *KitchenAPI) ArchiveOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	order, err := k.orders.Archive(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (k *KitchenAPI) ArchiveDay(c *gin.Context) {
	n, err := k.orders.ArchiveDay(c.Request.Context())
	if k.monitor != nil {
		k.monitor.RecordArchiveRun(k.orders.Now(), n, err)
	}
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": n})
}

func (k *KitchenAPI) DriverOrders(c *gin.Context) {
	list, err := k.orders.DriverOrders(c.Request.Context(), principal(c).UserID)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type driverStatusRequest struct {
	Status models.DriverStatus `json:"status" binding:"required"`
}

// UpdateDriverStatus lets the assigned driver report en_route or delivered
func (k *KitchenAPI) UpdateDriverStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	var req driverStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := k.orders.UpdateDriverStatus(c.Request.Context(), id, principal(c).UserID, req.Status)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (k *KitchenAPI) CustomerOrders(c *gin.Context) {
	list, err := k.orders.CustomerOrders(c.Request.Context(), principal(c).UserID)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
