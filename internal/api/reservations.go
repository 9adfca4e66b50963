package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catering/internal/models"
	"catering/internal/reservations"
)

type eventRequest struct {
	HallID   uint                  `json:"hall_id" binding:"required"`
	Name     string                `json:"name" binding:"required"`
	StartsAt time.Time             `json:"starts_at"`
	Objects  []models.LayoutObject `json:"objects"`
}

// CreateEvent publishes a floor plan and returns it with its guest token
func (k *KitchenAPI) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := k.alloc.CreateEvent(c.Request.Context(), &models.Event{
		HallID:   req.HallID,
		Name:     req.Name,
		StartsAt: req.StartsAt,
		Objects:  req.Objects,
	})
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (k *KitchenAPI) GetEvent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	event, err := k.alloc.Event(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (k *KitchenAPI) GetAvailability(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	tables, err := k.alloc.Availability(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (k *KitchenAPI) ListReservations(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	list, err := k.alloc.Reservations(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	c.JSON(http.StatusOK, list)
}

type reserveRequest struct {
	TableID   uint   `json:"table_id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	SeatCount int    `json:"seat_count"`
}

// Reserve books seats on behalf of a guest
func (k *KitchenAPI) Reserve(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guest, err := reservations.NewGuest(req.FirstName, req.LastName, req.Phone)
	if err != nil {
		k.respondError(c, err)
		return
	}

	r, err := k.alloc.Reserve(c.Request.Context(), id, req.TableID, guest, req.SeatCount)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (k *KitchenAPI) CancelReservation(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return
	}
	marker, err := k.alloc.Cancel(c.Request.Context(), id)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marker)
}

type publicEvent struct {
	Event  *models.Event              `json:"event"`
	Tables []models.TableAvailability `json:"tables"`
}

// GetPublicEvent shows guests the floor plan and the seats left per table
func (k *KitchenAPI) GetPublicEvent(c *gin.Context) {
	ctx := c.Request.Context()
	event, err := k.alloc.EventByToken(ctx, c.Param("token"))
	if err != nil {
		k.respondError(c, err)
		return
	}
	tables, err := k.alloc.Availability(ctx, event.ID)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicEvent{Event: event, Tables: tables})
}

func (k *KitchenAPI) ReserveByToken(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guest, err := reservations.NewGuest(req.FirstName, req.LastName, req.Phone)
	if err != nil {
		k.respondError(c, err)
		return
	}

	r, err := k.alloc.ReserveByToken(c.Request.Context(), c.Param("token"), req.TableID, guest, req.SeatCount)
	if err != nil {
		k.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}
