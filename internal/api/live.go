package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"catering/internal/realtime"
)

// KitchenLive streams the kitchen board
func (k *KitchenAPI) KitchenLive(c *gin.Context) {
	k.hub.ServeWS(c.Writer, c.Request, realtime.Subscription{Role: realtime.RoleKitchen},
		func(ctx context.Context) ([]realtime.Message, error) {
			list, err := k.orders.Active(ctx)
			if err != nil {
				return nil, err
			}
			return realtime.OrderMessages(list), nil
		})
}

// DriverLive streams one driver's orders to that driver or to staff
func (k *KitchenAPI) DriverLive(c *gin.Context) {
	id, ok := k.ownSubject(c, RoleDriver)
	if !ok {
		return
	}
	k.hub.ServeWS(c.Writer, c.Request, realtime.Subscription{Role: realtime.RoleDriver, SubjectID: id},
		func(ctx context.Context) ([]realtime.Message, error) {
			list, err := k.orders.DriverOrders(ctx, id)
			if err != nil {
				return nil, err
			}
			return realtime.OrderMessages(list), nil
		})
}

// CustomerLive streams one customer's orders to that customer or to staff
func (k *KitchenAPI) CustomerLive(c *gin.Context) {
	id, ok := k.ownSubject(c, RoleCustomer)
	if !ok {
		return
	}
	k.hub.ServeWS(c.Writer, c.Request, realtime.Subscription{Role: realtime.RoleCustomer, SubjectID: id},
		func(ctx context.Context) ([]realtime.Message, error) {
			list, err := k.orders.CustomerOrders(ctx, id)
			if err != nil {
				return nil, err
			}
			return realtime.OrderMessages(list), nil
		})
}

// EventLive streams an event's live reservations to anyone holding its token
func (k *KitchenAPI) EventLive(c *gin.Context) {
	event, err := k.alloc.EventByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		k.respondError(c, err)
		return
	}
	k.hub.ServeWS(c.Writer, c.Request, realtime.Subscription{Role: realtime.RoleEvent, SubjectID: event.ID},
		func(ctx context.Context) ([]realtime.Message, error) {
			list, err := k.alloc.Reservations(ctx, event.ID)
			if err != nil {
				return nil, err
			}
			return realtime.ReservationMessages(list), nil
		})
}

// ownSubject resolves the :id path parameter, which must be the caller's own
// id unless the caller is staff
func (k *KitchenAPI) ownSubject(c *gin.Context, role string) (uint, bool) {
	id, err := idParam(c, "id")
	if err != nil {
		k.respondError(c, err)
		return 0, false
	}
	p := principal(c)
	if isStaff(p) || (p.Role == role && p.UserID == id) {
		return id, true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return 0, false
}
