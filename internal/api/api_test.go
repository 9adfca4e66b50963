package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering/internal/api"
	"catering/internal/database"
	"catering/internal/database/dbtest"
	"catering/internal/inventory"
	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/orders"
	"catering/internal/realtime"
	"catering/internal/reservations"
)

const secret = "test-secret"

type testServer struct {
	api   *api.KitchenAPI
	store *database.Store
	event *models.Event
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := dbtest.Open(t)
	require.NoError(t, store.Seed(context.Background()))

	logger := zap.NewNop()
	hub := realtime.NewHub(logger)
	ledger := inventory.NewLedger(store, logger, nil)
	svc := orders.NewService(store, logger, orders.WithSink(hub))
	alloc := reservations.NewAllocator(store, logger, reservations.WithSink(hub))

	k := api.NewKitchenAPI(api.Deps{
		Orders:       svc,
		Reservations: alloc,
		Ledger:       ledger,
		DB:           store,
		Hub:          hub,
		Monitor:      monitoring.NewMonitor(),
		Logger:       logger,
		JWTSecret:    secret,
	})

	event, err := store.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	return &testServer{api: k, store: store, event: event}
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok, err := api.SignToken(secret, userID, role, "", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.api.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func tableID(t *testing.T, event *models.Event, label string) uint {
	t.Helper()
	for _, o := range event.Objects {
		if o.Label == label {
			return o.ID
		}
	}
	t.Fatalf("no object %q", label)
	return 0
}

var deliveryOrder = map[string]interface{}{
	"items": []map[string]interface{}{
		{"product_id": 1, "product_name": "Tort", "quantity": 1, "unit_price": "80"},
	},
	"customer": map[string]interface{}{
		"name":    "Ana Pop",
		"phone":   "0712345678",
		"address": "Str. Memorandumului 1",
		"city":    "Cluj-Napoca",
	},
	"fulfillment": "delivery",
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "ok", body["status"])
	runtime, ok := body["runtime"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 0, runtime["live_subscribers"])
	assert.Contains(t, runtime, "uptime_seconds")
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders", token(t, 7, api.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders", token(t, 1, api.RoleKitchen), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCustomerOrderVisibility(t *testing.T) {
	s := newTestServer(t)
	owner := token(t, 7, api.RoleCustomer)

	w := s.do(t, http.MethodPost, "/api/v1/orders", owner, deliveryOrder)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, uint(7), *order.CustomerID)
	assert.Equal(t, "90", order.Total.String())

	path := "/api/v1/orders/" + itoa(order.ID)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, owner, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, token(t, 1, api.RoleKitchen), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, token(t, 8, api.RoleCustomer), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, token(t, 3, api.RoleDriver), nil).Code)

	mine := decode[[]models.Order](t, s.do(t, http.MethodGet, "/api/v1/customers/me/orders", owner, nil))
	assert.Len(t, mine, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/orders", token(t, 1, api.RoleKitchen), map[string]interface{}{
		"items":       []interface{}{},
		"customer":    map[string]string{"name": "Ana"},
		"fulfillment": "pickup",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryFlow(t *testing.T) {
	s := newTestServer(t)
	kitchen := token(t, 1, api.RoleKitchen)
	driver := token(t, 3, api.RoleDriver)

	order := decode[models.Order](t, s.do(t, http.MethodPost, "/api/v1/orders", kitchen, deliveryOrder))
	base := "/api/v1/orders/" + itoa(order.ID)

	w := s.do(t, http.MethodPost, base+"/transition", kitchen, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, base+"/transition", kitchen, map[string]string{"status": "preparing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/driver", kitchen, map[string]uint{"driver_id": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.DriverStatusAssigned, decode[models.Order](t, w).DriverStatus)

	w = s.do(t, http.MethodPost, base+"/transition", kitchen, map[string]string{"status": "delivering"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assigned := decode[[]models.Order](t, s.do(t, http.MethodGet, "/api/v1/drivers/me/orders", driver, nil))
	require.Len(t, assigned, 1)

	statusPath := "/api/v1/drivers/me/orders/" + itoa(order.ID) + "/status"
	w = s.do(t, http.MethodPost, statusPath, token(t, 4, api.RoleDriver), map[string]string{"status": "en_route"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, statusPath, driver, map[string]string{"status": "en_route"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, statusPath, driver, map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[models.Order](t, w)
	assert.Equal(t, models.OrderStatusCompleted, done.Status)
	assert.Equal(t, models.DriverStatusDelivered, done.DriverStatus)

	w = s.do(t, http.MethodPost, base+"/archive", kitchen, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPost, base+"/archive", token(t, 1, api.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[models.Order](t, w).Archived)
}

func TestPublicReservationCapacity(t *testing.T) {
	s := newTestServer(t)
	path := "/api/v1/public/events/" + s.event.Token + "/reservations"
	t1 := tableID(t, s.event, "T1")

	w := s.do(t, http.MethodPost, path, "", map[string]interface{}{
		"table_id": t1, "first_name": "Ion", "last_name": "Pop", "phone": "0712345678", "seat_count": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, path, "", map[string]interface{}{
		"table_id": t1, "first_name": "Maria", "last_name": "Ionescu", "phone": "0722222222", "seat_count": 2,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 1, body["remaining"])

	w = s.do(t, http.MethodPost, path, "", map[string]interface{}{
		"table_id": t1, "first_name": "Maria", "last_name": "Ionescu", "phone": "12345", "seat_count": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/public/events/"+s.event.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining":1`)

	w = s.do(t, http.MethodGet, "/api/v1/public/events/not-a-token", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaffReservationCancel(t *testing.T) {
	s := newTestServer(t)
	staff := token(t, 1, api.RoleKitchen)
	base := "/api/v1/events/" + itoa(s.event.ID)
	t2 := tableID(t, s.event, "T2")

	w := s.do(t, http.MethodPost, base+"/reservations", staff, map[string]interface{}{
		"table_id": t2, "first_name": "Ion", "last_name": "Pop", "phone": "0712345678", "seat_count": 6,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.Reservation](t, w)

	w = s.do(t, http.MethodPost, "/api/v1/reservations/"+itoa(booking.ID)+"/cancel", staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	live := decode[[]models.Reservation](t, s.do(t, http.MethodGet, base+"/reservations", staff, nil))
	assert.Empty(t, live)

	tables := decode[[]models.TableAvailability](t, s.do(t, http.MethodGet, base+"/availability", staff, nil))
	for _, tbl := range tables {
		if tbl.TableID == t2 {
			assert.Equal(t, 6, tbl.Remaining)
		}
	}
}

func TestDriverLiveRejectsOtherDriver(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/ws/drivers/3", token(t, 4, api.RoleDriver), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEventLiveStreamsReservations(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.api.Router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events/" + s.event.Token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m realtime.Message
	require.NoError(t, ws.ReadJSON(&m))
	assert.Equal(t, realtime.OpSynced, m.Op)

	w := s.do(t, http.MethodPost, "/api/v1/public/events/"+s.event.Token+"/reservations", "", map[string]interface{}{
		"table_id": tableID(t, s.event, "T3"), "first_name": "Ion", "last_name": "Pop", "phone": "0712345678", "seat_count": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, ws.ReadJSON(&m))
	assert.Equal(t, realtime.OpUpsert, m.Op)
	assert.Equal(t, realtime.EntityReservation, m.Entity)
	assert.NotContains(t, string(m.Data), "0712345678")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
