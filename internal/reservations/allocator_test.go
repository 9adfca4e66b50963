package reservations_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering/internal/database"
	"catering/internal/database/dbtest"
	"catering/internal/events"
	"catering/internal/models"
	"catering/internal/reservations"
)

var (
	ana = reservations.Guest{Name: "Ana Pop", Phone: "0712345678"}
	ion = reservations.Guest{Name: "Ion Rus", Phone: "0798765432"}
)

type fixture struct {
	store *database.Store
	alloc *reservations.Allocator
	sink  *events.Recorder
	event *models.Event
}

// newFixture creates an event with a 4-seat table, a table without a
// configured capacity and a stage
func newFixture(t *testing.T, opts ...reservations.Option) *fixture {
	t.Helper()
	store := dbtest.Open(t)
	ctx := context.Background()

	hall := &models.Hall{Name: "Main hall", Width: 800, Height: 600}
	require.NoError(t, store.CreateHall(ctx, hall))

	sink := &events.Recorder{}
	alloc := reservations.NewAllocator(store, zap.NewNop(), append([]reservations.Option{reservations.WithSink(sink)}, opts...)...)

	event, err := alloc.CreateEvent(ctx, &models.Event{
		HallID: hall.ID,
		Name:   "Gala",
		Objects: []models.LayoutObject{
			{Kind: models.LayoutTable, Label: "T1", Capacity: 4},
			{Kind: models.LayoutTable, Label: "T2"},
			{Kind: models.LayoutStage, Label: "Stage", Capacity: 50},
		},
	})
	require.NoError(t, err)
	require.Len(t, event.Objects, 3)
	return &fixture{store: store, alloc: alloc, sink: sink, event: event}
}

func (f *fixture) table(label string) uint {
	for _, o := range f.event.Objects {
		if o.Label == label {
			return o.ID
		}
	}
	panic("no object " + label)
}

func TestReserveUntilFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.table("T1")

	r, err := f.alloc.Reserve(ctx, f.event.ID, t1, ana, 3)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, r.Status)
	remaining, err := f.alloc.Remaining(ctx, f.event.ID, t1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = f.alloc.Reserve(ctx, f.event.ID, t1, ion, 2)
	require.ErrorIs(t, err, models.ErrCapacityExceeded)
	var capErr *models.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 1, capErr.Remaining)
	assert.Equal(t, 2, capErr.Requested)

	_, err = f.alloc.Reserve(ctx, f.event.ID, t1, ion, 1)
	require.NoError(t, err)
	remaining, err = f.alloc.Remaining(ctx, f.event.ID, t1)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	assert.Len(t, f.sink.Reservations(), 2)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.table("T1")

	tests := []struct {
		name  string
		guest reservations.Guest
		seats int
	}{
		{"zero seats", ana, 0},
		{"negative seats", ana, -2},
		{"missing name", reservations.Guest{Phone: "0712345678"}, 1},
		{"landline", reservations.Guest{Name: "Ana Pop", Phone: "0264123456"}, 1},
		{"short phone", reservations.Guest{Name: "Ana Pop", Phone: "071234"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.alloc.Reserve(ctx, f.event.ID, t1, tt.guest, tt.seats)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	_, err := f.alloc.Reserve(ctx, f.event.ID, f.table("Stage"), ana, 1)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.alloc.Reserve(ctx, f.event.ID, 9999, ana, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.alloc.Reserve(ctx, f.event.ID+1, t1, ana, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	live, err := f.alloc.Reservations(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestTableWithoutCapacityDefaultsToTen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t2 := f.table("T2")

	_, err := f.alloc.Reserve(ctx, f.event.ID, t2, ana, models.DefaultTableCapacity)
	require.NoError(t, err)
	_, err = f.alloc.Reserve(ctx, f.event.ID, t2, ion, 1)
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
}

func TestConcurrentReservationsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.table("T1")

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.alloc.Reserve(ctx, f.event.ID, t1, ana, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
				return
			}
			assert.ErrorIs(t, err, models.ErrCapacityExceeded)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, confirmed)
	assert.Equal(t, attempts-4, rejected)
	assert.Len(t, f.sink.Reservations(), 4)

	occupied, err := f.store.OccupiedSeats(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, 4, occupied)
}

func TestCancelFreesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.table("T1")

	r, err := f.alloc.Reserve(ctx, f.event.ID, t1, ana, 4)
	require.NoError(t, err)
	_, err = f.alloc.Reserve(ctx, f.event.ID, t1, ion, 1)
	require.ErrorIs(t, err, models.ErrCapacityExceeded)

	marker, err := f.alloc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, marker.Status)
	require.NotNil(t, marker.CancelsID)
	assert.Equal(t, r.ID, *marker.CancelsID)

	again, err := f.alloc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, marker.ID, again.ID)

	original, err := f.store.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, original.Status)
	assert.Equal(t, 4, original.SeatCount)

	_, err = f.alloc.Reserve(ctx, f.event.ID, t1, ion, 4)
	require.NoError(t, err)

	_, err = f.alloc.Cancel(ctx, marker.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.alloc.Cancel(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	live, err := f.alloc.Reservations(ctx, f.event.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Ion Rus", live[0].GuestName)
}

func TestReserveByToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NotEmpty(t, f.event.Token)

	r, err := f.alloc.ReserveByToken(ctx, f.event.Token, f.table("T1"), ana, 2)
	require.NoError(t, err)
	assert.Equal(t, f.event.ID, r.EventID)

	_, err = f.alloc.ReserveByToken(ctx, "not-a-token", f.table("T1"), ana, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.alloc.ReserveByToken(ctx, "7f1c6c44-2c7f-4f43-9a0e-2d8c8f0a5b11", f.table("T1"), ana, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alloc.Reserve(ctx, f.event.ID, f.table("T1"), ana, 3)
	require.NoError(t, err)
	_, err = f.alloc.Reserve(ctx, f.event.ID, f.table("T2"), ion, 2)
	require.NoError(t, err)

	tables, err := f.alloc.Availability(ctx, f.event.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, models.TableAvailability{TableID: f.table("T1"), Label: "T1", Capacity: 4, Reserved: 3, Remaining: 1}, tables[0])
	assert.Equal(t, models.TableAvailability{TableID: f.table("T2"), Label: "T2", Capacity: 10, Reserved: 2, Remaining: 8}, tables[1])
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, eventID uint) ([]models.TableAvailability, bool) {
	args := m.Called(ctx, eventID)
	tables, _ := args.Get(0).([]models.TableAvailability)
	return tables, args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, eventID uint, tables []models.TableAvailability) {
	m.Called(ctx, eventID, tables)
}

func (m *mockCache) Invalidate(ctx context.Context, eventID uint) {
	m.Called(ctx, eventID)
}

func TestAvailabilityCache(t *testing.T) {
	cache := new(mockCache)
	f := newFixture(t, reservations.WithCache(cache))
	ctx := context.Background()

	cache.On("Get", mock.Anything, f.event.ID).Return(nil, false).Once()
	cache.On("Set", mock.Anything, f.event.ID, mock.Anything).Once()
	tables, err := f.alloc.Availability(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	cached := []models.TableAvailability{{TableID: 1, Capacity: 4, Remaining: 4}}
	cache.On("Get", mock.Anything, f.event.ID).Return(cached, true).Once()
	tables, err = f.alloc.Availability(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, tables)

	cache.On("Invalidate", mock.Anything, f.event.ID).Once()
	_, err = f.alloc.Reserve(ctx, f.event.ID, f.table("T1"), ana, 1)
	require.NoError(t, err)

	cache.AssertExpectations(t)
}

func TestNewGuest(t *testing.T) {
	g, err := reservations.NewGuest(" Ana ", "Pop", "0712345678")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", g.Name)
	assert.NoError(t, g.Validate())

	_, err = reservations.NewGuest("Ana", "", "0712345678")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alloc.CreateEvent(ctx, &models.Event{HallID: 1})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.alloc.CreateEvent(ctx, &models.Event{Name: "No hall"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.alloc.CreateEvent(ctx, &models.Event{HallID: 1, Name: "Bad", Objects: []models.LayoutObject{{Kind: models.LayoutTable, Capacity: -1}}})
	assert.ErrorIs(t, err, models.ErrValidation)

	other, err := f.alloc.CreateEvent(ctx, &models.Event{HallID: 1, Name: "Second"})
	require.NoError(t, err)
	assert.NotEqual(t, f.event.Token, other.Token)
}

func TestLive(t *testing.T) {
	one, two := uint(1), uint(2)
	rows := []models.Reservation{
		{ID: 1, Status: models.ReservationConfirmed},
		{ID: 2, Status: models.ReservationConfirmed},
		{ID: 3, Status: models.ReservationConfirmed},
		{ID: 4, Status: models.ReservationCancelled, CancelsID: &one},
		{ID: 5, Status: models.ReservationCancelled, CancelsID: &two},
	}
	live := reservations.Live(rows)
	require.Len(t, live, 1)
	assert.Equal(t, uint(3), live[0].ID)
}

// memCache is a working in-process availability cache
type memCache struct {
	mu     sync.Mutex
	tables map[uint][]models.TableAvailability
}

func newMemCache() *memCache {
	return &memCache{tables: make(map[uint][]models.TableAvailability)}
}

func (c *memCache) Get(_ context.Context, eventID uint) ([]models.TableAvailability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tables, ok := c.tables[eventID]
	return tables, ok
}

func (c *memCache) Set(_ context.Context, eventID uint, tables []models.TableAvailability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[eventID] = tables
}

func (c *memCache) Invalidate(_ context.Context, eventID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, eventID)
}

// commitDuringRead runs afterRead once, right after the occupancy query
// returned and before the caller can use the result
type commitDuringRead struct {
	*database.Store
	afterRead func()
}

func (s *commitDuringRead) OccupiedByTable(ctx context.Context, eventID uint) (map[uint]int, error) {
	occupied, err := s.Store.OccupiedByTable(ctx, eventID)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return occupied, err
}

func TestAvailabilityNotCachedAcrossConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	store := &commitDuringRead{Store: dbtest.Open(t)}
	hall := &models.Hall{Name: "Main hall"}
	require.NoError(t, store.CreateHall(ctx, hall))

	cache := newMemCache()
	alloc := reservations.NewAllocator(store, zap.NewNop(), reservations.WithCache(cache))
	event, err := alloc.CreateEvent(ctx, &models.Event{
		HallID:  hall.ID,
		Name:    "Gala",
		Objects: []models.LayoutObject{{Kind: models.LayoutTable, Label: "T1", Capacity: 4}},
	})
	require.NoError(t, err)
	t1 := event.Objects[0].ID

	store.afterRead = func() {
		_, err := alloc.Reserve(ctx, event.ID, t1, ana, 3)
		require.NoError(t, err)
	}

	// the in-flight read may report the old balance, but must not keep it
	_, err = alloc.Availability(ctx, event.ID)
	require.NoError(t, err)
	_, cached := cache.Get(ctx, event.ID)
	assert.False(t, cached)

	remaining, err := alloc.Remaining(ctx, event.ID, t1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, cached = cache.Get(ctx, event.ID)
	assert.True(t, cached)
	remaining, err = alloc.Remaining(ctx, event.ID, t1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}
