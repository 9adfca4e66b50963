package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"catering/internal/models"
)

func TestRecorderConcurrentChanges(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(id uint) {
			defer wg.Done()
			r.OrderChanged(ctx, &models.Order{ID: id})
		}(uint(i))
		go func(id uint) {
			defer wg.Done()
			r.ReservationChanged(ctx, &models.Reservation{ID: id})
		}(uint(i))
	}
	wg.Wait()

	assert.Len(t, r.Orders(), 50)
	assert.Len(t, r.Reservations(), 50)
}

func TestRecorderReturnsCopies(t *testing.T) {
	r := &Recorder{}
	r.OrderChanged(context.Background(), &models.Order{ID: 1})

	got := r.Orders()
	got[0].ID = 99
	assert.Equal(t, uint(1), r.Orders()[0].ID)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, Nop{}, b}.ReservationChanged(context.Background(), &models.Reservation{ID: 3})

	assert.Len(t, a.Reservations(), 1)
	assert.Len(t, b.Reservations(), 1)
}
