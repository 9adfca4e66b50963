package database

import (
	"context"

	"github.com/jinzhu/gorm"

	"catering/internal/models"
)

const occupiedSeatsSQL = `SELECT COALESCE(SUM(r.seat_count), 0) FROM reservations r
WHERE r.table_id = ? AND r.status = ?
AND NOT EXISTS (SELECT 1 FROM reservations c WHERE c.cancels_id = r.id)`

const occupiedByTableSQL = `SELECT r.table_id, COALESCE(SUM(r.seat_count), 0) FROM reservations r
WHERE r.event_id = ? AND r.status = ?
AND NOT EXISTS (SELECT 1 FROM reservations c WHERE c.cancels_id = r.id)
GROUP BY r.table_id`

func occupiedSeats(db *gorm.DB, tableID uint) (int, error) {
	var total int
	err := db.Raw(occupiedSeatsSQL, tableID, models.ReservationConfirmed).Row().Scan(&total)
	return total, err
}

// CreateHall stores a hall definition
func (s *Store) CreateHall(ctx context.Context, hall *models.Hall) error {
	return s.db.Create(hall).Error
}

// CreateEvent stores an event together with its floor-plan objects
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
}

// GetEvent loads an event and its layout
func (s *Store) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := s.db.Preload("Objects").Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err, "event %d", id)
	}
	return &event, nil
}

// GetEventByToken resolves a guest access token
func (s *Store) GetEventByToken(ctx context.Context, token string) (*models.Event, error) {
	var event models.Event
	if err := s.db.Preload("Objects").Where("token = ?", token).First(&event).Error; err != nil {
		return nil, notFound(err, "event")
	}
	return &event, nil
}

// GetReservation loads one reservation row
func (s *Store) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.db.Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFound(err, "reservation %d", id)
	}
	return &r, nil
}

// CommitReservation locks the table, recounts its occupied seats, lets admit
// accept or reject the booking, and inserts r, all in one transaction
func (s *Store) CommitReservation(ctx context.Context, r *models.Reservation, admit func(table *models.LayoutObject, occupied int) error) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var table models.LayoutObject
		err := s.forUpdate(tx).Where("id = ? AND event_id = ?", r.TableID, r.EventID).First(&table).Error
		if err != nil {
			return notFound(err, "table %d in event %d", r.TableID, r.EventID)
		}

		occupied, err := occupiedSeats(tx, table.ID)
		if err != nil {
			return err
		}
		if err := admit(&table, occupied); err != nil {
			return err
		}
		return tx.Create(r).Error
	})
}

// CommitCancellation inserts a cancellation marker for a confirmed reservation.
// If one already exists it is returned with created=false.
func (s *Store) CommitCancellation(ctx context.Context, reservationID uint) (marker *models.Reservation, created bool, err error) {
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		var original models.Reservation
		if err := tx.Where("id = ?", reservationID).First(&original).Error; err != nil {
			return notFound(err, "reservation %d", reservationID)
		}
		if original.Status != models.ReservationConfirmed {
			return models.Validationf("reservation %d is not a booking", reservationID)
		}

		var table models.LayoutObject
		if err := s.forUpdate(tx).Where("id = ?", original.TableID).First(&table).Error; err != nil {
			return notFound(err, "table %d", original.TableID)
		}

		var existing models.Reservation
		err := tx.Where("cancels_id = ?", original.ID).First(&existing).Error
		if err == nil {
			marker = &existing
			return nil
		}
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}

		id := original.ID
		marker = &models.Reservation{
			EventID:    original.EventID,
			TableID:    original.TableID,
			GuestName:  original.GuestName,
			GuestPhone: original.GuestPhone,
			SeatCount:  original.SeatCount,
			Status:     models.ReservationCancelled,
			CancelsID:  &id,
		}
		created = true
		return tx.Create(marker).Error
	})
	if err != nil {
		return nil, false, err
	}
	return marker, created, nil
}

// OccupiedSeats sums the live bookings on a table
func (s *Store) OccupiedSeats(ctx context.Context, tableID uint) (int, error) {
	return occupiedSeats(s.db, tableID)
}

// OccupiedByTable sums the live bookings of every table in an event
func (s *Store) OccupiedByTable(ctx context.Context, eventID uint) (map[uint]int, error) {
	rows, err := s.db.Raw(occupiedByTableSQL, eventID, models.ReservationConfirmed).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[uint]int)
	for rows.Next() {
		var tableID uint
		var seats int
		if err := rows.Scan(&tableID, &seats); err != nil {
			return nil, err
		}
		occupied[tableID] = seats
	}
	return occupied, rows.Err()
}

// ListReservations returns every row for an event, bookings and cancellations alike
func (s *Store) ListReservations(ctx context.Context, eventID uint) ([]models.Reservation, error) {
	var rs []models.Reservation
	if err := s.db.Where("event_id = ?", eventID).Order("id").Find(&rs).Error; err != nil {
		return nil, err
	}
	return rs, nil
}
