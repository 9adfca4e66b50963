package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"catering/internal/models"
)

// View is a client-side replica of a live view. Apply is idempotent and
// keeps the highest version seen per entity; removals leave a tombstone so
// a late upsert of an older version cannot bring the entity back.
type View struct {
	mu         sync.RWMutex
	entries    map[key]Message
	tombstones map[key]uint
	synced     bool
}

// NewView creates an empty replica
func NewView() *View {
	return &View{
		entries:    make(map[key]Message),
		tombstones: make(map[key]uint),
	}
}

// Apply folds one message into the view and reports whether it changed anything
func (v *View) Apply(m Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch m.Op {
	case OpSynced:
		changed := !v.synced
		v.synced = true
		return changed
	case OpUpsert:
		k := m.key()
		if dead, ok := v.tombstones[k]; ok && dead >= m.Version {
			return false
		}
		if cur, ok := v.entries[k]; ok && cur.Version >= m.Version {
			return false
		}
		delete(v.tombstones, k)
		v.entries[k] = m
		return true
	case OpRemove:
		k := m.key()
		if dead, ok := v.tombstones[k]; ok && dead >= m.Version {
			return false
		}
		if cur, ok := v.entries[k]; ok && cur.Version > m.Version {
			return false
		}
		v.tombstones[k] = m.Version
		_, existed := v.entries[k]
		delete(v.entries, k)
		return existed
	}
	return false
}

// Synced reports whether the connect snapshot has been fully applied
func (v *View) Synced() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.synced
}

// Reset clears the replica before a resync
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[key]Message)
	v.tombstones = make(map[key]uint)
	v.synced = false
}

// Len is the number of live entities
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// Get returns the latest message for an entity
func (v *View) Get(entity Entity, id uint) (Message, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m, ok := v.entries[key{entity, id}]
	return m, ok
}

// List returns the live entities of one kind ordered by id
func (v *View) List(entity Entity) []Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Message, 0, len(v.entries))
	for k, m := range v.entries {
		if k.entity == entity {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Orders decodes the live orders
func (v *View) Orders() ([]models.Order, error) {
	msgs := v.List(EntityOrder)
	orders := make([]models.Order, 0, len(msgs))
	for _, m := range msgs {
		var o models.Order
		if err := json.Unmarshal(m.Data, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Reservations decodes the live reservations
func (v *View) Reservations() ([]models.Reservation, error) {
	msgs := v.List(EntityReservation)
	rs := make([]models.Reservation, 0, len(msgs))
	for _, m := range msgs {
		var r models.Reservation
		if err := json.Unmarshal(m.Data, &r); err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}
