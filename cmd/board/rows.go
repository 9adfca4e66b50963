package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"catering/internal/models"
)

// board is what the terminal follows
type board struct {
	kind    string // kitchen, driver, customer or event
	subject string
}

// parseBoard reads kitchen, driver:<id>, customer:<id> or event:<token>
func parseBoard(s string) (board, error) {
	kind, subject, _ := strings.Cut(s, ":")
	switch kind {
	case "kitchen":
		return board{kind: kind}, nil
	case "driver", "customer":
		if _, err := strconv.ParseUint(subject, 10, 64); err != nil || subject == "0" {
			return board{}, fmt.Errorf("%s board needs a numeric id, got %q", kind, subject)
		}
	case "event":
		if subject == "" {
			return board{}, fmt.Errorf("event board needs the event token")
		}
	default:
		return board{}, fmt.Errorf("unknown board %q", kind)
	}
	return board{kind: kind, subject: subject}, nil
}

func (b board) path() string {
	switch b.kind {
	case "driver":
		return "/ws/drivers/" + b.subject
	case "customer":
		return "/ws/customers/" + b.subject
	case "event":
		return "/ws/events/" + b.subject
	}
	return "/ws/kitchen"
}

func (b board) title() string {
	switch b.kind {
	case "driver":
		return "Deliveries for driver " + b.subject
	case "customer":
		return "Orders for customer " + b.subject
	case "event":
		return "Reservations"
	}
	return "Kitchen board"
}

func (b board) columns() []table.Column {
	if b.kind == "event" {
		return []table.Column{
			{Title: "ID", Width: 6},
			{Title: "Table", Width: 8},
			{Title: "Seats", Width: 6},
			{Title: "Booked", Width: 16},
		}
	}
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Customer", Width: 20},
		{Title: "Fulfillment", Width: 16},
		{Title: "Status", Width: 11},
		{Title: "Driver", Width: 14},
		{Title: "Total", Width: 9},
		{Title: "Age", Width: 8},
	}
}

func orderRows(orders []models.Order, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(orders))
	for _, o := range orders {
		driver := "-"
		if o.DriverID != nil {
			driver = fmt.Sprintf("#%d %s", *o.DriverID, o.DriverStatus)
		}
		name := o.Customer.Name
		if o.IsCatering {
			name += " (catering)"
		}
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(o.ID), 10),
			name,
			string(o.Fulfillment),
			string(o.Status),
			driver,
			o.Total.StringFixed(2),
			age(now.Sub(o.CreatedAt)),
		})
	}
	return rows
}

func reservationRows(rs []models.Reservation) []table.Row {
	rows := make([]table.Row, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(r.ID), 10),
			strconv.FormatUint(uint64(r.TableID), 10),
			strconv.Itoa(r.SeatCount),
			r.CreatedAt.Local().Format("02 Jan 15:04"),
		})
	}
	return rows
}

func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

// selectedID parses the id column of a table row
func selectedID(row table.Row) (uint, bool) {
	if len(row) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(row[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
