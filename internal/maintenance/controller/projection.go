package controller

import (
	"sort"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/models"
)

// Card is a request as shown on the board.
type Card struct {
	Request *models.MaintenanceRequest
	Overdue bool
}

type Column struct {
	Status models.Status
	Cards  []Card
}

// Board holds one column per status, in lifecycle order.
type Board struct {
	Columns []Column
}

// CalendarDay groups the preventive requests scheduled on Date.
type CalendarDay struct {
	Date     time.Time
	Requests []*models.MaintenanceRequest
}

type Calendar struct {
	Month time.Time
	Days  []CalendarDay
}

// BuildBoard splits requests into status columns, keeping their order.
func BuildBoard(requests []*models.MaintenanceRequest, now time.Time) *Board {
	board := &Board{Columns: make([]Column, 0, len(models.Statuses))}
	for _, status := range models.Statuses {
		column := Column{Status: status, Cards: []Card{}}
		for _, req := range ByStatus(requests, status) {
			column.Cards = append(column.Cards, Card{Request: req, Overdue: IsOverdue(req, now)})
		}
		board.Columns = append(board.Columns, column)
	}
	return board
}

// ByStatus keeps the requests whose status is exactly status, in input order.
func ByStatus(requests []*models.MaintenanceRequest, status models.Status) []*models.MaintenanceRequest {
	out := []*models.MaintenanceRequest{}
	for _, req := range requests {
		if req.Status == status {
			out = append(out, req)
		}
	}
	return out
}

// ByMonth keeps the preventive requests scheduled between monthStart and
// monthEnd, both days included, and groups them by day in date order.
// Requests within a day keep their input order.
func ByMonth(requests []*models.MaintenanceRequest, monthStart, monthEnd time.Time) []CalendarDay {
	start, end := calendarDay(monthStart), calendarDay(monthEnd)
	byDay := map[time.Time][]*models.MaintenanceRequest{}
	for _, req := range requests {
		if req.RequestType != models.Preventive || req.ScheduledDate == nil {
			continue
		}
		day := calendarDay(req.ScheduledDate.UTC())
		if day.Before(start) || day.After(end) {
			continue
		}
		byDay[day] = append(byDay[day], req)
	}

	days := make([]CalendarDay, 0, len(byDay))
	for day, reqs := range byDay {
		days = append(days, CalendarDay{Date: day, Requests: reqs})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}
