package agenda

import (
	"time"

	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/calendar"
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashWarning FlashKind = "warning"
)

type Flash struct {
	Kind    FlashKind
	Message string
}

// BookingView is a booking joined with its band's display data.
type BookingView struct {
	booking.Booking
	Band bands.Band
}

func NewBookingView(b booking.Booking, registry *bands.Registry) BookingView {
	return BookingView{Booking: b, Band: registry.Lookup(b.Band)}
}

func NewBookingViews(rows []booking.Booking, registry *bands.Registry) []BookingView {
	views := make([]BookingView, len(rows))
	for i, row := range rows {
		views[i] = NewBookingView(row, registry)
	}
	return views
}

// FormData is the booking form's state; values are echoed back after a failed submit.
type FormData struct {
	Date    string // YYYY-MM-DD, as the date input expects
	Band    string
	Time    string
	MinDate string
	Errors  map[string]string
	Flash   *Flash

	CSRFToken string
}

type DebugInfo struct {
	Total    int
	Recent   []BookingView
	Pending  bool
	Policy   string
	LoadedAt time.Time
}

// MonthData drives the calendar grid and the month listing.
type MonthData struct {
	Month    calendar.Month
	Listing  []BookingView
	Registry *bands.Registry
	Years    []int
	Flash    *Flash
	Pending  bool
	// OOB marks the panel for an htmx out-of-band swap next to another fragment.
	OOB bool
}

type PageData struct {
	MonthData
	Form  FormData
	Bands []bands.Band
	Debug *DebugInfo
}
