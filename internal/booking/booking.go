// Package booking holds the rehearsal agenda's working set: conflict-checked
// additions, day and month queries, and delete by stable id.
package booking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/store"
)

// rowNamespace seeds name-based ids for rows saved before ids existed.
var rowNamespace = uuid.MustParse("3b8e4a8e-52b1-4c55-9a43-2f1f6f0f7a10")

type Booking struct {
	ID   string     `json:"id"`
	Date Date       `json:"date"`
	Band bands.Code `json:"band"`
	Time Clock      `json:"time"`
}

// ContentID derives a deterministic id from the booking's content.
func ContentID(date Date, band bands.Code, t Clock) string {
	key := strings.Join([]string{date.String(), string(band), string(t)}, "|")
	return uuid.NewSHA1(rowNamespace, []byte(key)).String()
}

// Row converts the booking to its persisted form.
func (b Booking) Row() store.Row {
	return store.Row{
		ID:   b.ID,
		Date: b.Date.DayFirst(),
		Band: string(b.Band),
		Time: string(b.Time),
	}
}

// FromRow parses a persisted row. Rows without an id get a content-derived one.
func FromRow(index int, row store.Row) (Booking, error) {
	date, err := ParseDate(row.Date)
	if err != nil {
		return Booking{}, &MalformedRowError{Index: index, Field: "date", Value: row.Date, Err: err}
	}
	band := bands.NormalizeCode(row.Band)
	if band == "" {
		return Booking{}, &MalformedRowError{Index: index, Field: "band", Value: row.Band, Err: fmt.Errorf("band is required")}
	}
	t, err := ParseClock(row.Time)
	if err != nil {
		return Booking{}, &MalformedRowError{Index: index, Field: "time", Value: row.Time, Err: err}
	}

	id := strings.TrimSpace(row.ID)
	if id == "" {
		id = ContentID(date, band, t)
	}
	return Booking{ID: id, Date: date, Band: band, Time: t}, nil
}

// SortByDateTime orders bookings by (date, time) ascending, keeping the
// relative order of equal keys.
func SortByDateTime(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if c := bookings[i].Date.Compare(bookings[j].Date); c != 0 {
			return c < 0
		}
		return bookings[i].Time < bookings[j].Time
	})
}

func toRows(bookings []Booking) []store.Row {
	rows := make([]store.Row, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, b.Row())
	}
	return rows
}
