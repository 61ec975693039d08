// Package calendar lays bookings out on a Monday-first month grid.
package calendar

import (
	"strconv"
	"time"

	"github.com/codr1/Ensaios/internal/booking"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// Weekdays are the column headers, Monday first.
var Weekdays = [7]string{"Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}

func MonthName(month time.Month) string {
	if month < time.January || month > time.December {
		return month.String()
	}
	return monthNames[month-1]
}

// MonthMatrix returns the weeks of the month as rows of seven day numbers,
// Monday first, with 0 for days outside the month.
func MonthMatrix(year int, month time.Month) [][7]int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	// time.Weekday is Sunday=0; shift so Monday=0.
	offset := (int(first.Weekday()) + 6) % 7

	var weeks [][7]int
	var week [7]int
	col := offset
	for day := 1; day <= days; day++ {
		week[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

type Day struct {
	Number   int
	Date     booking.Date
	InMonth  bool
	IsToday  bool
	Bookings []booking.Booking
}

// Free reports an in-month day with nothing booked.
func (d Day) Free() bool {
	return d.InMonth && len(d.Bookings) == 0
}

type Week struct {
	Days [7]Day
}

type Month struct {
	Year  int
	Month time.Month
	Name  string
	Weeks []Week
	Today booking.Date
}

// Title is the heading shown above the grid, e.g. "Março de 2025".
func (m Month) Title() string {
	return m.Name + " de " + strconv.Itoa(m.Year)
}

func (m Month) Prev() (int, time.Month) {
	if m.Month == time.January {
		return m.Year - 1, time.December
	}
	return m.Year, m.Month - 1
}

func (m Month) Next() (int, time.Month) {
	if m.Month == time.December {
		return m.Year + 1, time.January
	}
	return m.Year, m.Month + 1
}

// BuildMonth places bookings on the grid for year/month. Bookings outside the
// month are ignored; each cell is sorted by time.
func BuildMonth(year int, month time.Month, bookings []booking.Booking, today booking.Date) Month {
	byDay := make(map[int][]booking.Booking)
	for _, b := range bookings {
		if b.Date.InMonth(year, month) {
			byDay[b.Date.Day] = append(byDay[b.Date.Day], b)
		}
	}

	m := Month{
		Year:  year,
		Month: month,
		Name:  MonthName(month),
		Today: today,
	}
	for _, numbers := range MonthMatrix(year, month) {
		var week Week
		for i, n := range numbers {
			if n == 0 {
				continue
			}
			date := booking.Date{Year: year, Month: month, Day: n}
			cell := byDay[n]
			booking.SortByDateTime(cell)
			week.Days[i] = Day{
				Number:   n,
				Date:     date,
				InMonth:  true,
				IsToday:  date == today,
				Bookings: cell,
			}
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m
}
