package calendar

import (
	"testing"
	"time"

	"github.com/codr1/Ensaios/internal/booking"
)

func TestMonthMatrix(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		weeks     int
		firstWeek [7]int
		lastWeek  [7]int
	}{
		{
			name:      "march_2025_starts_saturday",
			year:      2025,
			month:     time.March,
			weeks:     6,
			firstWeek: [7]int{0, 0, 0, 0, 0, 1, 2},
			lastWeek:  [7]int{31, 0, 0, 0, 0, 0, 0},
		},
		{
			name:      "february_2021_fills_four_weeks",
			year:      2021,
			month:     time.February,
			weeks:     4,
			firstWeek: [7]int{1, 2, 3, 4, 5, 6, 7},
			lastWeek:  [7]int{22, 23, 24, 25, 26, 27, 28},
		},
		{
			name:      "leap_february_2024",
			year:      2024,
			month:     time.February,
			weeks:     5,
			firstWeek: [7]int{0, 0, 0, 1, 2, 3, 4},
			lastWeek:  [7]int{26, 27, 28, 29, 0, 0, 0},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			matrix := MonthMatrix(test.year, test.month)
			if len(matrix) != test.weeks {
				t.Fatalf("got %d weeks, want %d", len(matrix), test.weeks)
			}
			if matrix[0] != test.firstWeek {
				t.Fatalf("first week = %v, want %v", matrix[0], test.firstWeek)
			}
			if matrix[len(matrix)-1] != test.lastWeek {
				t.Fatalf("last week = %v, want %v", matrix[len(matrix)-1], test.lastWeek)
			}
		})
	}
}

func TestBuildMonth(t *testing.T) {
	today := booking.NewDate(2025, time.March, 10)
	bookings := []booking.Booking{
		{ID: "late", Date: booking.NewDate(2025, time.March, 10), Band: "D2", Time: "20:00"},
		{ID: "early", Date: booking.NewDate(2025, time.March, 10), Band: "D1", Time: "19:00"},
		{ID: "other_month", Date: booking.NewDate(2025, time.April, 10), Band: "D3", Time: "19:00"},
	}

	month := BuildMonth(2025, time.March, bookings, today)
	if month.Title() != "Março de 2025" {
		t.Fatalf("Title = %q", month.Title())
	}

	var todayCell *Day
	bookedCells := 0
	for wi := range month.Weeks {
		for di := range month.Weeks[wi].Days {
			day := &month.Weeks[wi].Days[di]
			if day.IsToday {
				if todayCell != nil {
					t.Fatal("more than one cell flagged as today")
				}
				todayCell = day
			}
			if len(day.Bookings) > 0 {
				bookedCells++
			}
			if !day.InMonth && day.Number != 0 {
				t.Fatalf("filler cell with number %d", day.Number)
			}
		}
	}

	if todayCell == nil || todayCell.Number != 10 {
		t.Fatalf("today cell = %+v", todayCell)
	}
	if bookedCells != 1 {
		t.Fatalf("expected 1 booked cell, got %d", bookedCells)
	}
	if todayCell.Bookings[0].ID != "early" || todayCell.Bookings[1].ID != "late" {
		t.Fatalf("cell bookings not sorted by time: %+v", todayCell.Bookings)
	}
	if todayCell.Free() {
		t.Fatal("booked day reported free")
	}
	// Monday 10 March 2025 sits in the first column of the third week.
	if month.Weeks[2].Days[0].Number != 10 {
		t.Fatalf("unexpected grid position for the 10th: %+v", month.Weeks[2].Days[0])
	}
}

func TestBuildMonthTodayOutsideMonth(t *testing.T) {
	month := BuildMonth(2025, time.March, nil, booking.NewDate(2025, time.April, 1))
	for _, week := range month.Weeks {
		for _, day := range week.Days {
			if day.IsToday {
				t.Fatalf("no cell should be today, got %+v", day)
			}
		}
	}
}

func TestPrevNext(t *testing.T) {
	jan := Month{Year: 2025, Month: time.January}
	if y, m := jan.Prev(); y != 2024 || m != time.December {
		t.Fatalf("Prev = %d-%d", y, m)
	}
	dec := Month{Year: 2025, Month: time.December}
	if y, m := dec.Next(); y != 2026 || m != time.January {
		t.Fatalf("Next = %d-%d", y, m)
	}
}

func TestMonthName(t *testing.T) {
	if MonthName(time.March) != "Março" || MonthName(time.December) != "Dezembro" {
		t.Fatal("unexpected month names")
	}
}
