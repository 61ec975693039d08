package request

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

var fallback = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.Local)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name      string
		year      string
		month     string
		wantYear  int
		wantMonth time.Month
	}{
		{name: "valid", year: "2026", month: "7", wantYear: 2026, wantMonth: time.July},
		{name: "empty", wantYear: 2025, wantMonth: time.March},
		{name: "year_out_of_range", year: "2040", month: "1", wantYear: 2025, wantMonth: time.January},
		{name: "month_out_of_range", year: "2024", month: "13", wantYear: 2024, wantMonth: time.March},
		{name: "garbage", year: "abc", month: " 02 ", wantYear: 2025, wantMonth: time.February},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			year, month := ParseMonth(test.year, test.month, fallback, 2023, 2030)
			if year != test.wantYear || month != test.wantMonth {
				t.Fatalf("got %d/%d, want %d/%d", year, month, test.wantYear, test.wantMonth)
			}
		})
	}
}

func TestMonthQueryErrors(t *testing.T) {
	tests := []struct {
		name       string
		year       string
		month      string
		wantFields []string
	}{
		{name: "valid", year: "2026", month: "7"},
		{name: "missing", year: "", month: ""},
		{name: "year_after_range", year: "2040", month: "3", wantFields: []string{"year"}},
		{name: "year_before_range", year: "2022", month: "3", wantFields: []string{"year"}},
		{name: "month_out_of_range", year: "2025", month: "0", wantFields: []string{"month"}},
		{name: "garbage", year: "abc", month: "x", wantFields: []string{"year", "month"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			errs := MonthQueryErrors(test.year, test.month, 2023, 2030)
			if len(errs) != len(test.wantFields) {
				t.Fatalf("got %v, want fields %v", errs, test.wantFields)
			}
			for _, field := range test.wantFields {
				if errs[field] == "" {
					t.Fatalf("expected an error for %s, got %v", field, errs)
				}
			}
		})
	}
}

func TestMonthFromRequest(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?year=2024&month=2", nil)
		year, month := MonthFromRequest(r, fallback, 2023, 2030)
		if year != 2024 || month != time.February {
			t.Fatalf("got %d/%d", year, month)
		}
	})

	t.Run("form", func(t *testing.T) {
		form := url.Values{"year": {"2026"}, "month": {"11"}}
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		year, month := MonthFromRequest(r, fallback, 2023, 2030)
		if year != 2026 || month != time.November {
			t.Fatalf("got %d/%d", year, month)
		}
	})

	t.Run("hx_current_url", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/agenda/bookings/x/delete", nil)
		r.Header.Set("HX-Current-URL", "http://localhost:8080/?year=2023&month=12")
		year, month := MonthFromRequest(r, fallback, 2023, 2030)
		if year != 2023 || month != time.December {
			t.Fatalf("got %d/%d", year, month)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		year, month := MonthFromRequest(r, fallback, 2023, 2030)
		if year != 2025 || month != time.March {
			t.Fatalf("got %d/%d", year, month)
		}
	})
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"application/json", true},
		{"text/html, application/json;q=0.9", true},
		{"text/html", false},
		{"", false},
	}

	for _, test := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept", test.accept)
		if got := WantsJSON(r); got != test.want {
			t.Errorf("WantsJSON(%q) = %v, want %v", test.accept, got, test.want)
		}
	}
}
