package request

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseMonth parses year and month query values, falling back to fallback's
// month for any value that is missing or out of range.
func ParseMonth(yearValue, monthValue string, fallback time.Time, minYear, maxYear int) (int, time.Month) {
	year := fallback.Year()
	month := fallback.Month()

	if y, err := strconv.Atoi(strings.TrimSpace(yearValue)); err == nil && y >= minYear && y <= maxYear {
		year = y
	}
	if m, err := strconv.Atoi(strings.TrimSpace(monthValue)); err == nil && m >= 1 && m <= 12 {
		month = time.Month(m)
	}
	return year, month
}

// MonthQueryErrors reports year and month values that were given but cannot be
// used. Missing values are not errors; callers fall back to the current month.
func MonthQueryErrors(yearValue, monthValue string, minYear, maxYear int) map[string]string {
	errs := make(map[string]string)
	if yearValue = strings.TrimSpace(yearValue); yearValue != "" {
		if y, err := strconv.Atoi(yearValue); err != nil || y < minYear || y > maxYear {
			errs["year"] = fmt.Sprintf("O ano deve estar entre %d e %d.", minYear, maxYear)
		}
	}
	if monthValue = strings.TrimSpace(monthValue); monthValue != "" {
		if m, err := strconv.Atoi(monthValue); err != nil || m < 1 || m > 12 {
			errs["month"] = "O mês deve estar entre 1 e 12."
		}
	}
	return errs
}

// MonthFromRequest reads year/month from the query, the submitted form, or the
// HX-Current-URL header, in that order.
func MonthFromRequest(r *http.Request, fallback time.Time, minYear, maxYear int) (int, time.Month) {
	query := r.URL.Query()
	if query.Has("year") || query.Has("month") {
		return ParseMonth(query.Get("year"), query.Get("month"), fallback, minYear, maxYear)
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil && (r.PostForm.Has("year") || r.PostForm.Has("month")) {
			return ParseMonth(r.PostForm.Get("year"), r.PostForm.Get("month"), fallback, minYear, maxYear)
		}
	}

	currentURL := strings.TrimSpace(r.Header.Get("HX-Current-URL"))
	if currentURL != "" {
		parsed, err := url.Parse(currentURL)
		if err != nil {
			log.Ctx(r.Context()).
				Debug().
				Err(err).
				Str("hx_current_url", currentURL).
				Msg("Failed to parse HX-Current-URL")
		} else {
			q := parsed.Query()
			return ParseMonth(q.Get("year"), q.Get("month"), fallback, minYear, maxYear)
		}
	}

	return ParseMonth("", "", fallback, minYear, maxYear)
}

// WantsJSON reports whether the client asked for a JSON response.
func WantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mediaType, "application/json") {
			return true
		}
	}
	return false
}

// IsJSONBody reports whether the request body is JSON.
func IsJSONBody(r *http.Request) bool {
	mediaType := strings.TrimSpace(strings.SplitN(r.Header.Get("Content-Type"), ";", 2)[0])
	return strings.EqualFold(mediaType, "application/json")
}
