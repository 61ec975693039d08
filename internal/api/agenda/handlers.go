// internal/api/agenda/handlers.go
package agenda

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/csrf"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/api/apiutil"
	"github.com/codr1/Ensaios/internal/api/htmx"
	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/calendar"
	"github.com/codr1/Ensaios/internal/email"
	"github.com/codr1/Ensaios/internal/request"
	agendatempl "github.com/codr1/Ensaios/internal/templates/components/agenda"
	"github.com/codr1/Ensaios/internal/templates/layouts"
)

const (
	defaultMinYear     = 2023
	defaultMaxYear     = 2030
	defaultStartTime   = booking.Clock("19:00")
	recentBookingCount = 3
)

type Config struct {
	Ledger   *booking.Ledger
	Registry *bands.Registry

	AllowUnknownBands bool
	AllowPastDates    bool
	DefaultTime       booking.Clock
	MinYear           int
	MaxYear           int
	Debug             bool

	Notifier *email.Notifier
	AppName  string
	Now      func() time.Time
}

var handlerConfig *Config

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(cfg *Config) {
	if cfg != nil {
		if cfg.Registry == nil {
			cfg.Registry = bands.MustDefaultRegistry()
		}
		if cfg.DefaultTime == "" {
			cfg.DefaultTime = defaultStartTime
		}
		if cfg.MinYear == 0 && cfg.MaxYear == 0 {
			cfg.MinYear, cfg.MaxYear = defaultMinYear, defaultMaxYear
		}
		if cfg.Now == nil {
			cfg.Now = time.Now
		}
	}
	handlerConfig = cfg
}

func loadConfig(w http.ResponseWriter, r *http.Request) *Config {
	cfg := handlerConfig
	if cfg == nil || cfg.Ledger == nil {
		log.Ctx(r.Context()).Error().Msg("Agenda handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return cfg
}

type BookingResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Band        string `json:"band"`
	BandName    string `json:"band_name"`
	Color       string `json:"color"`
	Time        string `json:"time"`
	UnknownBand bool   `json:"unknown_band,omitempty"`
}

type MonthResponse struct {
	Year     int               `json:"year"`
	Month    int               `json:"month"`
	Name     string            `json:"name"`
	Weeks    [][7]int          `json:"weeks"`
	Bookings []BookingResponse `json:"bookings"`
	Pending  bool              `json:"pending"`
}

type DayResponse struct {
	Date     string            `json:"date"`
	Free     bool              `json:"free"`
	Bookings []BookingResponse `json:"bookings"`
}

type StatusResponse struct {
	Total   int  `json:"total"`
	Pending bool `json:"pending"`
	Loaded  int  `json:"loaded,omitempty"`
	Skipped int  `json:"skipped,omitempty"`
}

type CreateBookingRequest struct {
	Date string `json:"date"`
	Band string `json:"band"`
	Time string `json:"time"`
}

// GET /
func HandlePage(w http.ResponseWriter, r *http.Request) {
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	query := r.URL.Query()
	year, month := request.ParseMonth(query.Get("year"), query.Get("month"), cfg.Now(), cfg.MinYear, cfg.MaxYear)

	var flash *agendatempl.Flash
	switch query.Get("flash") {
	case "saved":
		flash = &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: savedMessage}
	case "deleted":
		flash = &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: deletedMessage}
	}

	form := cfg.newForm(r)
	form.Flash = flash
	renderPage(w, r, cfg, http.StatusOK, cfg.monthData(year, month, nil), form)
}

// GET /api/v1/agenda/month
func HandleMonth(w http.ResponseWriter, r *http.Request) {
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	year, month := request.MonthFromRequest(r, cfg.Now(), cfg.MinYear, cfg.MaxYear)
	if request.WantsJSON(r) {
		query := r.URL.Query()
		if fields := request.MonthQueryErrors(query.Get("year"), query.Get("month"), cfg.MinYear, cfg.MaxYear); len(fields) > 0 {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Mês ou ano inválido."}, fields, false)
			return
		}
		rows := cfg.Ledger.ForMonth(year, month)
		writeJSON(w, r, http.StatusOK, MonthResponse{
			Year:     year,
			Month:    int(month),
			Name:     calendar.MonthName(month),
			Weeks:    calendar.MonthMatrix(year, month),
			Bookings: cfg.bookingResponses(rows),
			Pending:  cfg.Ledger.Pending(),
		})
		return
	}

	render(w, r, http.StatusOK, agendatempl.MonthPanel(cfg.monthData(year, month, nil)))
}

// GET /api/v1/agenda/day
func HandleDay(w http.ResponseWriter, r *http.Request) {
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	raw := r.URL.Query().Get("date")
	date, err := booking.ParseDate(raw)
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Str("date", raw).Msg("Invalid day requested")
		if request.WantsJSON(r) {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Data inválida.", Err: err}, map[string]string{"date": "Data inválida."}, false)
			return
		}
		http.Error(w, "Data inválida.", http.StatusBadRequest)
		return
	}

	rows := cfg.Ledger.ForDay(date)
	booking.SortByDateTime(rows)

	if request.WantsJSON(r) {
		writeJSON(w, r, http.StatusOK, DayResponse{
			Date:     date.String(),
			Free:     len(rows) == 0,
			Bookings: cfg.bookingResponses(rows),
		})
		return
	}
	render(w, r, http.StatusOK, agendatempl.DayList(date, agendatempl.NewBookingViews(rows, cfg.Registry)))
}

// POST /api/v1/agenda/bookings
func HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	isJSON := request.IsJSONBody(r)
	var input CreateBookingRequest
	if isJSON {
		if err := apiutil.DecodeJSON(r, &input); err != nil {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "JSON inválido.", Err: err}, nil, false)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		input = CreateBookingRequest{
			Date: r.PostForm.Get("date"),
			Band: r.PostForm.Get("band"),
			Time: r.PostForm.Get("time"),
		}
	}

	date, band, clock, fieldErrors := cfg.validateBooking(input)
	year, month := request.MonthFromRequest(r, cfg.Now(), cfg.MinYear, cfg.MaxYear)

	form := cfg.newForm(r)
	form.Date = strings.TrimSpace(input.Date)
	if !date.IsZero() {
		form.Date = date.String()
	}
	form.Band = string(bands.NormalizeCode(input.Band))
	form.Time = strings.TrimSpace(input.Time)
	form.Errors = fieldErrors

	if len(fieldErrors) > 0 {
		logger.Info().Interface("fields", fieldErrors).Msg("Booking rejected: invalid input")
		if isJSON {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Dados inválidos."}, fieldErrors, false)
			return
		}
		form.Flash = &agendatempl.Flash{Kind: agendatempl.FlashError, Message: "Verifique os campos destacados."}
		respondForm(w, r, cfg, http.StatusBadRequest, form, nil, year, month)
		return
	}

	created, err := cfg.Ledger.Add(r.Context(), date, band, clock)
	if err != nil {
		status, message, retryable := ledgerFailure(err)
		logEvent := logger.Warn()
		if status >= http.StatusInternalServerError {
			logEvent = logger.Error()
		}
		logEvent.Err(err).Int("status", status).Msg("Booking not saved")

		if isJSON {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: status, Message: message, Err: err}, nil, retryable)
			return
		}
		form.Flash = &agendatempl.Flash{Kind: agendatempl.FlashError, Message: message}

		// A failed save still changed the working set, so the month shows the pending state.
		var panel *agendatempl.MonthData
		if cfg.Ledger.Pending() {
			data := cfg.monthData(year, month, nil)
			panel = &data
		}
		respondForm(w, r, cfg, status, form, panel, year, month)
		return
	}

	cfg.Notifier.Notify(r.Context(), email.NoticeBooked, string(created.Band), created.Date.DayFirst(), string(created.Time))

	if isJSON {
		writeJSON(w, r, http.StatusCreated, cfg.bookingResponse(created))
		return
	}
	if !htmx.IsRequest(r) {
		http.Redirect(w, r, pageURL(year, month, "saved"), http.StatusSeeOther)
		return
	}

	fresh := cfg.newForm(r)
	fresh.Flash = &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: savedMessage}
	data := cfg.monthData(year, month, nil)
	render(w, r, http.StatusOK, agendatempl.FormResult(fresh, cfg.Registry.All(), &data))
}

// HandleDeleteBooking serves both POST /api/v1/agenda/bookings/{id}/delete and
// DELETE /api/v1/agenda/bookings/{id}.
func HandleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	year, month := request.MonthFromRequest(r, cfg.Now(), cfg.MinYear, cfg.MaxYear)
	wantsJSON := request.WantsJSON(r) || request.IsJSONBody(r)

	removed, err := cfg.Ledger.Remove(r.Context(), id)
	if err != nil {
		status, message, retryable := ledgerFailure(err)
		logEvent := logger.Warn()
		if status >= http.StatusInternalServerError {
			logEvent = logger.Error()
		}
		logEvent.Err(err).Str("booking_id", id).Int("status", status).Msg("Booking not removed")

		if wantsJSON {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: status, Message: message, Err: err}, nil, retryable)
			return
		}
		respondMonth(w, r, cfg, status, year, month, &agendatempl.Flash{Kind: agendatempl.FlashError, Message: message})
		return
	}

	cfg.Notifier.Notify(r.Context(), email.NoticeCancelled, string(removed.Band), removed.Date.DayFirst(), string(removed.Time))

	if wantsJSON {
		writeJSON(w, r, http.StatusOK, cfg.bookingResponse(removed))
		return
	}
	if !htmx.IsRequest(r) {
		http.Redirect(w, r, pageURL(year, month, "deleted"), http.StatusSeeOther)
		return
	}
	respondMonth(w, r, cfg, http.StatusOK, year, month, &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: deletedMessage})
}

// POST /api/v1/agenda/flush
func HandleFlush(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	year, month := request.MonthFromRequest(r, cfg.Now(), cfg.MinYear, cfg.MaxYear)
	status := http.StatusOK
	flash := &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: "✅ Alterações salvas."}
	retryable := false

	if err := cfg.Ledger.Flush(r.Context()); err != nil {
		var message string
		status, message, retryable = ledgerFailure(err)
		flash = &agendatempl.Flash{Kind: agendatempl.FlashError, Message: message}
		logger.Error().Err(err).Msg("Pending bookings still not saved")
	} else {
		logger.Info().Msg("Pending bookings saved")
	}

	if request.WantsJSON(r) {
		if status != http.StatusOK {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: status, Message: flash.Message}, nil, retryable)
			return
		}
		writeJSON(w, r, status, StatusResponse{Total: cfg.Ledger.Len(), Pending: cfg.Ledger.Pending()})
		return
	}
	respondMonth(w, r, cfg, status, year, month, flash)
}

// POST /api/v1/agenda/reload
func HandleReload(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	cfg := loadConfig(w, r)
	if cfg == nil {
		return
	}

	year, month := request.MonthFromRequest(r, cfg.Now(), cfg.MinYear, cfg.MaxYear)
	report, err := cfg.Ledger.Reload(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Reload failed")
		message := "Não foi possível carregar a agenda. Tente novamente em instantes."
		if request.WantsJSON(r) {
			apiutil.WriteJSONError(w, r, apiutil.HandlerError{Status: http.StatusServiceUnavailable, Message: message, Err: err}, nil, true)
			return
		}
		respondMonth(w, r, cfg, http.StatusServiceUnavailable, year, month, &agendatempl.Flash{Kind: agendatempl.FlashError, Message: message})
		return
	}

	if request.WantsJSON(r) {
		writeJSON(w, r, http.StatusOK, StatusResponse{
			Total:   cfg.Ledger.Len(),
			Pending: cfg.Ledger.Pending(),
			Loaded:  report.Loaded,
			Skipped: report.Skipped,
		})
		return
	}

	flash := &agendatempl.Flash{Kind: agendatempl.FlashSuccess, Message: "🔄 Agenda recarregada."}
	if report.Skipped > 0 {
		flash = &agendatempl.Flash{
			Kind:    agendatempl.FlashWarning,
			Message: fmt.Sprintf("Agenda recarregada. %d linha(s) inválida(s) ignorada(s).", report.Skipped),
		}
	}
	respondMonth(w, r, cfg, http.StatusOK, year, month, flash)
}

const (
	savedMessage   = "✅ Agendamento salvo com sucesso!"
	deletedMessage = "🗑️ Ensaio excluído."
)

// ledgerFailure maps a ledger error to a status and the message shown to the user.
func ledgerFailure(err error) (status int, message string, retryable bool) {
	var conflict *booking.ConflictError
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, fmt.Sprintf("Já existe ensaio em %s às %s", conflict.Date.DayFirst(), conflict.Existing.Time), false
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound, "Ensaio não encontrado. Recarregue a agenda.", false
	case errors.Is(err, booking.ErrStale):
		return http.StatusConflict, "A agenda foi alterada em outro lugar. Recarregue a agenda e tente novamente.", false
	case booking.Retryable(err):
		return http.StatusServiceUnavailable, "⚠️ Não foi possível salvar. A alteração ficou pendente; tente salvar novamente.", true
	case errors.Is(err, booking.ErrInvalid):
		return http.StatusBadRequest, "Dados inválidos.", false
	default:
		return http.StatusInternalServerError, "Erro inesperado. Tente novamente.", false
	}
}

// validateBooking parses the submitted fields. Field errors are keyed by form field name.
func (c *Config) validateBooking(input CreateBookingRequest) (booking.Date, bands.Code, booking.Clock, map[string]string) {
	errs := make(map[string]string)

	var date booking.Date
	if strings.TrimSpace(input.Date) == "" {
		errs["date"] = "Informe a data do ensaio."
	} else if parsed, err := booking.ParseDate(input.Date); err != nil {
		errs["date"] = "Data inválida."
	} else {
		date = parsed
		switch {
		case !c.AllowPastDates && parsed.Before(c.today()):
			errs["date"] = "A data não pode ser anterior a hoje."
		case parsed.Year < c.MinYear || parsed.Year > c.MaxYear:
			errs["date"] = fmt.Sprintf("A data deve estar entre %d e %d.", c.MinYear, c.MaxYear)
		}
	}

	band := bands.NormalizeCode(input.Band)
	switch {
	case band == "":
		errs["band"] = "Escolha uma banda."
	case !c.AllowUnknownBands && !c.Registry.Known(band):
		errs["band"] = "Banda desconhecida: " + string(band) + "."
	}

	var clock booking.Clock
	if strings.TrimSpace(input.Time) == "" {
		errs["time"] = "Informe o horário."
	} else if parsed, err := booking.ParseClock(input.Time); err != nil {
		errs["time"] = "Horário inválido. Use HH:MM."
	} else {
		clock = parsed
	}

	if len(errs) == 0 {
		return date, band, clock, nil
	}
	return date, band, clock, errs
}

func (c *Config) today() booking.Date {
	return booking.Today(c.Now)
}

func (c *Config) years() []int {
	years := make([]int, 0, c.MaxYear-c.MinYear+1)
	for y := c.MinYear; y <= c.MaxYear; y++ {
		years = append(years, y)
	}
	return years
}

func (c *Config) newForm(r *http.Request) agendatempl.FormData {
	form := agendatempl.FormData{
		Date:      c.today().String(),
		Time:      string(c.DefaultTime),
		CSRFToken: csrf.Token(r),
	}
	if !c.AllowPastDates {
		form.MinDate = form.Date
	}
	if roster := c.Registry.All(); len(roster) > 0 {
		form.Band = string(roster[0].Code)
	}
	return form
}

func (c *Config) monthData(year int, month time.Month, flash *agendatempl.Flash) agendatempl.MonthData {
	rows := c.Ledger.ForMonth(year, month)
	return agendatempl.MonthData{
		Month:    calendar.BuildMonth(year, month, rows, c.today()),
		Listing:  agendatempl.NewBookingViews(rows, c.Registry),
		Registry: c.Registry,
		Years:    c.years(),
		Flash:    flash,
		Pending:  c.Ledger.Pending(),
	}
}

func (c *Config) debugInfo() *agendatempl.DebugInfo {
	if !c.Debug {
		return nil
	}
	return &agendatempl.DebugInfo{
		Total:    c.Ledger.Len(),
		Recent:   agendatempl.NewBookingViews(c.Ledger.Recent(recentBookingCount), c.Registry),
		Pending:  c.Ledger.Pending(),
		Policy:   string(c.Ledger.Policy()),
		LoadedAt: c.Ledger.LoadedAt(),
	}
}

func (c *Config) bookingResponse(b booking.Booking) BookingResponse {
	band := c.Registry.Lookup(b.Band)
	return BookingResponse{
		ID:          b.ID,
		Date:        b.Date.String(),
		Band:        string(b.Band),
		BandName:    band.Name,
		Color:       band.Color,
		Time:        string(b.Time),
		UnknownBand: band.Unknown,
	}
}

func (c *Config) bookingResponses(rows []booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, c.bookingResponse(b))
	}
	return out
}

// respondForm answers a form submit: the form fragment for htmx, the full page otherwise.
func respondForm(w http.ResponseWriter, r *http.Request, cfg *Config, status int, form agendatempl.FormData, panel *agendatempl.MonthData, year int, month time.Month) {
	if htmx.IsRequest(r) {
		render(w, r, status, agendatempl.FormResult(form, cfg.Registry.All(), panel))
		return
	}
	data := cfg.monthData(year, month, nil)
	if panel != nil {
		data = *panel
	}
	renderPage(w, r, cfg, status, data, form)
}

// respondMonth answers month-level actions: the month panel for htmx, the full page otherwise.
func respondMonth(w http.ResponseWriter, r *http.Request, cfg *Config, status int, year int, month time.Month, flash *agendatempl.Flash) {
	data := cfg.monthData(year, month, flash)
	if htmx.IsRequest(r) {
		render(w, r, status, agendatempl.MonthPanel(data))
		return
	}
	renderPage(w, r, cfg, status, data, cfg.newForm(r))
}

func renderPage(w http.ResponseWriter, r *http.Request, cfg *Config, status int, data agendatempl.MonthData, form agendatempl.FormData) {
	page := layouts.Base(
		layouts.Page{
			Title:         cfg.AppName,
			AppName:       cfg.AppName,
			CSRFToken:     csrf.Token(r),
			Authenticated: true,
		},
		agendatempl.Page(agendatempl.PageData{
			MonthData: data,
			Form:      form,
			Bands:     cfg.Registry.All(),
			Debug:     cfg.debugInfo(),
		}),
	)
	render(w, r, status, page)
}

func render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render response")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}

func pageURL(year int, month time.Month, flash string) string {
	values := url.Values{}
	values.Set("year", strconv.Itoa(year))
	values.Set("month", strconv.Itoa(int(month)))
	if flash != "" {
		values.Set("flash", flash)
	}
	return "/?" + values.Encode()
}
