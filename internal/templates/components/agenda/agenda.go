package agenda

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/calendar"
	"github.com/codr1/Ensaios/internal/templates/layouts"
)

const (
	MonthPanelID = "agenda-month"
	FormPanelID  = "agenda-form"
	DayPanelID   = "agenda-day"
)

func component(write func(buf *bytes.Buffer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		write(&buf)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// Page is the whole agenda screen: form and debug panel on the side, month on the right.
func Page(data PageData) templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString(`<main><aside>`)
		writeForm(buf, data.Form, data.Bands, data.Month)
		if data.Debug != nil {
			writeDebug(buf, *data.Debug)
		}
		buf.WriteString(`</aside><div>`)
		writeMonthPanel(buf, data.MonthData)
		buf.WriteString(`<section class="panel" id="` + DayPanelID + `" hidden></section>`)
		buf.WriteString(`</div></main>`)
	})
}

// MonthPanel is the htmx swap target for month navigation, deletes and reloads.
func MonthPanel(data MonthData) templ.Component {
	return component(func(buf *bytes.Buffer) {
		writeMonthPanel(buf, data)
	})
}

// FormResult is the reply to a form submit: the form itself and, after a
// successful save, the refreshed month swapped out of band.
func FormResult(form FormData, roster []bands.Band, month *MonthData) templ.Component {
	return component(func(buf *bytes.Buffer) {
		var m calendar.Month
		if month != nil {
			m = month.Month
		}
		writeForm(buf, form, roster, m)
		if month != nil {
			data := *month
			data.OOB = true
			writeMonthPanel(buf, data)
		}
	})
}

// DayList lists one day's bookings.
func DayList(date booking.Date, views []BookingView) templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString(`<section class="panel" id="` + DayPanelID + `">`)
		buf.WriteString(`<h3>` + esc(date.DayFirst()) + `</h3>`)
		if len(views) == 0 {
			buf.WriteString(`<p class="free-label">Disponível</p>`)
		}
		for _, v := range views {
			writeChip(buf, v)
		}
		buf.WriteString(`</section>`)
	})
}

func writeFlash(buf *bytes.Buffer, flash *Flash) {
	if flash == nil || flash.Message == "" {
		return
	}
	buf.WriteString(`<div class="flash flash-` + esc(string(flash.Kind)) + `" role="status">`)
	buf.WriteString(esc(flash.Message))
	buf.WriteString(`</div>`)
}

func monthQuery(year int, month time.Month) string {
	return "year=" + strconv.Itoa(year) + "&month=" + strconv.Itoa(int(month))
}

func monthVals(year int, month time.Month) string {
	return fmt.Sprintf(` hx-vals='{"year":"%d","month":"%d"}'`, year, int(month))
}

func swapInto(id string) string {
	return ` hx-target="#` + id + `" hx-swap="outerHTML"`
}

func writeMonthPanel(buf *bytes.Buffer, data MonthData) {
	m := data.Month
	buf.WriteString(`<section class="panel" id="` + MonthPanelID + `"`)
	if data.OOB {
		buf.WriteString(` hx-swap-oob="true"`)
	}
	buf.WriteString(`>`)
	writeFlash(buf, data.Flash)
	if data.Pending {
		buf.WriteString(`<div class="flash flash-warning">Há alterações ainda não salvas. `)
		buf.WriteString(`<button class="link" hx-post="/api/v1/agenda/flush"` + swapInto(MonthPanelID) + monthVals(m.Year, m.Month) + `>`)
		buf.WriteString(`Tentar salvar novamente</button> ou `)
		buf.WriteString(`<button class="link" hx-post="/api/v1/agenda/reload"` + swapInto(MonthPanelID) + monthVals(m.Year, m.Month) + ` hx-confirm="Descartar as alterações pendentes?">`)
		buf.WriteString(`recarregar a agenda</button></div>`)
	}

	prevYear, prevMonth := m.Prev()
	nextYear, nextMonth := m.Next()
	buf.WriteString(`<div class="month-nav">`)
	writeNavButton(buf, "‹", prevYear, prevMonth, data.Years)
	buf.WriteString(`<h2>Calendário de ` + esc(m.Title()) + `</h2>`)
	writeNavButton(buf, "›", nextYear, nextMonth, data.Years)
	buf.WriteString(`</div>`)

	writeMonthPicker(buf, m, data.Years)
	writeGrid(buf, m, data.Registry)

	buf.WriteString(`<hr/><h3>📋 Agendamentos do Mês</h3>`)
	if len(data.Listing) == 0 {
		buf.WriteString(`<p class="muted">Nenhum ensaio agendado para este mês.</p>`)
	}
	for _, v := range data.Listing {
		buf.WriteString(`<div class="listing-row">`)
		buf.WriteString(`<div class="listing-entry" style="` + esc(layouts.BandStyle(v.Band)) + `">`)
		buf.WriteString(fmt.Sprintf("📅 %s - 🎵 %s - ⏰ %s", esc(v.Date.DayFirst()), esc(string(v.Booking.Band)), esc(string(v.Time))))
		buf.WriteString(`</div>`)
		buf.WriteString(`<button class="danger" title="Excluir" hx-post="/api/v1/agenda/bookings/` + esc(v.ID) + `/delete"`)
		buf.WriteString(swapInto(MonthPanelID) + ` hx-confirm="Excluir este ensaio?"` + monthVals(m.Year, m.Month) + `>🗑</button>`)
		buf.WriteString(`</div>`)
	}
	buf.WriteString(`</section>`)
}

func inRange(year int, years []int) bool {
	if len(years) == 0 {
		return true
	}
	return year >= years[0] && year <= years[len(years)-1]
}

func writeNavButton(buf *bytes.Buffer, label string, year int, month time.Month, years []int) {
	if !inRange(year, years) {
		buf.WriteString(`<button type="button" disabled>` + label + `</button>`)
		return
	}
	query := monthQuery(year, month)
	buf.WriteString(`<button type="button" hx-get="/api/v1/agenda/month?` + query + `"` + swapInto(MonthPanelID))
	buf.WriteString(` hx-push-url="/?` + query + `">` + label + `</button>`)
}

func writeMonthPicker(buf *bytes.Buffer, m calendar.Month, years []int) {
	buf.WriteString(`<form method="get" action="/" hx-get="/api/v1/agenda/month" hx-trigger="change"` + swapInto(MonthPanelID) + `>`)
	buf.WriteString(`<label>Mês<select name="month">`)
	for i := 1; i <= 12; i++ {
		selected := ""
		if time.Month(i) == m.Month {
			selected = " selected"
		}
		buf.WriteString(fmt.Sprintf(`<option value="%d"%s>%s</option>`, i, selected, esc(calendar.MonthName(time.Month(i)))))
	}
	buf.WriteString(`</select></label><label>Ano<select name="year">`)
	for _, year := range years {
		selected := ""
		if year == m.Year {
			selected = " selected"
		}
		buf.WriteString(fmt.Sprintf(`<option value="%d"%s>%d</option>`, year, selected, year))
	}
	buf.WriteString(`</select></label><noscript><button type="submit">Ver</button></noscript></form>`)
}

func writeGrid(buf *bytes.Buffer, m calendar.Month, registry *bands.Registry) {
	buf.WriteString(`<div class="calendar">`)
	for _, name := range calendar.Weekdays {
		buf.WriteString(`<div class="weekday">` + esc(name) + `</div>`)
	}
	for _, week := range m.Weeks {
		for _, day := range week.Days {
			if !day.InMonth {
				buf.WriteString(`<div class="day filler"></div>`)
				continue
			}
			class := "day"
			if day.IsToday {
				class += " today"
			}
			if day.Free() {
				class += " free"
			}
			buf.WriteString(`<div class="` + class + `" hx-get="/api/v1/agenda/day?date=` + esc(day.Date.String()) + `"` + swapInto(DayPanelID) + `>`)
			buf.WriteString(`<div class="day-number">` + strconv.Itoa(day.Number) + `</div>`)
			if day.Free() {
				buf.WriteString(`<div class="free-label">Disponível</div>`)
			}
			for _, b := range day.Bookings {
				writeChip(buf, NewBookingView(b, registry))
			}
			buf.WriteString(`</div>`)
		}
	}
	buf.WriteString(`</div>`)
}

func writeChip(buf *bytes.Buffer, v BookingView) {
	buf.WriteString(`<div class="chip" style="` + esc(layouts.BandStyle(v.Band)) + `" title="` + esc(v.Band.Name) + `">`)
	buf.WriteString(esc(string(v.Booking.Band)) + ` ` + esc(string(v.Time)))
	buf.WriteString(`</div>`)
}

func writeFieldError(buf *bytes.Buffer, form FormData, field string) {
	if msg := form.Errors[field]; msg != "" {
		buf.WriteString(`<div class="field-error">` + esc(msg) + `</div>`)
	}
}

func writeForm(buf *bytes.Buffer, form FormData, roster []bands.Band, month calendar.Month) {
	buf.WriteString(`<section id="` + FormPanelID + `"><h3>📅 Novo Agendamento</h3>`)
	writeFlash(buf, form.Flash)
	buf.WriteString(`<form method="post" action="/api/v1/agenda/bookings" hx-post="/api/v1/agenda/bookings"` + swapInto(FormPanelID) + `>`)
	buf.WriteString(layouts.CSRFField(form.CSRFToken))
	if month.Year != 0 {
		buf.WriteString(fmt.Sprintf(`<input type="hidden" name="year" value="%d"/><input type="hidden" name="month" value="%d"/>`, month.Year, int(month.Month)))
	}

	buf.WriteString(`<label for="booking-date">Data do ensaio</label>`)
	buf.WriteString(`<input id="booking-date" type="date" name="date" required value="` + esc(form.Date) + `"`)
	if form.MinDate != "" {
		buf.WriteString(` min="` + esc(form.MinDate) + `"`)
	}
	buf.WriteString(`/>`)
	writeFieldError(buf, form, "date")

	buf.WriteString(`<label for="booking-band">Banda</label><select id="booking-band" name="band" required>`)
	for _, band := range roster {
		selected := ""
		if string(band.Code) == form.Band {
			selected = " selected"
		}
		buf.WriteString(`<option value="` + esc(string(band.Code)) + `"` + selected + `>` + esc(band.Label()) + `</option>`)
	}
	buf.WriteString(`</select>`)
	writeFieldError(buf, form, "band")

	buf.WriteString(`<label for="booking-time">Horário de início</label>`)
	buf.WriteString(`<input id="booking-time" type="time" name="time" required value="` + esc(form.Time) + `"/>`)
	writeFieldError(buf, form, "time")

	buf.WriteString(`<p><button type="submit">Agendar Ensaio</button></p></form></section>`)
}

func writeDebug(buf *bytes.Buffer, debug DebugInfo) {
	buf.WriteString(`<section><details><summary>🔧 Debug</summary>`)
	buf.WriteString(`<p>Total de agendamentos: ` + strconv.Itoa(debug.Total) + `</p>`)
	if debug.Policy != "" {
		buf.WriteString(`<p>Regra de conflito: ` + esc(debug.Policy) + `</p>`)
	}
	if !debug.LoadedAt.IsZero() {
		buf.WriteString(`<p>Carregado em: ` + esc(debug.LoadedAt.Format("02/01/2006 15:04:05")) + `</p>`)
	}
	if debug.Pending {
		buf.WriteString(`<p>Alterações pendentes de gravação.</p>`)
	}
	if len(debug.Recent) > 0 {
		buf.WriteString(`<p>Últimos agendamentos:</p><ul>`)
		for _, v := range debug.Recent {
			buf.WriteString(`<li>` + esc(v.Date.DayFirst()) + ` - ` + esc(string(v.Booking.Band)) + ` - ` + esc(string(v.Time)) + `</li>`)
		}
		buf.WriteString(`</ul>`)
	}
	buf.WriteString(`</details></section>`)
}
