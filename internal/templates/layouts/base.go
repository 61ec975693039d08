package layouts

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

const htmxScript = "https://unpkg.com/htmx.org@1.9.12"

// Validation, conflict and store errors come back as re-rendered fragments,
// so htmx has to swap those statuses instead of dropping them.
const swapErrorsScript = `document.addEventListener("htmx:beforeSwap",function(e){var s=e.detail.xhr.status;if(s===400||s===404||s===409||s===503){e.detail.shouldSwap=true;e.detail.isError=false;}});`

// CSRFFieldName is the form field gorilla/csrf reads the token from.
const CSRFFieldName = "gorilla.csrf.Token"

// Page carries what the shell around every screen needs.
type Page struct {
	Title         string
	AppName       string
	CSRFToken     string
	Authenticated bool
}

const baseCSS = `
body{font-family:system-ui,-apple-system,"Segoe UI",sans-serif;margin:0;background:#fafafa;color:#212529}
header{display:flex;align-items:center;justify-content:space-between;padding:12px 24px;background:#fff;border-bottom:1px solid var(--agenda-border)}
header h1{font-size:1.4em;margin:0}
main{display:grid;grid-template-columns:300px 1fr;gap:24px;padding:24px}
@media (max-width:900px){main{grid-template-columns:1fr}}
aside section,.panel{background:#fff;border:1px solid var(--agenda-border);border-radius:6px;padding:16px;margin-bottom:16px}
label{display:block;font-size:.9em;font-weight:600;margin:8px 0 4px}
input,select{width:100%;box-sizing:border-box;padding:6px;border:1px solid var(--agenda-border);border-radius:4px}
button{padding:8px 12px;border:0;border-radius:4px;background:#0d6efd;color:#fff;cursor:pointer}
button.link{background:none;color:#0d6efd;padding:0}
button.danger{background:#dc3545}
.flash{padding:10px;border-radius:4px;margin-bottom:12px}
.flash-success{background:#d1e7dd;color:#0f5132}
.flash-error{background:#f8d7da;color:#842029}
.flash-warning{background:#fff3cd;color:#664d03}
.field-error{color:#842029;font-size:.8em}
.calendar{display:grid;grid-template-columns:repeat(7,1fr);gap:4px}
.weekday{text-align:center;font-weight:bold}
.day{background:#fff;padding:4px;border-radius:5px;min-height:100px;border:2px solid var(--agenda-border);text-align:center}
.day.today{border:3px solid var(--agenda-today)}
.day.today.free{background:var(--agenda-today-fill)}
.day.filler{background:var(--agenda-filler);border:1px solid var(--agenda-border)}
.day-number{font-size:1.1em;margin-bottom:3px}
.free-label{color:#666;font-size:.8em}
.chip{font-size:.8em;border-radius:3px;margin:2px;padding:2px}
.month-nav{display:flex;align-items:center;justify-content:space-between}
.listing-row{display:flex;align-items:center;gap:8px}
.listing-entry{flex:1;padding:12px;border-radius:5px;margin:5px 0;font-weight:bold}
.muted{color:#6c757d}
`

// CSRFField renders the hidden token input for plain form posts.
func CSRFField(token string) string {
	return `<input type="hidden" name="` + CSRFFieldName + `" value="` + templ.EscapeString(token) + `"/>`
}

// Base wraps content in the HTML shell. The CSRF token rides on every htmx request.
func Base(page Page, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := page.Title
		if title == "" {
			title = page.AppName
		}

		var buf bytes.Buffer
		buf.WriteString(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8"/>`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
		buf.WriteString(`<title>` + templ.EscapeString(title) + `</title>`)
		buf.WriteString(`<script src="` + htmxScript + `"></script>`)
		buf.WriteString(`<script>` + swapErrorsScript + `</script>`)
		buf.WriteString(`<style>` + getThemeCssVars() + baseCSS + `</style></head>`)
		buf.WriteString(`<body hx-headers='{"X-CSRF-Token": "` + templ.EscapeString(page.CSRFToken) + `"}'>`)
		buf.WriteString(`<header><h1>🎵 ` + templ.EscapeString(page.AppName) + `</h1>`)
		if page.Authenticated {
			buf.WriteString(`<form method="post" action="/logout">`)
			buf.WriteString(CSRFField(page.CSRFToken))
			buf.WriteString(`<button type="submit" class="link">Sair</button></form>`)
		}
		buf.WriteString(`</header>`)
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}

		if content != nil {
			if err := content.Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
