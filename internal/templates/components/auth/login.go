package auth

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/codr1/Ensaios/internal/templates/layouts"
)

type LoginData struct {
	Error     string
	Next      string
	CSRFToken string
}

// LoginForm asks for the shared agenda password.
func LoginForm(data LoginData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<main style="grid-template-columns:1fr;max-width:360px;margin:0 auto">`)
		buf.WriteString(`<section class="panel" id="login"><h2>Entrar</h2>`)
		if data.Error != "" {
			buf.WriteString(`<div class="flash flash-error" role="alert">` + templ.EscapeString(data.Error) + `</div>`)
		}
		buf.WriteString(`<form method="post" action="/login">`)
		buf.WriteString(layouts.CSRFField(data.CSRFToken))
		if data.Next != "" {
			buf.WriteString(`<input type="hidden" name="next" value="` + templ.EscapeString(data.Next) + `"/>`)
		}
		buf.WriteString(`<label for="password">Senha</label>`)
		buf.WriteString(`<input id="password" type="password" name="password" autocomplete="current-password" required autofocus/>`)
		buf.WriteString(`<p><button type="submit">Entrar</button></p></form></section></main>`)
		_, err := w.Write(buf.Bytes())
		return err
	})
}
