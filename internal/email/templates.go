package email

import (
	"fmt"
	"strings"
)

type NoticeKind string

const (
	NoticeBooked    NoticeKind = "booked"
	NoticeCancelled NoticeKind = "cancelled"
)

type Notice struct {
	Subject string
	Body    string
}

type NoticeDetails struct {
	AppName   string
	Band      string
	Date      string // DD/MM/YYYY
	Time      string
	AgendaURL string
}

// BuildNotice composes the plain-text mail sent when a slot is booked or freed.
func BuildNotice(kind NoticeKind, details NoticeDetails) Notice {
	appName := strings.TrimSpace(details.AppName)
	if appName == "" {
		appName = "Agenda de Ensaios"
	}
	band := orDash(details.Band)
	date := orDash(details.Date)
	clock := orDash(details.Time)

	var headline, verb string
	switch kind {
	case NoticeCancelled:
		headline = "Ensaio cancelado"
		verb = "foi cancelado"
	default:
		headline = "Ensaio marcado"
		verb = "foi marcado"
	}

	lines := []string{
		fmt.Sprintf("O ensaio de %s em %s às %s %s.", band, date, clock, verb),
		"",
		fmt.Sprintf("Banda: %s", band),
		fmt.Sprintf("Data: %s", date),
		fmt.Sprintf("Horário: %s", clock),
	}
	if url := strings.TrimSpace(details.AgendaURL); url != "" {
		lines = append(lines, "", fmt.Sprintf("Agenda: %s", url))
	}

	return Notice{
		Subject: fmt.Sprintf("%s: %s %s %s - %s", headline, band, date, clock, appName),
		Body:    strings.Join(lines, "\n"),
	}
}

func orDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
