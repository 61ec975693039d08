package email

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const noticeEmailTimeout = 5 * time.Second

// Notifier mails booking notices to a single configured address.
// A nil *Notifier is valid and sends nothing.
type Notifier struct {
	sender    EmailSender
	recipient string
	appName   string
	agendaURL string
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewNotifier(sender EmailSender, recipient, appName, agendaURL string) *Notifier {
	recipient = strings.TrimSpace(recipient)
	if sender == nil || recipient == "" {
		return nil
	}
	return &Notifier{
		sender:    sender,
		recipient: recipient,
		appName:   appName,
		agendaURL: agendaURL,
		timeout:   noticeEmailTimeout,
	}
}

// Notify sends the notice asynchronously. The send outlives the request
// context but is bounded by its own timeout.
func (n *Notifier) Notify(ctx context.Context, kind NoticeKind, band, date, clock string) {
	if n == nil {
		return
	}

	notice := BuildNotice(kind, NoticeDetails{
		AppName:   n.appName,
		Band:      band,
		Date:      date,
		Time:      clock,
		AgendaURL: n.agendaURL,
	})
	logger := log.Ctx(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := newEmailContext(ctx, n.timeout)
		defer cancel()
		if err := n.sender.Send(sendCtx, n.recipient, notice.Subject, notice.Body); err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Str("recipient", n.recipient).Msg("Failed to send booking notice")
			return
		}
		logger.Debug().Str("kind", string(kind)).Msg("Booking notice sent")
	}()
}

// Wait blocks until in-flight notices finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
