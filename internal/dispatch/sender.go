// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
)

func init() {
	viper.SetDefault("smtp.from", "autosub@localhost")
	viper.SetDefault("dispatch.attempts", 5)
	viper.SetDefault("dispatch.backoff", "2s")
	viper.SetDefault("dispatch.maxBackoff", "1m")
}

// SenderOptions configure the delivery of outbound messages.
type SenderOptions struct {
	// From is the sender address of all messages.
	From models.Address `validate:"required"`
	// Attempts is the maximum number of delivery attempts per message.
	Attempts int `validate:"gt=0"`
	// Backoff is the delay after the first failed attempt. It doubles with every further one.
	Backoff time.Duration `validate:"gt=0"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `validate:"gtefield=Backoff"`
}

// SenderOptionsFromViper reads the sender options from viper.
//
// `smtp.from` is the sender address of all messages.
// `dispatch.attempts` is the maximum number of delivery attempts per message.
// `dispatch.backoff` is the delay after the first failed attempt.
// `dispatch.maxBackoff` caps the delay between attempts.
func SenderOptionsFromViper() (SenderOptions, error) {
	from, err := models.Parse(viper.GetString("smtp.from"))
	if err != nil {
		return SenderOptions{}, fmt.Errorf("invalid sender address: %w", err)
	}

	return SenderOptions{
		From:       from,
		Attempts:   viper.GetInt("dispatch.attempts"),
		Backoff:    viper.GetDuration("dispatch.backoff"),
		MaxBackoff: viper.GetDuration("dispatch.maxBackoff"),
	}, nil
}

// Sender is the single consumer of the outbound queue.
type Sender struct {
	opts       SenderOptions
	conn       database.Conn
	messageDao database.MessageDao
	counterDao database.CounterDao
	transport  Transport
	templates  *Templates
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

// NewSender creates a new sender.
func NewSender(
	opts SenderOptions,
	conn database.Conn,
	messageDao database.MessageDao,
	counterDao database.CounterDao,
	transport Transport,
) (*Sender, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return &Sender{
		opts:       opts,
		conn:       conn,
		messageDao: messageDao,
		counterDao: counterDao,
		transport:  transport,
		now:        time.Now,
		sleep:      sleep,
	}, nil
}

// Prepare loads the message texts. It must be called once before Run.
func (s *Sender) Prepare(ctx context.Context) error {
	templates, err := LoadTemplates(ctx, s.conn, s.messageDao)
	if err != nil {
		return err
	}

	s.templates = templates
	return nil
}

// Run delivers messages until outbox is closed and drained or ctx is done. Messages that
// cannot be delivered are logged and dropped.
func (s *Sender) Run(ctx context.Context, outbox <-chan *models.OutboundMessage) error {
	log.InfoContext(ctx).Msg("sender started")

	for {
		select {
		case <-ctx.Done():
			log.WarnContext(ctx).
				Int("dropped", len(outbox)).
				Msg("sender stopped before the queue was drained")
			return nil

		case message, ok := <-outbox:
			if !ok {
				return nil
			}

			if err := s.Deliver(ctx, message); err != nil {
				log.ErrorContext(ctx).
					Str("kind", string(message.Kind)).
					Str("to", message.To.String()).
					Err(err).
					Msg("message dropped")
			}
		}
	}
}

// Deliver renders a message and hands it to the transport. Transient failures are retried with
// an exponential backoff.
func (s *Sender) Deliver(ctx context.Context, message *models.OutboundMessage) error {
	subject, body, err := s.templates.Render(message)
	if err != nil {
		return err
	}

	data, err := compose(s.opts.From, message.To, subject, body, message.Attachments, s.now())
	if err != nil {
		return err
	}

	var (
		from    = s.opts.From.String()
		to      = []string{message.To.String()}
		backoff = s.opts.Backoff
	)

	for attempt := 1; ; attempt++ {
		err := s.transport.Send(ctx, from, to, data)
		if err == nil {
			break
		}

		switch {
		case isPermanentErr(err):
			return fmt.Errorf("rejected permanently: %w", err)

		case !isTransientErr(err):
			return err

		case attempt >= s.opts.Attempts:
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		log.WarnContext(ctx).
			Str("kind", string(message.Kind)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("delivery failed, retrying")

		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(2*backoff, s.opts.MaxBackoff)
	}

	log.InfoContext(ctx).
		Str("kind", string(message.Kind)).
		Str("to", message.To.String()).
		Msg("message delivered")

	if err := s.counterDao.Increment(context.WithoutCancel(ctx), s.conn, models.CounterMailsSent, 1); err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not count delivered message")
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
