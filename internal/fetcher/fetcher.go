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

// Package fetcher polls the inbound mailbox and turns every unseen message into a job or an
// immediate reply.
package fetcher

import (
	"bytes"
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/schedule"
	"github.com/lukasdietrich/autosub/internal/storage"
)

func init() {
	viper.SetDefault("fetcher.period", "1m")
	viper.SetDefault("fetcher.stallWarning", "30s")
	viper.SetDefault("registration.open", false)
}

// Options configure the fetcher.
type Options struct {
	// Period is the schedule of mailbox polls.
	Period string `validate:"required"`
	// StallWarning is the interval of warnings while the job queue is full.
	StallWarning time.Duration `validate:"gt=0"`
	// RegistrationOpen lets every address register, whitelisted or not.
	RegistrationOpen bool
}

// OptionsFromViper reads the fetcher options from viper.
//
// `fetcher.period` is a duration, a descriptor like "@every 1m" or a cron expression.
// `fetcher.stallWarning` is the interval of warnings while the job queue is full.
// `registration.open` lets every address register, whitelisted or not.
func OptionsFromViper() Options {
	return Options{
		Period:           viper.GetString("fetcher.period"),
		StallWarning:     viper.GetDuration("fetcher.stallWarning"),
		RegistrationOpen: viper.GetBool("registration.open"),
	}
}

// Fetcher is the single producer of jobs.
type Fetcher struct {
	opts         Options
	schedule     cron.Schedule
	dialer       Dialer
	conn         database.Conn
	userDao      database.UserDao
	taskDao      database.TaskDao
	progressDao  database.ProgressDao
	whitelistDao database.WhitelistDao
	counterDao   database.CounterDao
	settings     *course.SettingsReader
	idGen        storage.IDGenerator
	now          func() time.Time
}

// New creates a new fetcher.
func New(
	opts Options,
	dialer Dialer,
	conn database.Conn,
	userDao database.UserDao,
	taskDao database.TaskDao,
	progressDao database.ProgressDao,
	whitelistDao database.WhitelistDao,
	counterDao database.CounterDao,
	settings *course.SettingsReader,
	idGen storage.IDGenerator,
) (*Fetcher, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	sched, err := schedule.Parse(opts.Period)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		opts:         opts,
		schedule:     sched,
		dialer:       dialer,
		conn:         conn,
		userDao:      userDao,
		taskDao:      taskDao,
		progressDao:  progressDao,
		whitelistDao: whitelistDao,
		counterDao:   counterDao,
		settings:     settings,
		idGen:        idGen,
		now:          time.Now,
	}, nil
}

// Run polls the mailbox on every tick until ctx is done. signal is called whenever a new user
// registered.
func (f *Fetcher) Run(ctx context.Context, jobs chan<- *models.Job, outbox chan<- *models.OutboundMessage, signal func()) error {
	log.InfoContext(ctx).
		Str("period", f.opts.Period).
		Msg("fetcher started")

	schedule.Loop(ctx, f.schedule, nil, func(ctx context.Context) {
		f.Poll(ctx, jobs, outbox, signal)
	})

	return nil
}

// Poll handles every unseen message once. A message is marked seen after it was handed off.
// Messages that could not be handed off stay unseen and are fetched again by a later poll.
func (f *Fetcher) Poll(ctx context.Context, jobs chan<- *models.Job, outbox chan<- *models.OutboundMessage, signal func()) {
	mailbox, err := f.dialer.Dial(ctx)
	if err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not connect to mailbox, retrying on next tick")
		return
	}

	defer mailbox.Close()

	messages, err := mailbox.Unseen(ctx)
	if err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not fetch unseen messages, retrying on next tick")
		return
	}

	log.DebugContext(ctx).
		Int("unseen", len(messages)).
		Msg("mailbox polled")

	for _, raw := range messages {
		if ctx.Err() != nil {
			return
		}

		if err := f.handle(ctx, raw, jobs, outbox, signal); err != nil {
			if ctx.Err() == nil {
				log.ErrorContext(ctx).
					Uint32("uid", raw.UID).
					Err(err).
					Msg("could not handle message, leaving it unseen")
			}

			continue
		}

		if err := mailbox.MarkSeen(ctx, raw.UID); err != nil {
			log.WarnContext(ctx).
				Uint32("uid", raw.UID).
				Err(err).
				Msg("could not mark message as seen")
		}
	}
}

// Requeue clears the seen flag of jobs that were fetched but never graded.
func (f *Fetcher) Requeue(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	mailbox, err := f.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	defer mailbox.Close()

	uids := make([]uint32, len(jobs))
	for i, job := range jobs {
		uids[i] = job.UID
	}

	if err := mailbox.MarkUnseen(ctx, uids); err != nil {
		return err
	}

	log.InfoContext(ctx).
		Int("jobs", len(jobs)).
		Msg("ungraded jobs handed back to the mailbox")

	return nil
}

func (f *Fetcher) handle(
	ctx context.Context,
	raw RawMessage,
	jobs chan<- *models.Job,
	outbox chan<- *models.OutboundMessage,
	signal func(),
) error {
	m, err := ParseMail(bytes.NewReader(raw.Data))
	if err != nil {
		if m == nil {
			log.WarnContext(ctx).
				Uint32("uid", raw.UID).
				Err(err).
				Msg("dropping message without sender")
			return nil
		}

		log.WarnContext(ctx).
			Uint32("uid", raw.UID).
			Str("from", m.From.String()).
			Err(err).
			Msg("could not parse message")

		outbox <- models.NewOutboundMessage(m.From, models.KindInvalid).
			With(models.ParamSubject, m.Subject)
		return nil
	}

	f.count(ctx, models.CounterMailsFetched)

	registered := false

	user, err := f.userDao.FindByEmail(ctx, f.conn, m.From)
	if err != nil {
		if !database.IsErrNoRows(err) {
			return err
		}

		if user, err = f.register(ctx, m, outbox, signal); err != nil || user == nil {
			return err
		}

		registered = true
	}

	ctx = log.WithUser(ctx, user.ID)

	command, taskNr := Classify(m.Subject)

	log.InfoContext(ctx).
		Uint32("uid", raw.UID).
		Stringer("command", command).
		Str("subject", m.Subject).
		Msg("message received")

	switch command {
	case CommandSubmission:
		return f.submit(ctx, raw, m, user, taskNr, jobs)

	case CommandQuestion:
		return f.question(ctx, m, outbox)

	case CommandStatus:
		status, err := f.statusReport(ctx, user, f.now())
		if err != nil {
			return err
		}

		f.count(ctx, models.CounterStatusRequests)

		outbox <- models.NewOutboundMessage(m.From, models.KindStatus).
			With(models.ParamName, user.Name).
			With(models.ParamStatus, status)

	default:
		if registered {
			// the welcome message explains the usage
			return nil
		}

		outbox <- models.NewOutboundMessage(m.From, models.KindUsage).
			With(models.ParamSubject, m.Subject)
	}

	return nil
}

func (f *Fetcher) submit(ctx context.Context, raw RawMessage, m *Mail, user *models.UserEntity, taskNr int64, jobs chan<- *models.Job) error {
	id, err := f.idGen.GenerateID()
	if err != nil {
		return err
	}

	receivedAt := m.Date
	if receivedAt.IsZero() {
		receivedAt = f.now()
	}

	job := models.Job{
		ID:          id,
		UID:         raw.UID,
		From:        m.From,
		UserID:      user.ID,
		TaskNr:      taskNr,
		Subject:     m.Subject,
		Body:        m.Body,
		Attachments: m.Attachments,
		ReceivedAt:  receivedAt,
	}

	return f.push(log.WithJob(ctx, id), jobs, &job)
}

// push hands a job to the workers. It blocks while the queue is full and warns periodically
// about the stalled ingestion.
func (f *Fetcher) push(ctx context.Context, jobs chan<- *models.Job, job *models.Job) error {
	select {
	case jobs <- job:
		return nil
	default:
	}

	ticker := time.NewTicker(f.opts.StallWarning)
	defer ticker.Stop()

	start := time.Now()

	for {
		select {
		case jobs <- job:
			log.InfoContext(ctx).
				Dur("stalled", time.Since(start)).
				Msg("job queue accepted job again")
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			log.WarnContext(ctx).
				Dur("stalled", time.Since(start)).
				Int("capacity", cap(jobs)).
				Msg("job queue is full, ingestion paused")
		}
	}
}

func (f *Fetcher) question(ctx context.Context, m *Mail, outbox chan<- *models.OutboundMessage) error {
	settings, err := f.settings.Read(ctx, f.conn)
	if err != nil {
		return err
	}

	f.count(ctx, models.CounterQuestionsReceived)

	outbox <- models.NewOutboundMessage(m.From, models.KindQuestion).
		With(models.ParamSubject, m.Subject)

	if settings.AdminEmail.IsZero() {
		log.WarnContext(ctx).Msg("no admin address configured, question not forwarded")
		return nil
	}

	forward := models.NewOutboundMessage(settings.AdminEmail, models.KindQuestionFwd).
		With(models.ParamEmail, m.From.String()).
		With(models.ParamSubject, m.Subject).
		With(models.ParamBody, m.Body)
	forward.Attachments = m.Attachments

	outbox <- forward
	return nil
}

// register decides about mails from unknown addresses. It returns the registered user or nil
// if the address was rejected. The mail itself is handled like the mail of a known user
// afterwards.
func (f *Fetcher) register(
	ctx context.Context,
	m *Mail,
	outbox chan<- *models.OutboundMessage,
	signal func(),
) (*models.UserEntity, error) {
	allowed := f.opts.RegistrationOpen

	if !allowed {
		var err error
		if allowed, err = f.whitelistDao.Contains(ctx, f.conn, m.From); err != nil {
			return nil, err
		}
	}

	if !allowed {
		log.InfoContext(ctx).
			Str("from", m.From.String()).
			Msg("rejecting address without whitelist entry")

		f.count(ctx, models.CounterNonRegistered)
		outbox <- models.NewOutboundMessage(m.From, models.KindNotAllowed).
			With(models.ParamEmail, m.From.String())
		return nil, nil
	}

	settings, err := f.settings.Read(ctx, f.conn)
	if err != nil {
		return nil, err
	}

	now := f.now()

	if settings.RegistrationOver(now) {
		log.InfoContext(ctx).
			Str("from", m.From.String()).
			Msg("rejecting registration after the deadline")

		f.count(ctx, models.CounterNonRegistered)
		outbox <- models.NewOutboundMessage(m.From, models.KindRegOver).
			With(models.ParamDeadline, models.FormatTime(settings.RegistrationDeadline))
		return nil, nil
	}

	name := m.FromName
	if name == "" {
		name = m.From.LocalPart()
	}

	user := models.UserEntity{
		Name:      name,
		Email:     m.From,
		FirstMail: now.Unix(),
	}

	if err := f.userDao.Insert(ctx, f.conn, &user); err != nil {
		if !database.IsErrUnique(err) {
			return nil, err
		}

		// registered in the meantime, e.g. by an operator
		log.InfoContext(ctx).
			Str("from", m.From.String()).
			Msg("address registered concurrently, using existing user")

		return f.userDao.FindByEmail(ctx, f.conn, m.From)
	}

	log.InfoContext(log.WithUser(ctx, user.ID)).
		Str("from", m.From.String()).
		Msg("user registered")

	outbox <- models.NewOutboundMessage(m.From, models.KindWelcome).
		With(models.ParamName, user.Name).
		With(models.ParamEmail, m.From.String())

	signal()
	return &user, nil
}

// count increments a counter without failing the message at hand.
func (f *Fetcher) count(ctx context.Context, name string) {
	if err := f.counterDao.Increment(ctx, f.conn, name, 1); err != nil {
		log.WarnContext(ctx).
			Str("counter", name).
			Err(err).
			Msg("could not increment counter")
	}
}
