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

package grading

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/storage"
)

func init() {
	viper.SetDefault("grading.workers", 4)
}

// PoolOptions configure the worker pool.
type PoolOptions struct {
	// Workers is the number of jobs graded in parallel.
	Workers int `validate:"gt=0"`
}

// PoolOptionsFromViper reads the pool options from viper.
//
// `grading.workers` is the number of jobs graded in parallel.
func PoolOptionsFromViper() PoolOptions {
	return PoolOptions{
		Workers: viper.GetInt("grading.workers"),
	}
}

// Workspaces materializes submissions for the test executable.
type Workspaces interface {
	Create(ctx context.Context, body string, attachments []models.Attachment) (*storage.Workspace, error)
	Archive(ctx context.Context, ws *storage.Workspace, userID, taskNr int64) error
	Remove(ctx context.Context, ws *storage.Workspace) error
}

// Pool grades jobs with a fixed number of workers.
type Pool struct {
	opts       PoolOptions
	conn       database.Conn
	taskDao    database.TaskDao
	workspaces Workspaces
	grader     Grader
	bookkeeper *Bookkeeper
	now        func() time.Time
}

// NewPool creates a new worker pool.
func NewPool(
	opts PoolOptions,
	conn database.Conn,
	taskDao database.TaskDao,
	workspaces *storage.Workspaces,
	grader Grader,
	bookkeeper *Bookkeeper,
) (*Pool, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return &Pool{
		opts:       opts,
		conn:       conn,
		taskDao:    taskDao,
		workspaces: workspaces,
		grader:     grader,
		bookkeeper: bookkeeper,
		now:        time.Now,
	}, nil
}

// Run starts the workers and blocks until all of them returned. Workers stop taking new jobs
// once ctx is done, but finish the job at hand. Every job results in exactly one message on
// outbox. signal is called whenever a user completed a task.
func (p *Pool) Run(ctx context.Context, jobs <-chan *models.Job, outbox chan<- *models.OutboundMessage, signal func()) error {
	var g errgroup.Group

	for i := 0; i < p.opts.Workers; i++ {
		workerCtx := log.WithOrigin(ctx, fmt.Sprintf("worker-%d", i))

		g.Go(func() error {
			p.work(workerCtx, jobs, outbox, signal)
			return nil
		})
	}

	log.InfoContext(ctx).
		Int("workers", p.opts.Workers).
		Msg("grading workers started")

	return g.Wait()
}

func (p *Pool) work(ctx context.Context, jobs <-chan *models.Job, outbox chan<- *models.OutboundMessage, signal func()) {
	for {
		select {
		case <-ctx.Done():
			return

		case job, ok := <-jobs:
			if !ok {
				return
			}

			message, outcome := p.Process(ctx, job)
			outbox <- message

			if outcome == OutcomeFirstSuccess {
				signal()
			}
		}
	}
}

// Process grades a single job and returns the message for the submitting user.
func (p *Pool) Process(ctx context.Context, job *models.Job) (message *models.OutboundMessage, outcome Outcome) {
	ctx = log.WithUser(log.WithJob(context.WithoutCancel(ctx), job.ID), job.UserID)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx).
				Interface("panic", r).
				Msg("grading job panicked")

			message = p.message(job, models.KindError, job.TaskNr)
			outcome = OutcomeFailed
		}
	}()

	log.InfoContext(ctx).
		Int64("task", job.TaskNr).
		Int("attachments", len(job.Attachments)).
		Msg("grading job")

	task, err := p.taskDao.FindByNr(ctx, p.conn, job.TaskNr)
	if err != nil && !database.IsErrNoRows(err) {
		log.ErrorContext(ctx).Err(err).Msg("could not resolve task")
		return p.message(job, models.KindError, job.TaskNr), OutcomeFailed
	}

	if err != nil || !task.Active {
		return p.message(job, models.KindInvalid, job.TaskNr).
			With(models.ParamSubject, job.Subject), OutcomeFailed
	}

	switch task.Window(p.now()) {
	case models.WindowNotStarted:
		return p.message(job, models.KindNotStarted, task.Nr).
			With(models.ParamStart, models.FormatTime(task.Start())), OutcomeFailed

	case models.WindowClosed:
		return p.message(job, models.KindDeadTask, task.Nr).
			With(models.ParamDeadline, models.FormatTime(task.Deadline())), OutcomeFailed
	}

	verdict, err := p.grade(ctx, task, job)
	if err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not prepare workspace")
		return p.message(job, models.KindError, task.Nr), OutcomeFailed
	}

	outcome, err = p.bookkeeper.Record(ctx, job.UserID, task.Nr, verdict.Passed)
	if err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not record submission, abandoning job")
		return p.message(job, models.KindError, task.Nr), OutcomeFailed
	}

	switch outcome {
	case OutcomeFirstSuccess:
		message = p.message(job, models.KindCongrats, task.Nr)
	case OutcomeAlreadyDone:
		message = p.message(job, models.KindAlreadyDone, task.Nr)
	default:
		message = p.message(job, models.KindFailed, task.Nr)
	}

	return message.With(models.ParamFeedback, verdict.Feedback), outcome
}

// grade runs the test in a fresh workspace and archives the workspace afterwards.
func (p *Pool) grade(ctx context.Context, task *models.TaskEntity, job *models.Job) (*Verdict, error) {
	ws, err := p.workspaces.Create(ctx, job.Body, job.Attachments)
	if err != nil {
		return nil, err
	}

	verdict := p.grader.Grade(ctx, task, ws, job.UserID)

	if err := p.workspaces.Archive(ctx, ws, job.UserID, task.Nr); err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not archive submission")
		p.workspaces.Remove(ctx, ws)
	}

	return verdict, nil
}

func (p *Pool) message(job *models.Job, kind models.MessageKind, taskNr int64) *models.OutboundMessage {
	return models.NewOutboundMessage(job.From, kind).
		With(models.ParamTask, strconv.FormatInt(taskNr, 10))
}
