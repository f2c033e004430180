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

// Package pipeline connects the stages through bounded queues and orders their shutdown.
package pipeline

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/dispatch"
	"github.com/lukasdietrich/autosub/internal/fetcher"
	"github.com/lukasdietrich/autosub/internal/grading"
	"github.com/lukasdietrich/autosub/internal/lifecycle"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/schedule"
)

func init() {
	viper.SetDefault("queue.capacity", 16)
	viper.SetDefault("shutdown.grace", "30s")
}

// Options configure the queues and the shutdown.
type Options struct {
	// Capacity is the size of every queue.
	Capacity int `validate:"gt=0"`
	// Grace is the time the sender gets to drain the outbound queue on shutdown.
	Grace time.Duration `validate:"gt=0"`
}

// OptionsFromViper reads the pipeline options from viper.
//
// `queue.capacity` is the size of every queue.
// `shutdown.grace` is the time the sender gets to drain the outbound queue on shutdown.
func OptionsFromViper() Options {
	return Options{
		Capacity: viper.GetInt("queue.capacity"),
		Grace:    viper.GetDuration("shutdown.grace"),
	}
}

type ingestion interface {
	Run(ctx context.Context, jobs chan<- *models.Job, outbox chan<- *models.OutboundMessage, signal func()) error
	Requeue(ctx context.Context, jobs []*models.Job) error
}

type grader interface {
	Run(ctx context.Context, jobs <-chan *models.Job, outbox chan<- *models.OutboundMessage, signal func()) error
}

type activator interface {
	Run(ctx context.Context, wake <-chan struct{}, assignments chan<- *models.TaskAssignmentEntity, outbox chan<- *models.OutboundMessage) error
}

type distributor interface {
	Run(ctx context.Context, assignments <-chan *models.TaskAssignmentEntity, outbox chan<- *models.OutboundMessage) error
}

type sender interface {
	Prepare(ctx context.Context) error
	Run(ctx context.Context, outbox <-chan *models.OutboundMessage) error
}

// Pipeline runs all stages.
type Pipeline struct {
	opts        Options
	fetcher     ingestion
	pool        grader
	activator   activator
	distributor distributor
	sender      sender
}

// New creates a new pipeline.
func New(
	opts Options,
	fetcher *fetcher.Fetcher,
	pool *grading.Pool,
	activator *lifecycle.Activator,
	distributor *lifecycle.Distributor,
	sender *dispatch.Sender,
) (*Pipeline, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:        opts,
		fetcher:     fetcher,
		pool:        pool,
		activator:   activator,
		distributor: distributor,
		sender:      sender,
	}, nil
}

// Run starts every stage and blocks until ctx is done and the stages stopped. The sender is
// started first and stopped last: it drains the outbound queue for at most the grace period
// after every other stage returned. Jobs still queued on shutdown are handed back to the
// mailbox.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.sender.Prepare(ctx); err != nil {
		return err
	}

	var (
		jobs        = make(chan *models.Job, p.opts.Capacity)
		outbox      = make(chan *models.OutboundMessage, p.opts.Capacity)
		assignments = make(chan *models.TaskAssignmentEntity, p.opts.Capacity)
		wake        = make(chan struct{}, 1)
	)

	signal := func() {
		schedule.Poke(wake)
	}

	senderCtx, cancelSender := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSender()

	senderDone := make(chan error, 1)
	go func() {
		senderDone <- p.sender.Run(log.WithOrigin(senderCtx, "sender"), outbox)
	}()

	producers, producersCtx := errgroup.WithContext(ctx)

	producers.Go(func() error {
		return p.fetcher.Run(log.WithOrigin(producersCtx, "fetcher"), jobs, outbox, signal)
	})

	producers.Go(func() error {
		return p.pool.Run(producersCtx, jobs, outbox, signal)
	})

	producers.Go(func() error {
		return p.activator.Run(log.WithOrigin(producersCtx, "activator"), wake, assignments, outbox)
	})

	producers.Go(func() error {
		return p.distributor.Run(log.WithOrigin(producersCtx, "distributor"), assignments, outbox)
	})

	log.InfoContext(ctx).
		Int("capacity", p.opts.Capacity).
		Msg("pipeline started")

	err := producers.Wait()

	// every producer returned, so nothing sends on outbox anymore
	close(outbox)

	p.requeue(ctx, jobs)

	if pending := len(assignments); pending > 0 {
		log.InfoContext(ctx).
			Int("assignments", pending).
			Msg("assignments stay pending until the next start")
	}

	log.InfoContext(ctx).
		Int("messages", len(outbox)).
		Dur("grace", p.opts.Grace).
		Msg("waiting for the sender to drain the outbound queue")

	timer := time.NewTimer(p.opts.Grace)
	defer timer.Stop()

	select {
	case <-senderDone:
	case <-timer.C:
		cancelSender()
		<-senderDone
	}

	log.InfoContext(ctx).Msg("pipeline stopped")
	return err
}

// requeue hands jobs that were never picked up back to the fetcher.
func (p *Pipeline) requeue(ctx context.Context, jobs chan *models.Job) {
	var leftover []*models.Job

drain:
	for {
		select {
		case job := <-jobs:
			leftover = append(leftover, job)
		default:
			break drain
		}
	}

	if len(leftover) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.Grace)
	defer cancel()

	if err := p.fetcher.Requeue(ctx, leftover); err != nil {
		log.ErrorContext(ctx).
			Int("jobs", len(leftover)).
			Err(err).
			Msg("could not requeue jobs")
	}
}
