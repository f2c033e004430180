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

// Package lifecycle moves users through the tasks of a course. The Activator assigns the next
// open task to every user and the Distributor generates and sends the material of each
// assignment.
package lifecycle

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/schedule"
)

func init() {
	viper.SetDefault("lifecycle.period", "1m")
}

// ActivatorOptions configure the activator.
type ActivatorOptions struct {
	// Period is the schedule of the activator ticks.
	Period string `validate:"required"`
}

// ActivatorOptionsFromViper reads the activator options from viper.
//
// `lifecycle.period` is a duration, a descriptor like "@every 1m" or a cron expression.
func ActivatorOptionsFromViper() ActivatorOptions {
	return ActivatorOptions{
		Period: viper.GetString("lifecycle.period"),
	}
}

// Transition is the effect of a single activator evaluation on a user. Either field may be
// nil.
type Transition struct {
	Assignment *models.TaskAssignmentEntity
	Message    *models.OutboundMessage
}

// Activator assigns tasks to users as time and progress advance.
type Activator struct {
	schedule      cron.Schedule
	conn          database.Conn
	locks         *database.UserLocks
	userDao       database.UserDao
	taskDao       database.TaskDao
	progressDao   database.ProgressDao
	assignmentDao database.AssignmentDao
	noticeDao     database.NoticeDao
	now           func() time.Time
}

// NewActivator creates a new activator.
func NewActivator(
	opts ActivatorOptions,
	conn database.Conn,
	locks *database.UserLocks,
	userDao database.UserDao,
	taskDao database.TaskDao,
	progressDao database.ProgressDao,
	assignmentDao database.AssignmentDao,
	noticeDao database.NoticeDao,
) (*Activator, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	sched, err := schedule.Parse(opts.Period)
	if err != nil {
		return nil, err
	}

	return &Activator{
		schedule:      sched,
		conn:          conn,
		locks:         locks,
		userDao:       userDao,
		taskDao:       taskDao,
		progressDao:   progressDao,
		assignmentDao: assignmentDao,
		noticeDao:     noticeDao,
		now:           time.Now,
	}, nil
}

// Run evaluates all users on every tick and whenever a value arrives on wake. New assignments
// are handed to the distributor, notices go to outbox. Run returns once ctx is done.
func (a *Activator) Run(
	ctx context.Context,
	wake <-chan struct{},
	assignments chan<- *models.TaskAssignmentEntity,
	outbox chan<- *models.OutboundMessage,
) error {
	log.InfoContext(ctx).Msg("activator started")

	schedule.Loop(ctx, a.schedule, wake, func(ctx context.Context) {
		transitions, err := a.Evaluate(ctx)
		if err != nil {
			log.ErrorContext(ctx).Err(err).Msg("could not evaluate task lifecycle")
			return
		}

		for _, transition := range transitions {
			if transition.Message != nil {
				outbox <- transition.Message
			}

			if transition.Assignment != nil {
				select {
				case assignments <- transition.Assignment:
				case <-ctx.Done():
					// the assignment stays pending and is picked up on the next start
				}
			}
		}
	})

	return nil
}

// Evaluate runs a single tick over all users. A failure for one user is logged and does not
// affect the others.
func (a *Activator) Evaluate(ctx context.Context) ([]Transition, error) {
	tasks, err := a.taskDao.FindActive(ctx, a.conn)
	if err != nil {
		return nil, err
	}

	users, err := a.userDao.FindAll(ctx, a.conn)
	if err != nil {
		return nil, err
	}

	var transitions []Transition

	for _, user := range users {
		userCtx := log.WithUser(ctx, user.ID)

		transition, err := a.evaluateUser(userCtx, user.ID, tasks)
		if err != nil {
			log.ErrorContext(userCtx).Err(err).Msg("could not evaluate user, abandoning transition")
			continue
		}

		if transition != nil {
			transitions = append(transitions, *transition)
		}
	}

	log.DebugContext(ctx).
		Int("users", len(users)).
		Int("transitions", len(transitions)).
		Msg("task lifecycle evaluated")

	return transitions, nil
}

func (a *Activator) evaluateUser(ctx context.Context, userID int64, tasks []models.TaskEntity) (*Transition, error) {
	var transition *Transition

	err := database.WithUserLock(ctx, a.conn, a.locks, userID, func(tx database.Tx) error {
		var err error
		transition, err = a.evaluateUserTx(ctx, tx, userID, tasks)
		return err
	})

	return transition, err
}

func (a *Activator) evaluateUserTx(ctx context.Context, tx database.Tx, userID int64, tasks []models.TaskEntity) (*Transition, error) {
	user, err := a.userDao.FindByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	progress, err := a.progressDao.FindByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	completed := make(map[int64]bool, len(progress))
	for _, p := range progress {
		completed[p.TaskNr] = p.IsCompleted()
	}

	now := a.now()

	// tasks are ordered by number, so the first match is the lowest
	var (
		current  *models.TaskEntity
		next     *models.TaskEntity
		upcoming bool
		allDone  = true
	)

	for i := range tasks {
		task := &tasks[i]

		if user.CurrentTask.Valid && user.CurrentTask.Int64 == task.Nr {
			current = task
		}

		if completed[task.Nr] {
			continue
		}

		allDone = false

		switch task.Window(now) {
		case models.WindowOpen:
			if next == nil {
				next = task
			}

		case models.WindowNotStarted:
			upcoming = true
		}
	}

	if current != nil && !completed[current.Nr] && current.Window(now) == models.WindowOpen {
		return nil, nil
	}

	if next != nil {
		return a.assign(ctx, tx, user, next, now)
	}

	if upcoming || len(tasks) == 0 {
		return nil, nil
	}

	kind := models.KindTasksOver
	if allDone {
		kind = models.KindCurLast
	}

	return a.notify(ctx, tx, user, kind, now)
}

func (a *Activator) assign(ctx context.Context, tx database.Tx, user *models.UserEntity, task *models.TaskEntity, now time.Time) (*Transition, error) {
	if !user.CurrentTask.Valid || user.CurrentTask.Int64 != task.Nr {
		user.CurrentTask.Int64 = task.Nr
		user.CurrentTask.Valid = true

		if err := a.userDao.Update(ctx, tx, user); err != nil {
			return nil, err
		}
	}

	_, err := a.assignmentDao.Find(ctx, tx, user.ID, task.Nr)
	if err == nil {
		return nil, nil
	}

	if !database.IsErrNoRows(err) {
		return nil, err
	}

	assignment := models.TaskAssignmentEntity{
		UserID:     user.ID,
		TaskNr:     task.Nr,
		AssignedAt: now.Unix(),
	}

	if err := a.assignmentDao.Insert(ctx, tx, &assignment); err != nil {
		return nil, err
	}

	log.InfoContext(ctx).
		Int64("task", task.Nr).
		Msg("task assigned")

	return &Transition{Assignment: &assignment}, nil
}

func (a *Activator) notify(ctx context.Context, tx database.Tx, user *models.UserEntity, kind models.MessageKind, now time.Time) (*Transition, error) {
	notice := models.NoticeEntity{
		UserID: user.ID,
		Kind:   kind,
		SentAt: now.Unix(),
	}

	inserted, err := a.noticeDao.Insert(ctx, tx, &notice)
	if err != nil || !inserted {
		return nil, err
	}

	log.InfoContext(ctx).
		Str("kind", string(kind)).
		Msg("course finished for user")

	message := models.NewOutboundMessage(user.Email, kind).
		With(models.ParamName, user.Name)

	return &Transition{Message: message}, nil
}
