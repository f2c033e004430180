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

package course

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
)

// Bootstrapper seeds the database from a course definition and the built-in defaults. Running
// it repeatedly is safe: edits made to canned messages survive, tasks and statistics are
// reconciled with the course file.
type Bootstrapper struct {
	conn         database.Conn
	taskDao      database.TaskDao
	statsDao     database.StatsDao
	progressDao  database.ProgressDao
	counterDao   database.CounterDao
	whitelistDao database.WhitelistDao
	messageDao   database.MessageDao
	configDao    database.ConfigDao
}

// NewBootstrapper creates a new Bootstrapper.
func NewBootstrapper(
	conn database.Conn,
	taskDao database.TaskDao,
	statsDao database.StatsDao,
	progressDao database.ProgressDao,
	counterDao database.CounterDao,
	whitelistDao database.WhitelistDao,
	messageDao database.MessageDao,
	configDao database.ConfigDao,
) *Bootstrapper {
	return &Bootstrapper{
		conn:         conn,
		taskDao:      taskDao,
		statsDao:     statsDao,
		progressDao:  progressDao,
		counterDao:   counterDao,
		whitelistDao: whitelistDao,
		messageDao:   messageDao,
		configDao:    configDao,
	}
}

// Bootstrap applies the course definition in a single transaction.
func (b *Bootstrapper) Bootstrap(ctx context.Context, course *Course) error {
	messages, err := DefaultMessages()
	if err != nil {
		return err
	}

	return database.InTx(ctx, b.conn, func(tx database.Tx) error {
		if err := b.syncTasks(ctx, tx, course.Tasks); err != nil {
			return fmt.Errorf("could not synchronize tasks: %w", err)
		}

		if err := b.reconcileStats(ctx, tx); err != nil {
			return fmt.Errorf("could not reconcile task statistics: %w", err)
		}

		for _, name := range models.Counters {
			if err := b.counterDao.Ensure(ctx, tx, name); err != nil {
				return err
			}
		}

		for _, addr := range course.Whitelist {
			if err := b.whitelistDao.Insert(ctx, tx, &models.WhitelistEntity{Email: addr}); err != nil {
				return err
			}
		}

		for i := range messages {
			if err := b.messageDao.InsertIfAbsent(ctx, tx, &messages[i]); err != nil {
				return err
			}
		}

		return b.seedConfig(ctx, tx, course)
	})
}

// syncTasks writes every task of the course and deactivates tasks, that are no longer part of
// it. Tasks are never deleted, because progress may reference them.
func (b *Bootstrapper) syncTasks(ctx context.Context, tx database.Tx, tasks []models.TaskEntity) error {
	configured := make(map[int64]bool)

	for i := range tasks {
		if err := b.taskDao.Upsert(ctx, tx, &tasks[i]); err != nil {
			return err
		}

		configured[tasks[i].Nr] = true
	}

	existing, err := b.taskDao.FindAll(ctx, tx)
	if err != nil {
		return err
	}

	for _, task := range existing {
		if configured[task.Nr] || !task.Active {
			continue
		}

		log.WarnContext(ctx).
			Int64("task", task.Nr).
			Msg("deactivating task missing from the course file")

		task.Active = false
		if err := b.taskDao.Upsert(ctx, tx, &task); err != nil {
			return err
		}
	}

	return nil
}

// reconcileStats ensures every task has a statistic matching the recorded progress.
func (b *Bootstrapper) reconcileStats(ctx context.Context, tx database.Tx) error {
	tasks, err := b.taskDao.FindAll(ctx, tx)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		expected, err := b.progressDao.SumByTask(ctx, tx, task.Nr)
		if err != nil {
			return err
		}

		actual, err := b.statsDao.FindByTask(ctx, tx, task.Nr)
		if err != nil && !database.IsErrNoRows(err) {
			return err
		}

		if err == nil && *actual == *expected {
			continue
		}

		if err == nil {
			log.WarnContext(ctx).
				Int64("task", task.Nr).
				Int64("submissions", actual.NrSubmissions).
				Int64("expectedSubmissions", expected.NrSubmissions).
				Msg("correcting task statistics")
		}

		if err := b.statsDao.Replace(ctx, tx, expected); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bootstrapper) seedConfig(ctx context.Context, tx database.Tx, course *Course) error {
	var deadline string
	if !course.RegistrationDeadline.IsZero() {
		deadline = course.RegistrationDeadline.UTC().Format(time.RFC3339)
	}

	defaults := []models.ConfigEntity{
		{Item: models.ConfigArchiveDir, Content: viper.GetString("storage.archive.foldername")},
	}

	overrides := []models.ConfigEntity{
		{Item: models.ConfigNumWorkers, Content: strconv.Itoa(viper.GetInt("grading.workers"))},
		{Item: models.ConfigNumTasks, Content: strconv.Itoa(len(course.Tasks))},
		{Item: models.ConfigRegistrationDeadline, Content: deadline},
		{Item: models.ConfigAdminEmail, Content: course.AdminEmail.String()},
	}

	for i := range defaults {
		if err := b.configDao.InsertIfAbsent(ctx, tx, &defaults[i]); err != nil {
			return err
		}
	}

	for i := range overrides {
		if err := b.configDao.Upsert(ctx, tx, &overrides[i]); err != nil {
			return err
		}
	}

	return nil
}
