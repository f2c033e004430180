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
	"database/sql"
	"time"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
)

// Outcome is the effect a graded submission had on the progress of a user.
type Outcome int

const (
	// OutcomeFailed means the submission did not pass, whether or not the task was completed
	// before.
	OutcomeFailed Outcome = iota
	// OutcomeFirstSuccess means the submission completed the task.
	OutcomeFirstSuccess
	// OutcomeAlreadyDone means the submission passed a task completed by an earlier submission.
	OutcomeAlreadyDone
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstSuccess:
		return "firstSuccess"
	case OutcomeAlreadyDone:
		return "alreadyDone"
	default:
		return "failed"
	}
}

// Bookkeeper records graded submissions. Every submission is recorded in a single transaction
// while holding the lock of the user, so that progress and task statistics never disagree.
type Bookkeeper struct {
	conn        database.Conn
	locks       *database.UserLocks
	userDao     database.UserDao
	progressDao database.ProgressDao
	statsDao    database.StatsDao
	now         func() time.Time
}

// NewBookkeeper creates a new Bookkeeper.
func NewBookkeeper(
	conn database.Conn,
	locks *database.UserLocks,
	userDao database.UserDao,
	progressDao database.ProgressDao,
	statsDao database.StatsDao,
) *Bookkeeper {
	return &Bookkeeper{
		conn:        conn,
		locks:       locks,
		userDao:     userDao,
		progressDao: progressDao,
		statsDao:    statsDao,
		now:         time.Now,
	}
}

// Record counts a graded submission of a user to a task.
func (b *Bookkeeper) Record(ctx context.Context, userID, taskNr int64, passed bool) (Outcome, error) {
	var outcome Outcome

	err := database.WithUserLock(ctx, b.conn, b.locks, userID, func(tx database.Tx) error {
		now := b.now().Unix()

		progress, err := b.progressDao.Find(ctx, tx, userID, taskNr)
		if err != nil {
			if !database.IsErrNoRows(err) {
				return err
			}

			progress = &models.TaskProgressEntity{UserID: userID, TaskNr: taskNr}
		}

		var (
			completed    = progress.IsCompleted()
			firstSuccess = passed && !completed
			successful   int64
		)

		progress.NrSubmissions++

		if firstSuccess {
			progress.FirstSuccessful = sql.NullInt64{Int64: now, Valid: true}
			successful = 1
		}

		if progress.ID == 0 {
			err = b.progressDao.Insert(ctx, tx, progress)
		} else {
			err = b.progressDao.Update(ctx, tx, progress)
		}

		if err != nil {
			return err
		}

		if err := b.statsDao.Ensure(ctx, tx, taskNr); err != nil {
			return err
		}

		if err := b.statsDao.Increment(ctx, tx, taskNr, 1, successful); err != nil {
			return err
		}

		if err := b.updateUser(ctx, tx, userID, taskNr, firstSuccess, now); err != nil {
			return err
		}

		switch {
		case firstSuccess:
			outcome = OutcomeFirstSuccess
		case passed:
			outcome = OutcomeAlreadyDone
		default:
			outcome = OutcomeFailed
		}

		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}

	log.InfoContext(ctx).
		Int64("task", taskNr).
		Stringer("outcome", outcome).
		Msg("submission recorded")

	return outcome, nil
}

func (b *Bookkeeper) updateUser(ctx context.Context, tx database.Tx, userID, taskNr int64, firstSuccess bool, now int64) error {
	user, err := b.userDao.FindByID(ctx, tx, userID)
	if err != nil {
		return err
	}

	changed := false

	if firstSuccess {
		user.LastDone = sql.NullInt64{Int64: now, Valid: true}
		changed = true
	}

	if !user.CurrentTask.Valid {
		user.CurrentTask = sql.NullInt64{Int64: taskNr, Valid: true}
		changed = true
	}

	if !changed {
		return nil
	}

	return b.userDao.Update(ctx, tx, user)
}
