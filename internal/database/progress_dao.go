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

package database

import (
	"context"

	"github.com/lukasdietrich/autosub/internal/models"
)

// ProgressDao is a data access object for the per user and task submission records.
type ProgressDao interface {
	// Insert inserts a new record and sets the generated id.
	Insert(context.Context, Queryer, *models.TaskProgressEntity) error
	// Update updates the counters of an existing record.
	Update(context.Context, Queryer, *models.TaskProgressEntity) error
	// Find returns the record of a user for a task.
	Find(ctx context.Context, q Queryer, userID, taskNr int64) (*models.TaskProgressEntity, error)
	// FindByUser returns all records of a user ordered by task number.
	FindByUser(ctx context.Context, q Queryer, userID int64) ([]models.TaskProgressEntity, error)
	// SumByTask aggregates all records of a task the same way task stats are tracked.
	SumByTask(ctx context.Context, q Queryer, taskNr int64) (*models.TaskStatsEntity, error)
}

// NewProgressDao creates a new ProgressDao.
func NewProgressDao() ProgressDao {
	return progressDao{}
}

type progressDao struct{}

func (progressDao) Insert(ctx context.Context, q Queryer, progress *models.TaskProgressEntity) error {
	const query = `
		insert into "user_tasks" ( "user_id", "task_nr", "nr_submissions", "first_successful" )
		values ( :user_id, :task_nr, :nr_submissions, :first_successful ) ;
	`

	result, err := execNamed(ctx, q, query, progress)
	if err != nil {
		return err
	}

	progress.ID, err = result.LastInsertId()
	return err
}

func (progressDao) Update(ctx context.Context, q Queryer, progress *models.TaskProgressEntity) error {
	const query = `
		update "user_tasks"
		set "nr_submissions" = :nr_submissions ,
			"first_successful" = :first_successful
		where "id" = :id ;
	`

	result, err := execNamed(ctx, q, query, progress)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (progressDao) Find(ctx context.Context, q Queryer, userID, taskNr int64) (*models.TaskProgressEntity, error) {
	const query = `
		select *
		from "user_tasks"
		where "user_id" = $1 and "task_nr" = $2
		limit 1 ;
	`

	var progress models.TaskProgressEntity
	return &progress, selectOne(ctx, q, &progress, query, userID, taskNr)
}

func (progressDao) FindByUser(ctx context.Context, q Queryer, userID int64) ([]models.TaskProgressEntity, error) {
	const query = `
		select *
		from "user_tasks"
		where "user_id" = $1
		order by "task_nr" asc ;
	`

	var progress []models.TaskProgressEntity
	return progress, selectSlice(ctx, q, &progress, query, userID)
}

func (progressDao) SumByTask(ctx context.Context, q Queryer, taskNr int64) (*models.TaskStatsEntity, error) {
	const query = `
		select
			$1 as "task_nr" ,
			coalesce(sum("nr_submissions"), 0) as "nr_submissions" ,
			count("first_successful") as "nr_successful"
		from "user_tasks"
		where "task_nr" = $1 ;
	`

	var stats models.TaskStatsEntity
	return &stats, selectOne(ctx, q, &stats, query, taskNr)
}
