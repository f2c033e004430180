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

// StatsDao is a data access object for the aggregated task statistics.
type StatsDao interface {
	// Ensure creates an empty statistic for a task if none exists yet.
	Ensure(ctx context.Context, q Queryer, taskNr int64) error
	// Increment adds to the counters of a task.
	Increment(ctx context.Context, q Queryer, taskNr, submissions, successful int64) error
	// Replace overwrites the counters of a task.
	Replace(context.Context, Queryer, *models.TaskStatsEntity) error
	// FindByTask returns the statistic of a task.
	FindByTask(ctx context.Context, q Queryer, taskNr int64) (*models.TaskStatsEntity, error)
	// FindAll returns all statistics ordered by task number.
	FindAll(context.Context, Queryer) ([]models.TaskStatsEntity, error)
}

// NewStatsDao creates a new StatsDao.
func NewStatsDao() StatsDao {
	return statsDao{}
}

type statsDao struct{}

func (statsDao) Ensure(ctx context.Context, q Queryer, taskNr int64) error {
	const query = `
		insert or ignore into "task_stats" ( "task_nr" )
		values ( $1 ) ;
	`

	_, err := execPositional(ctx, q, query, taskNr)
	return err
}

func (statsDao) Increment(ctx context.Context, q Queryer, taskNr, submissions, successful int64) error {
	const query = `
		update "task_stats"
		set "nr_submissions" = "nr_submissions" + $2 ,
			"nr_successful" = "nr_successful" + $3
		where "task_nr" = $1 ;
	`

	result, err := execPositional(ctx, q, query, taskNr, submissions, successful)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (statsDao) Replace(ctx context.Context, q Queryer, stats *models.TaskStatsEntity) error {
	const query = `
		insert into "task_stats" ( "task_nr", "nr_submissions", "nr_successful" )
		values ( :task_nr, :nr_submissions, :nr_successful )
		on conflict ( "task_nr" ) do update
		set "nr_submissions" = excluded."nr_submissions" ,
			"nr_successful" = excluded."nr_successful" ;
	`

	_, err := execNamed(ctx, q, query, stats)
	return err
}

func (statsDao) FindByTask(ctx context.Context, q Queryer, taskNr int64) (*models.TaskStatsEntity, error) {
	const query = `
		select *
		from "task_stats"
		where "task_nr" = $1
		limit 1 ;
	`

	var stats models.TaskStatsEntity
	return &stats, selectOne(ctx, q, &stats, query, taskNr)
}

func (statsDao) FindAll(ctx context.Context, q Queryer) ([]models.TaskStatsEntity, error) {
	const query = `
		select *
		from "task_stats"
		order by "task_nr" asc ;
	`

	var stats []models.TaskStatsEntity
	return stats, selectSlice(ctx, q, &stats, query)
}
