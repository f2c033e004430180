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

// TaskDao is a data access object for the configured tasks.
type TaskDao interface {
	// Upsert inserts a task or replaces the definition of an existing one with the same number.
	Upsert(context.Context, Queryer, *models.TaskEntity) error
	// FindByNr returns the task with the given number.
	FindByNr(context.Context, Queryer, int64) (*models.TaskEntity, error)
	// FindAll returns all tasks ordered by their number.
	FindAll(context.Context, Queryer) ([]models.TaskEntity, error)
	// FindActive returns all active tasks ordered by their number.
	FindActive(context.Context, Queryer) ([]models.TaskEntity, error)
}

// NewTaskDao creates a new TaskDao.
func NewTaskDao() TaskDao {
	return taskDao{}
}

type taskDao struct{}

func (taskDao) Upsert(ctx context.Context, q Queryer, task *models.TaskEntity) error {
	const query = `
		insert into "tasks" ( "nr", "start_at", "deadline_at", "path", "generator", "test", "score", "operator", "active" )
		values ( :nr, :start_at, :deadline_at, :path, :generator, :test, :score, :operator, :active )
		on conflict ( "nr" ) do update
		set "start_at" = excluded."start_at" ,
			"deadline_at" = excluded."deadline_at" ,
			"path" = excluded."path" ,
			"generator" = excluded."generator" ,
			"test" = excluded."test" ,
			"score" = excluded."score" ,
			"operator" = excluded."operator" ,
			"active" = excluded."active" ;
	`

	_, err := execNamed(ctx, q, query, task)
	return err
}

func (taskDao) FindByNr(ctx context.Context, q Queryer, nr int64) (*models.TaskEntity, error) {
	const query = `
		select *
		from "tasks"
		where "nr" = $1
		limit 1 ;
	`

	var task models.TaskEntity
	return &task, selectOne(ctx, q, &task, query, nr)
}

func (taskDao) FindAll(ctx context.Context, q Queryer) ([]models.TaskEntity, error) {
	const query = `
		select *
		from "tasks"
		order by "nr" asc ;
	`

	var tasks []models.TaskEntity
	return tasks, selectSlice(ctx, q, &tasks, query)
}

func (taskDao) FindActive(ctx context.Context, q Queryer) ([]models.TaskEntity, error) {
	const query = `
		select *
		from "tasks"
		where "active" = 1
		order by "nr" asc ;
	`

	var tasks []models.TaskEntity
	return tasks, selectSlice(ctx, q, &tasks, query)
}
