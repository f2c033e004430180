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

// AssignmentDao is a data access object for tasks handed out to users.
type AssignmentDao interface {
	// Insert records a new assignment. Assigning the same task to a user twice fails with a
	// unique constraint error.
	Insert(context.Context, Queryer, *models.TaskAssignmentEntity) error
	// Update stores the generated material of an assignment.
	Update(context.Context, Queryer, *models.TaskAssignmentEntity) error
	// Find returns the assignment of a task to a user.
	Find(ctx context.Context, q Queryer, userID, taskNr int64) (*models.TaskAssignmentEntity, error)
	// FindPending returns all assignments without generated material.
	FindPending(context.Context, Queryer) ([]models.TaskAssignmentEntity, error)
}

// NewAssignmentDao creates a new AssignmentDao.
func NewAssignmentDao() AssignmentDao {
	return assignmentDao{}
}

type assignmentDao struct{}

func (assignmentDao) Insert(ctx context.Context, q Queryer, assignment *models.TaskAssignmentEntity) error {
	const query = `
		insert into "task_assignments" ( "user_id", "task_nr", "parameters", "description", "attachments", "assigned_at", "generated_at" )
		values ( :user_id, :task_nr, :parameters, :description, :attachments, :assigned_at, :generated_at ) ;
	`

	_, err := execNamed(ctx, q, query, assignment)
	return err
}

func (assignmentDao) Update(ctx context.Context, q Queryer, assignment *models.TaskAssignmentEntity) error {
	const query = `
		update "task_assignments"
		set "parameters" = :parameters ,
			"description" = :description ,
			"attachments" = :attachments ,
			"generated_at" = :generated_at
		where "user_id" = :user_id and "task_nr" = :task_nr ;
	`

	result, err := execNamed(ctx, q, query, assignment)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (assignmentDao) Find(ctx context.Context, q Queryer, userID, taskNr int64) (*models.TaskAssignmentEntity, error) {
	const query = `
		select *
		from "task_assignments"
		where "user_id" = $1 and "task_nr" = $2
		limit 1 ;
	`

	var assignment models.TaskAssignmentEntity
	return &assignment, selectOne(ctx, q, &assignment, query, userID, taskNr)
}

func (assignmentDao) FindPending(ctx context.Context, q Queryer) ([]models.TaskAssignmentEntity, error) {
	const query = `
		select *
		from "task_assignments"
		where "generated_at" is null
		order by "assigned_at" asc, "user_id" asc ;
	`

	var assignments []models.TaskAssignmentEntity
	return assignments, selectSlice(ctx, q, &assignments, query)
}
