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

// UserDao is a data access object for all user related queries.
type UserDao interface {
	// Insert inserts a new user and sets the generated id.
	Insert(context.Context, Queryer, *models.UserEntity) error
	// Update updates an existing user identified by its id.
	Update(context.Context, Queryer, *models.UserEntity) error
	// FindByID returns the user with the given id.
	FindByID(context.Context, Queryer, int64) (*models.UserEntity, error)
	// FindByEmail returns the user registered with the given address.
	FindByEmail(context.Context, Queryer, models.Address) (*models.UserEntity, error)
	// FindAll returns all users ordered by id.
	FindAll(context.Context, Queryer) ([]models.UserEntity, error)
}

// NewUserDao creates a new UserDao.
func NewUserDao() UserDao {
	return userDao{}
}

type userDao struct{}

func (userDao) Insert(ctx context.Context, q Queryer, user *models.UserEntity) error {
	const query = `
		insert into "users" ( "name", "email", "first_mail", "last_done", "current_task" )
		values ( :name, :email, :first_mail, :last_done, :current_task ) ;
	`

	result, err := execNamed(ctx, q, query, user)
	if err != nil {
		return err
	}

	user.ID, err = result.LastInsertId()
	return err
}

func (userDao) Update(ctx context.Context, q Queryer, user *models.UserEntity) error {
	const query = `
		update "users"
		set "name" = :name ,
			"email" = :email ,
			"last_done" = :last_done ,
			"current_task" = :current_task
		where "id" = :id ;
	`

	result, err := execNamed(ctx, q, query, user)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (userDao) FindByID(ctx context.Context, q Queryer, id int64) (*models.UserEntity, error) {
	const query = `
		select *
		from "users"
		where "id" = $1
		limit 1 ;
	`

	var user models.UserEntity
	return &user, selectOne(ctx, q, &user, query, id)
}

func (userDao) FindByEmail(ctx context.Context, q Queryer, email models.Address) (*models.UserEntity, error) {
	const query = `
		select *
		from "users"
		where "email" = $1
		limit 1 ;
	`

	var user models.UserEntity
	return &user, selectOne(ctx, q, &user, query, email)
}

func (userDao) FindAll(ctx context.Context, q Queryer) ([]models.UserEntity, error) {
	const query = `
		select *
		from "users"
		order by "id" asc ;
	`

	var users []models.UserEntity
	return users, selectSlice(ctx, q, &users, query)
}
