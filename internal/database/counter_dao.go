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

// CounterDao is a data access object for the named statistic counters.
type CounterDao interface {
	// Ensure creates a counter with a value of zero, if it does not exist yet.
	Ensure(ctx context.Context, q Queryer, name string) error
	// Increment adds delta to a counter.
	Increment(ctx context.Context, q Queryer, name string, delta int64) error
	// Find returns a single counter.
	Find(ctx context.Context, q Queryer, name string) (*models.StatCounterEntity, error)
	// FindAll returns all counters ordered by name.
	FindAll(context.Context, Queryer) ([]models.StatCounterEntity, error)
}

// NewCounterDao creates a new CounterDao.
func NewCounterDao() CounterDao {
	return counterDao{}
}

type counterDao struct{}

func (counterDao) Ensure(ctx context.Context, q Queryer, name string) error {
	const query = `
		insert or ignore into "stat_counters" ( "name", "value" )
		values ( $1, 0 ) ;
	`

	_, err := execPositional(ctx, q, query, name)
	return err
}

func (counterDao) Increment(ctx context.Context, q Queryer, name string, delta int64) error {
	const query = `
		insert into "stat_counters" ( "name", "value" )
		values ( $1, $2 )
		on conflict ( "name" ) do update
		set "value" = "value" + excluded."value" ;
	`

	_, err := execPositional(ctx, q, query, name, delta)
	return err
}

func (counterDao) Find(ctx context.Context, q Queryer, name string) (*models.StatCounterEntity, error) {
	const query = `
		select *
		from "stat_counters"
		where "name" = $1
		limit 1 ;
	`

	var counter models.StatCounterEntity
	return &counter, selectOne(ctx, q, &counter, query, name)
}

func (counterDao) FindAll(ctx context.Context, q Queryer) ([]models.StatCounterEntity, error) {
	const query = `
		select *
		from "stat_counters"
		order by "name" asc ;
	`

	var counters []models.StatCounterEntity
	return counters, selectSlice(ctx, q, &counters, query)
}
