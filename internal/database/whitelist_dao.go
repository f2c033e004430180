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

// WhitelistDao is a data access object for the addresses allowed to register.
type WhitelistDao interface {
	// Insert adds an address to the whitelist. Adding the same address twice is a no-op.
	Insert(context.Context, Queryer, *models.WhitelistEntity) error
	// Contains reports whether an address is whitelisted.
	Contains(context.Context, Queryer, models.Address) (bool, error)
	// FindAll returns all whitelisted addresses.
	FindAll(context.Context, Queryer) ([]models.WhitelistEntity, error)
}

// NewWhitelistDao creates a new WhitelistDao.
func NewWhitelistDao() WhitelistDao {
	return whitelistDao{}
}

type whitelistDao struct{}

func (whitelistDao) Insert(ctx context.Context, q Queryer, entry *models.WhitelistEntity) error {
	const query = `
		insert or ignore into "whitelist" ( "email" )
		values ( :email ) ;
	`

	_, err := execNamed(ctx, q, query, entry)
	return err
}

func (whitelistDao) Contains(ctx context.Context, q Queryer, email models.Address) (bool, error) {
	const query = `
		select count(*)
		from "whitelist"
		where "email" = $1 ;
	`

	var count int64
	if err := selectOne(ctx, q, &count, query, email); err != nil {
		return false, err
	}

	return count > 0, nil
}

func (whitelistDao) FindAll(ctx context.Context, q Queryer) ([]models.WhitelistEntity, error) {
	const query = `
		select *
		from "whitelist"
		order by "id" asc ;
	`

	var entries []models.WhitelistEntity
	return entries, selectSlice(ctx, q, &entries, query)
}
