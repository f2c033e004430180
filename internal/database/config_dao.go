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

// ConfigDao is a data access object for the course configuration items.
type ConfigDao interface {
	// InsertIfAbsent stores an item unless it exists already.
	InsertIfAbsent(context.Context, Queryer, *models.ConfigEntity) error
	// Upsert stores an item and replaces any previous content.
	Upsert(context.Context, Queryer, *models.ConfigEntity) error
	// Find returns a single item.
	Find(ctx context.Context, q Queryer, item string) (*models.ConfigEntity, error)
}

// NewConfigDao creates a new ConfigDao.
func NewConfigDao() ConfigDao {
	return configDao{}
}

type configDao struct{}

func (configDao) InsertIfAbsent(ctx context.Context, q Queryer, entry *models.ConfigEntity) error {
	const query = `
		insert or ignore into "general_config" ( "config_item", "content" )
		values ( :config_item, :content ) ;
	`

	_, err := execNamed(ctx, q, query, entry)
	return err
}

func (configDao) Upsert(ctx context.Context, q Queryer, entry *models.ConfigEntity) error {
	const query = `
		insert into "general_config" ( "config_item", "content" )
		values ( :config_item, :content )
		on conflict ( "config_item" ) do update
		set "content" = excluded."content" ;
	`

	_, err := execNamed(ctx, q, query, entry)
	return err
}

func (configDao) Find(ctx context.Context, q Queryer, item string) (*models.ConfigEntity, error) {
	const query = `
		select *
		from "general_config"
		where "config_item" = $1
		limit 1 ;
	`

	var entry models.ConfigEntity
	return &entry, selectOne(ctx, q, &entry, query, item)
}
