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

// MessageDao is a data access object for the texts of outgoing notifications.
type MessageDao interface {
	// InsertIfAbsent stores a text unless one exists for the same kind already, so that edits
	// made by the course administration survive a restart.
	InsertIfAbsent(context.Context, Queryer, *models.SpecialMessageEntity) error
	// FindAll returns all texts ordered by kind.
	FindAll(context.Context, Queryer) ([]models.SpecialMessageEntity, error)
}

// NewMessageDao creates a new MessageDao.
func NewMessageDao() MessageDao {
	return messageDao{}
}

type messageDao struct{}

func (messageDao) InsertIfAbsent(ctx context.Context, q Queryer, message *models.SpecialMessageEntity) error {
	const query = `
		insert or ignore into "special_messages" ( "event_name", "event_text" )
		values ( :event_name, :event_text ) ;
	`

	_, err := execNamed(ctx, q, query, message)
	return err
}

func (messageDao) FindAll(ctx context.Context, q Queryer) ([]models.SpecialMessageEntity, error) {
	const query = `
		select *
		from "special_messages"
		order by "event_name" asc ;
	`

	var messages []models.SpecialMessageEntity
	return messages, selectSlice(ctx, q, &messages, query)
}
