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

// NoticeDao is a data access object for notifications, that must reach a user at most once.
type NoticeDao interface {
	// Insert records a notice. It reports false if the same notice was recorded before.
	Insert(context.Context, Queryer, *models.NoticeEntity) (bool, error)
	// FindByUser returns all notices of a user ordered by the time they were sent.
	FindByUser(ctx context.Context, q Queryer, userID int64) ([]models.NoticeEntity, error)
}

// NewNoticeDao creates a new NoticeDao.
func NewNoticeDao() NoticeDao {
	return noticeDao{}
}

type noticeDao struct{}

func (noticeDao) Insert(ctx context.Context, q Queryer, notice *models.NoticeEntity) (bool, error) {
	const query = `
		insert or ignore into "notices" ( "user_id", "kind", "task_nr", "sent_at" )
		values ( :user_id, :kind, :task_nr, :sent_at ) ;
	`

	result, err := execNamed(ctx, q, query, notice)
	if err != nil {
		return false, err
	}

	if err := ensureRowsAffected(result); err != nil {
		if IsErrNoRows(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (noticeDao) FindByUser(ctx context.Context, q Queryer, userID int64) ([]models.NoticeEntity, error) {
	const query = `
		select *
		from "notices"
		where "user_id" = $1
		order by "sent_at" asc, "kind" asc ;
	`

	var notices []models.NoticeEntity
	return notices, selectSlice(ctx, q, &notices, query, userID)
}
