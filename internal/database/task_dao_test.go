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
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/models"
)

func TestTaskDaoTestSuite(t *testing.T) {
	suite.Run(t, new(TaskDaoTestSuite))
}

type TaskDaoTestSuite struct {
	baseDatabaseTestSuite

	taskDao TaskDao
}

func (s *TaskDaoTestSuite) SetupSuite() {
	s.taskDao = NewTaskDao()
}

func (s *TaskDaoTestSuite) TestUpsert() {
	task := models.TaskEntity{
		Nr:         3,
		StartAt:    10,
		DeadlineAt: 20,
		Path:       "tasks/3",
		Test:       "tasks/3/test.sh",
		Active:     true,
	}

	s.Require().NoError(s.taskDao.Upsert(s.ctx, s.conn, &task))

	task.DeadlineAt = 30
	task.Active = false
	s.Require().NoError(s.taskDao.Upsert(s.ctx, s.conn, &task))

	tasks, err := s.taskDao.FindAll(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Assert().Equal([]models.TaskEntity{task}, tasks)
}

func (s *TaskDaoTestSuite) TestFindActive() {
	s.seedTasks()
	s.requireExec(`update "tasks" set "active" = 0 where "nr" = 1 ;`)

	tasks, err := s.taskDao.FindActive(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Assert().Equal(int64(2), tasks[0].Nr)
}

func (s *TaskDaoTestSuite) TestFindByNr() {
	s.seedTasks()

	task, err := s.taskDao.FindByNr(s.ctx, s.conn, 2)
	s.Require().NoError(err)
	s.Assert().Equal(int64(150), task.StartAt)
	s.Assert().Equal(int64(300), task.DeadlineAt)
	s.Assert().True(task.Active)

	_, err = s.taskDao.FindByNr(s.ctx, s.conn, 7)
	s.Assert().True(IsErrNoRows(err))
}
