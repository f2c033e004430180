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

package grading

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/models"
)

type baseGradingTestSuite struct {
	suite.Suite

	ctx        context.Context
	conn       database.Conn
	bookkeeper *Bookkeeper
}

func (s *baseGradingTestSuite) SetupTest() {
	viper.Set("storage.database.filename", ":memory:")
	viper.Set("storage.database.journalmode", "memory")

	conn, err := database.OpenConnection()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.conn = conn
	s.bookkeeper = NewBookkeeper(
		conn,
		database.NewUserLocks(),
		database.NewUserDao(),
		database.NewProgressDao(),
		database.NewStatsDao(),
	)
	s.bookkeeper.now = func() time.Time { return time.Unix(150, 0) }

	// task 1 is open at 150, task 2 has not started, task 3 is over and task 4 is inactive
	s.requireExec(`
		insert into "tasks" ( "nr", "start_at", "deadline_at", "path", "test", "active" )
		values
			( 1, 100, 200, 'tasks/1', 'tasks/1/test.sh', 1 ) ,
			( 2, 300, 400, 'tasks/2', 'tasks/2/test.sh', 1 ) ,
			( 3, 0, 50, 'tasks/3', 'tasks/3/test.sh', 1 ) ,
			( 4, 100, 200, 'tasks/4', 'tasks/4/test.sh', 0 ) ;

		insert into "task_stats" ( "task_nr" ) values ( 1 ) , ( 2 ) , ( 3 ) , ( 4 ) ;

		insert into "users" ( "id", "name", "email", "first_mail" )
		values
			( 1, 'Jane', 'jane@example.com', 90 ) ,
			( 2, 'John', 'john@example.com', 90 ) ;
	`)
}

func (s *baseGradingTestSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *baseGradingTestSuite) requireExec(query string) {
	_, err := s.conn.ExecContext(s.ctx, query)
	s.Require().NoError(err)
}

func (s *baseGradingTestSuite) findStats(taskNr int64) *models.TaskStatsEntity {
	stats, err := database.NewStatsDao().FindByTask(s.ctx, s.conn, taskNr)
	s.Require().NoError(err)
	return stats
}

func (s *baseGradingTestSuite) findProgress(userID, taskNr int64) *models.TaskProgressEntity {
	progress, err := database.NewProgressDao().Find(s.ctx, s.conn, userID, taskNr)
	s.Require().NoError(err)
	return progress
}

func (s *baseGradingTestSuite) findUser(userID int64) *models.UserEntity {
	user, err := database.NewUserDao().FindByID(s.ctx, s.conn, userID)
	s.Require().NoError(err)
	return user
}

// assertStatsInvariant checks that the statistics of a task equal the sum of all progress.
func (s *baseGradingTestSuite) assertStatsInvariant(taskNr int64) {
	expected, err := database.NewProgressDao().SumByTask(s.ctx, s.conn, taskNr)
	s.Require().NoError(err)
	s.Assert().Equal(expected, s.findStats(taskNr))
}
