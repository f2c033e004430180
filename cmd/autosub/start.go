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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/pipeline"
)

type startCommand struct {
	Conn         database.Conn
	Course       *course.Course
	Bootstrapper *course.Bootstrapper
	Pipeline     *pipeline.Pipeline
}

func (s *startCommand) run() error {
	defer s.Conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer stop()

	if err := s.Bootstrapper.Bootstrap(ctx, s.Course); err != nil {
		return err
	}

	log.Info().
		Int("tasks", len(s.Course.Tasks)).
		Msg("course loaded")

	if err := s.Pipeline.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info().Msg("shutdown complete")
	return nil
}
