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

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/dispatch"
	"github.com/lukasdietrich/autosub/internal/fetcher"
	"github.com/lukasdietrich/autosub/internal/grading"
	"github.com/lukasdietrich/autosub/internal/lifecycle"
	"github.com/lukasdietrich/autosub/internal/pipeline"
	"github.com/lukasdietrich/autosub/internal/shell"
	"github.com/lukasdietrich/autosub/internal/storage"
)

var wireSet = wire.NewSet(
	wire.Struct(new(startCommand), "*"),
	wire.Struct(new(statsCommand), "*"),
	wire.Struct(new(shellCommand), "*"),

	storage.WireSet,
	database.WireSet,
	course.WireSet,
	fetcher.WireSet,
	grading.WireSet,
	lifecycle.WireSet,
	dispatch.WireSet,
	pipeline.WireSet,
	shell.WireSet,
)

func newStartCommand() (*startCommand, error) {
	panic(wire.Build(wireSet))
}

func newStatsCommand() (*statsCommand, error) {
	panic(wire.Build(wireSet))
}

func newShellCommand() (*shellCommand, error) {
	panic(wire.Build(wireSet))
}
