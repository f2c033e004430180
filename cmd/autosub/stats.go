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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lukasdietrich/autosub/internal/database"
)

type statsCommand struct {
	Conn       database.Conn
	CounterDao database.CounterDao
	StatsDao   database.StatsDao
}

func (s *statsCommand) run() error {
	defer s.Conn.Close()

	ctx := context.Background()

	counters, err := s.CounterDao.FindAll(ctx, s.Conn)
	if err != nil {
		return err
	}

	stats, err := s.StatsDao.FindAll(ctx, s.Conn)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "COUNTER\tVALUE")
	for _, counter := range counters {
		fmt.Fprintf(w, "%s\t%d\n", counter.Name, counter.Value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TASK\tSUBMISSIONS\tSOLVED")
	for _, stat := range stats {
		fmt.Fprintf(w, "%d\t%d\t%d\n", stat.TaskNr, stat.NrSubmissions, stat.NrSuccessful)
	}

	return w.Flush()
}
