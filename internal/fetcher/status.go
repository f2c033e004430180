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

package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lukasdietrich/autosub/internal/models"
)

// statusReport describes the progress of a user in every active task.
func (f *Fetcher) statusReport(ctx context.Context, user *models.UserEntity, now time.Time) (string, error) {
	tasks, err := f.taskDao.FindActive(ctx, f.conn)
	if err != nil {
		return "", err
	}

	progress, err := f.progressDao.FindByUser(ctx, f.conn, user.ID)
	if err != nil {
		return "", err
	}

	byTask := make(map[int64]models.TaskProgressEntity, len(progress))
	for _, p := range progress {
		byTask[p.TaskNr] = p
	}

	if len(tasks) == 0 {
		return "There are no tasks yet.", nil
	}

	var report strings.Builder

	for i := range tasks {
		task := &tasks[i]
		p := byTask[task.Nr]

		fmt.Fprintf(&report, "Task %d: ", task.Nr)

		switch {
		case p.IsCompleted():
			fmt.Fprintf(&report, "solved on %s", models.FormatTime(time.Unix(p.FirstSuccessful.Int64, 0)))
		case task.Window(now) == models.WindowNotStarted:
			fmt.Fprintf(&report, "starts on %s", models.FormatTime(task.Start()))
		case task.Window(now) == models.WindowOpen:
			fmt.Fprintf(&report, "not solved yet, submissions accepted until %s", models.FormatTime(task.Deadline()))
		default:
			fmt.Fprintf(&report, "not solved, the deadline passed on %s", models.FormatTime(task.Deadline()))
		}

		fmt.Fprintf(&report, " (%d submissions)\n", p.NrSubmissions)
	}

	return strings.TrimSuffix(report.String(), "\n"), nil
}
