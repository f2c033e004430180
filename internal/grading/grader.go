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
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/storage"
)

func init() {
	viper.SetDefault("grading.timeout", "1m")
	viper.SetDefault("grading.outputLimit", 16*1024)
}

// Verdict is the outcome of grading a single submission.
type Verdict struct {
	Passed   bool
	Feedback string
}

// Grader grades a submission, that was materialized into a workspace. Grading never fails:
// every problem running the test is a failed verdict.
type Grader interface {
	Grade(ctx context.Context, task *models.TaskEntity, ws *storage.Workspace, userID int64) *Verdict
}

// GraderOptions configure the execution of test executables.
type GraderOptions struct {
	// Timeout is the maximum runtime of a single test.
	Timeout time.Duration `validate:"gt=0"`
	// OutputLimit is the number of output bytes kept as feedback.
	OutputLimit int `validate:"gt=0"`
}

// GraderOptionsFromViper reads the grader options from viper.
//
// `grading.timeout` is the maximum runtime of a single test.
// `grading.outputLimit` is the number of output bytes kept as feedback.
func GraderOptionsFromViper() GraderOptions {
	return GraderOptions{
		Timeout:     viper.GetDuration("grading.timeout"),
		OutputLimit: viper.GetInt("grading.outputLimit"),
	}
}

// NewGrader creates a Grader running the test executable of a task as a subprocess with the
// arguments `<workspace> <task path> <user id> <task nr>`. Exit code 0 is a pass.
func NewGrader(opts GraderOptions) (Grader, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return execGrader{opts: opts}, nil
}

type execGrader struct {
	opts GraderOptions
}

func (g execGrader) Grade(ctx context.Context, task *models.TaskEntity, ws *storage.Workspace, userID int64) *Verdict {
	// a running test finishes even during shutdown, bounded by its timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.Timeout)
	defer cancel()

	output := newLimitedBuffer(g.opts.OutputLimit)

	paths, err := storage.Resolve(task.Test, ws.Path, task.Path)
	if err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not resolve test paths")
		output.WriteString("\nThe test could not be run.")

		return &Verdict{Passed: false, Feedback: output.String()}
	}

	test, wsPath, taskPath := paths[0], paths[1], paths[2]

	cmd := exec.CommandContext(ctx, test,
		wsPath,
		taskPath,
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(task.Nr, 10))
	cmd.Dir = wsPath
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()

	log.DebugContext(ctx).
		Int64("task", task.Nr).
		Dur("duration", time.Since(start)).
		AnErr("cause", err).
		Msg("test executable finished")

	if err == nil {
		return &Verdict{Passed: true, Feedback: output.String()}
	}

	var exitErr *exec.ExitError

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		output.WriteString(fmt.Sprintf("\nThe test did not finish within %s.", g.opts.Timeout))

	case errors.As(err, &exitErr):
		// the output of the test explains the failure

	default:
		log.ErrorContext(ctx).
			Int64("task", task.Nr).
			Str("test", test).
			Err(err).
			Msg("could not run test executable")

		output.WriteString("\nThe test could not be run.")
	}

	return &Verdict{Passed: false, Feedback: output.String()}
}
