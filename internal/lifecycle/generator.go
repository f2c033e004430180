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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/storage"
)

func init() {
	viper.SetDefault("lifecycle.generatorTimeout", "1m")
}

// Generator creates the personal material of a task for a user inside a workspace.
type Generator interface {
	// Generate writes the material into the workspace and returns the parameters chosen for
	// the user.
	Generate(ctx context.Context, task *models.TaskEntity, ws *storage.Workspace, userID int64) (string, error)
}

// GeneratorOptions configure the execution of generator executables.
type GeneratorOptions struct {
	// Timeout is the maximum runtime of a single generator.
	Timeout time.Duration `validate:"gt=0"`
}

// GeneratorOptionsFromViper reads the generator options from viper.
//
// `lifecycle.generatorTimeout` is the maximum runtime of a single generator.
func GeneratorOptionsFromViper() GeneratorOptions {
	return GeneratorOptions{
		Timeout: viper.GetDuration("lifecycle.generatorTimeout"),
	}
}

// NewGenerator creates a Generator running the generator executable of a task with the
// arguments `<user id> <task nr> <task path> <workspace>`. The standard output of the
// executable are the parameters.
func NewGenerator(opts GeneratorOptions) (Generator, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return execGenerator{opts: opts}, nil
}

type execGenerator struct {
	opts GeneratorOptions
}

func (g execGenerator) Generate(ctx context.Context, task *models.TaskEntity, ws *storage.Workspace, userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.Timeout)
	defer cancel()

	paths, err := storage.Resolve(task.Generator, task.Path, ws.Path)
	if err != nil {
		return "", fmt.Errorf("could not resolve generator paths of task %d: %w", task.Nr, err)
	}

	generator, taskPath, wsPath := paths[0], paths[1], paths[2]

	var stderr strings.Builder

	cmd := exec.CommandContext(ctx, generator,
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(task.Nr, 10),
		taskPath,
		wsPath)
	cmd.Dir = wsPath
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	output, err := cmd.Output()

	log.DebugContext(ctx).
		Int64("task", task.Nr).
		Dur("duration", time.Since(start)).
		AnErr("cause", err).
		Msg("generator executable finished")

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("generator of task %d did not finish within %s", task.Nr, g.opts.Timeout)
		}

		return "", fmt.Errorf("generator of task %d failed: %w: %s", task.Nr, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(string(output)), nil
}
