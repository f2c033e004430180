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
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
	"github.com/lukasdietrich/autosub/internal/storage"
)

// DescriptionFilename is the file holding the description of a task, either in the task
// folder or written by the generator.
const DescriptionFilename = "description.txt"

// Workspaces holds the output of generators.
type Workspaces interface {
	Create(ctx context.Context, body string, attachments []models.Attachment) (*storage.Workspace, error)
	Collect(ctx context.Context, ws *storage.Workspace) ([]models.Attachment, error)
	Remove(ctx context.Context, ws *storage.Workspace) error
}

type material struct {
	parameters  string
	description string
	attachments []models.Attachment
}

// Distributor generates the material of new assignments and sends it to the users.
type Distributor struct {
	conn          database.Conn
	locks         *database.UserLocks
	userDao       database.UserDao
	taskDao       database.TaskDao
	assignmentDao database.AssignmentDao
	workspaces    Workspaces
	generator     Generator
	fs            afero.Fs
	now           func() time.Time
}

// NewDistributor creates a new distributor.
func NewDistributor(
	conn database.Conn,
	locks *database.UserLocks,
	userDao database.UserDao,
	taskDao database.TaskDao,
	assignmentDao database.AssignmentDao,
	workspaces *storage.Workspaces,
	generator Generator,
	fs afero.Fs,
) *Distributor {
	return &Distributor{
		conn:          conn,
		locks:         locks,
		userDao:       userDao,
		taskDao:       taskDao,
		assignmentDao: assignmentDao,
		workspaces:    workspaces,
		generator:     generator,
		fs:            fs,
		now:           time.Now,
	}
}

// Run first distributes assignments left pending by a previous run and then consumes new
// assignments until ctx is done. Every distributed assignment results in a TASK message on
// outbox.
func (d *Distributor) Run(ctx context.Context, assignments <-chan *models.TaskAssignmentEntity, outbox chan<- *models.OutboundMessage) error {
	pending, err := d.assignmentDao.FindPending(ctx, d.conn)
	if err != nil {
		log.ErrorContext(ctx).Err(err).Msg("could not load pending assignments")
	}

	log.InfoContext(ctx).
		Int("pending", len(pending)).
		Msg("distributor started")

	for i := range pending {
		if ctx.Err() != nil {
			return nil
		}

		d.handle(ctx, &pending[i], outbox)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case assignment, ok := <-assignments:
			if !ok {
				return nil
			}

			d.handle(ctx, assignment, outbox)
		}
	}
}

func (d *Distributor) handle(ctx context.Context, assignment *models.TaskAssignmentEntity, outbox chan<- *models.OutboundMessage) {
	message, err := d.Distribute(ctx, assignment)
	if err != nil {
		log.ErrorContext(log.WithUser(ctx, assignment.UserID)).
			Int64("task", assignment.TaskNr).
			Err(err).
			Msg("could not distribute assignment")
		return
	}

	if message != nil {
		outbox <- message
	}
}

// Distribute generates and stores the material of an assignment and returns the TASK message
// for the user. Assignments distributed before result in no message.
func (d *Distributor) Distribute(ctx context.Context, assignment *models.TaskAssignmentEntity) (*models.OutboundMessage, error) {
	ctx = log.WithUser(context.WithoutCancel(ctx), assignment.UserID)

	current, err := d.assignmentDao.Find(ctx, d.conn, assignment.UserID, assignment.TaskNr)
	if err != nil {
		return nil, err
	}

	if current.GeneratedAt.Valid {
		return nil, nil
	}

	task, err := d.taskDao.FindByNr(ctx, d.conn, current.TaskNr)
	if err != nil {
		return nil, err
	}

	user, err := d.userDao.FindByID(ctx, d.conn, current.UserID)
	if err != nil {
		return nil, err
	}

	m := d.generate(ctx, task, user.ID)

	filenames := make([]string, len(m.attachments))
	for i, attachment := range m.attachments {
		filenames[i] = attachment.Filename
	}

	current.Parameters = m.parameters
	current.Description = m.description
	current.Attachments = strings.Join(filenames, ",")
	current.GeneratedAt = sql.NullInt64{Int64: d.now().Unix(), Valid: true}

	err = database.WithUserLock(ctx, d.conn, d.locks, user.ID, func(tx database.Tx) error {
		return d.assignmentDao.Update(ctx, tx, current)
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx).
		Int64("task", task.Nr).
		Int("attachments", len(m.attachments)).
		Msg("task material distributed")

	message := models.NewOutboundMessage(user.Email, models.KindTask).
		With(models.ParamName, user.Name).
		With(models.ParamTask, strconv.FormatInt(task.Nr, 10)).
		With(models.ParamDeadline, models.FormatTime(task.Deadline())).
		With(models.ParamDescription, m.description)
	message.Attachments = m.attachments

	return message, nil
}

// generate runs the generator of a task and falls back to the static description of the task
// folder when there is none or it fails.
func (d *Distributor) generate(ctx context.Context, task *models.TaskEntity, userID int64) *material {
	if task.Generator != "" {
		m, err := d.runGenerator(ctx, task, userID)
		if err == nil {
			return m
		}

		log.WarnContext(ctx).
			Int64("task", task.Nr).
			Err(err).
			Msg("generator failed, falling back to static description")
	}

	return &material{description: d.readDescription(ctx, task)}
}

func (d *Distributor) runGenerator(ctx context.Context, task *models.TaskEntity, userID int64) (*material, error) {
	ws, err := d.workspaces.Create(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	defer d.workspaces.Remove(ctx, ws)

	parameters, err := d.generator.Generate(ctx, task, ws, userID)
	if err != nil {
		return nil, err
	}

	files, err := d.workspaces.Collect(ctx, ws)
	if err != nil {
		return nil, err
	}

	m := material{parameters: parameters}

	for _, file := range files {
		if file.Filename == DescriptionFilename {
			m.description = string(file.Content)
		} else {
			m.attachments = append(m.attachments, file)
		}
	}

	if m.description == "" {
		m.description = d.readDescription(ctx, task)
	}

	return &m, nil
}

func (d *Distributor) readDescription(ctx context.Context, task *models.TaskEntity) string {
	content, err := afero.ReadFile(d.fs, filepath.Join(task.Path, DescriptionFilename))
	if err != nil {
		log.WarnContext(ctx).
			Int64("task", task.Nr).
			Err(err).
			Msg("could not read task description")
		return ""
	}

	return string(content)
}
