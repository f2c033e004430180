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

package models

import (
	"database/sql"
	"time"
)

type UserEntity struct {
	ID          int64         `db:"id"`
	Name        string        `db:"name"`
	Email       Address       `db:"email"`
	FirstMail   int64         `db:"first_mail"`
	LastDone    sql.NullInt64 `db:"last_done"`
	CurrentTask sql.NullInt64 `db:"current_task"`
}

// Window describes where a point in time lies relative to the activation window of a task.
type Window int

const (
	// WindowNotStarted is any time before the start of a task.
	WindowNotStarted Window = iota
	// WindowOpen is the interval [start, deadline).
	WindowOpen
	// WindowClosed is the deadline and anything after it.
	WindowClosed
)

type TaskEntity struct {
	Nr         int64  `db:"nr"`
	StartAt    int64  `db:"start_at"`
	DeadlineAt int64  `db:"deadline_at"`
	Path       string `db:"path"`
	Generator  string `db:"generator"`
	Test       string `db:"test"`
	Score      int64  `db:"score"`
	Operator   string `db:"operator"`
	Active     bool   `db:"active"`
}

// Window locates now relative to the activation window of the task.
func (t *TaskEntity) Window(now time.Time) Window {
	switch unix := now.Unix(); {
	case unix < t.StartAt:
		return WindowNotStarted
	case unix < t.DeadlineAt:
		return WindowOpen
	default:
		return WindowClosed
	}
}

// Start returns the beginning of the activation window.
func (t *TaskEntity) Start() time.Time {
	return time.Unix(t.StartAt, 0)
}

// Deadline returns the end of the activation window.
func (t *TaskEntity) Deadline() time.Time {
	return time.Unix(t.DeadlineAt, 0)
}

// TimeLayout is used wherever a point in time is shown to a user.
const TimeLayout = "2006-01-02 15:04 MST"

// FormatTime formats t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// TaskProgressEntity is the per user and task submission record.
type TaskProgressEntity struct {
	ID              int64         `db:"id"`
	UserID          int64         `db:"user_id"`
	TaskNr          int64         `db:"task_nr"`
	NrSubmissions   int64         `db:"nr_submissions"`
	FirstSuccessful sql.NullInt64 `db:"first_successful"`
}

// IsCompleted reports whether the user ever passed the task.
func (p *TaskProgressEntity) IsCompleted() bool {
	return p.FirstSuccessful.Valid
}

// TaskStatsEntity aggregates the progress of all users for a single task.
type TaskStatsEntity struct {
	TaskNr        int64 `db:"task_nr"`
	NrSubmissions int64 `db:"nr_submissions"`
	NrSuccessful  int64 `db:"nr_successful"`
}

// TaskAssignmentEntity is written once a task is handed to a user. The generator fills in the
// individual material afterwards.
type TaskAssignmentEntity struct {
	UserID      int64         `db:"user_id"`
	TaskNr      int64         `db:"task_nr"`
	Parameters  string        `db:"parameters"`
	Description string        `db:"description"`
	Attachments string        `db:"attachments"`
	AssignedAt  int64         `db:"assigned_at"`
	GeneratedAt sql.NullInt64 `db:"generated_at"`
}

// NoticeEntity records a notification that must reach a user only once.
type NoticeEntity struct {
	UserID int64       `db:"user_id"`
	Kind   MessageKind `db:"kind"`
	TaskNr int64       `db:"task_nr"`
	SentAt int64       `db:"sent_at"`
}

type StatCounterEntity struct {
	Name  string `db:"name"`
	Value int64  `db:"value"`
}

const (
	CounterMailsFetched      = "nr_mails_fetched"
	CounterMailsSent         = "nr_mails_sent"
	CounterQuestionsReceived = "nr_questions_received"
	CounterNonRegistered     = "nr_non_registered"
	CounterStatusRequests    = "nr_status_requests"
)

// Counters lists every statistic counter known to the system.
var Counters = []string{
	CounterMailsFetched,
	CounterMailsSent,
	CounterQuestionsReceived,
	CounterNonRegistered,
	CounterStatusRequests,
}

type WhitelistEntity struct {
	ID    int64   `db:"id"`
	Email Address `db:"email"`
}

type SpecialMessageEntity struct {
	EventName MessageKind `db:"event_name"`
	EventText string      `db:"event_text"`
}

type ConfigEntity struct {
	Item    string `db:"config_item"`
	Content string `db:"content"`
}

const (
	ConfigRegistrationDeadline = "registration_deadline"
	ConfigAdminEmail           = "admin_email"
	ConfigArchiveDir           = "archive_dir"
	ConfigNumWorkers           = "num_workers"
	ConfigNumTasks             = "num_tasks"
)
