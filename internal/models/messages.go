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
	"time"
)

// MessageKind names the canned message used to render an outbound mail.
type MessageKind string

const (
	KindWelcome     MessageKind = "WELCOME"
	KindUsage       MessageKind = "USAGE"
	KindQuestion    MessageKind = "QUESTION"
	KindQuestionFwd MessageKind = "QUESTIONFWD"
	KindInvalid     MessageKind = "INVALID"
	KindNotStarted  MessageKind = "NOTSTARTED"
	KindDeadTask    MessageKind = "DEADTASK"
	KindAlreadyDone MessageKind = "ALREADYDONE"
	KindCongrats    MessageKind = "CONGRATS"
	KindFailed      MessageKind = "FAILED"
	KindError       MessageKind = "ERROR"
	KindRegOver     MessageKind = "REGOVER"
	KindNotAllowed  MessageKind = "NOTALLOWED"
	KindCurLast     MessageKind = "CURLAST"
	KindTasksOver   MessageKind = "TASKSOVER"
	KindTask        MessageKind = "TASK"
	KindStatus      MessageKind = "STATUS"
)

// MessageKinds lists every kind a template has to exist for.
var MessageKinds = []MessageKind{
	KindWelcome,
	KindUsage,
	KindQuestion,
	KindQuestionFwd,
	KindInvalid,
	KindNotStarted,
	KindDeadTask,
	KindAlreadyDone,
	KindCongrats,
	KindFailed,
	KindError,
	KindRegOver,
	KindNotAllowed,
	KindCurLast,
	KindTasksOver,
	KindTask,
	KindStatus,
}

// Attachment is a named file carried by a submission or an outbound message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Job is a single parsed submission waiting to be graded. It only ever lives in memory.
type Job struct {
	ID          string
	UID         uint32
	From        Address
	UserID      int64
	TaskNr      int64
	Subject     string
	Body        string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// OutboundMessage is a single notification waiting to be rendered and delivered.
type OutboundMessage struct {
	To          Address
	Kind        MessageKind
	Params      map[string]string
	Attachments []Attachment
}

// NewOutboundMessage creates a message with an empty parameter map.
func NewOutboundMessage(to Address, kind MessageKind) *OutboundMessage {
	return &OutboundMessage{
		To:     to,
		Kind:   kind,
		Params: make(map[string]string),
	}
}

// With sets a template parameter and returns the message for chaining.
func (m *OutboundMessage) With(key, value string) *OutboundMessage {
	m.Params[key] = value
	return m
}

// Template parameters shared by the producers of outbound messages and the canned texts.
const (
	ParamName        = "name"
	ParamEmail       = "email"
	ParamTask        = "task"
	ParamStart       = "start"
	ParamDeadline    = "deadline"
	ParamFeedback    = "feedback"
	ParamDescription = "description"
	ParamStatus      = "status"
	ParamSubject     = "subject"
	ParamBody        = "body"
)
