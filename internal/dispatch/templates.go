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

// Package dispatch renders outbound messages and delivers them via smtp.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/models"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Templates holds the parsed text of every message kind.
type Templates struct {
	byKind map[models.MessageKind]messageTemplate
}

// LoadTemplates parses the texts stored in the database. It fails if the text of any known
// message kind is missing or invalid.
func LoadTemplates(ctx context.Context, q database.Queryer, messageDao database.MessageDao) (*Templates, error) {
	messages, err := messageDao.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}

	templates := Templates{byKind: make(map[models.MessageKind]messageTemplate, len(messages))}

	for _, message := range messages {
		parsed, err := parseTemplate(message.EventName, message.EventText)
		if err != nil {
			return nil, err
		}

		templates.byKind[message.EventName] = *parsed
	}

	for _, kind := range models.MessageKinds {
		if _, ok := templates.byKind[kind]; !ok {
			return nil, fmt.Errorf("no text for message kind %s", kind)
		}
	}

	return &templates, nil
}

// parseTemplate splits a text into the subject in the first line and the body after the
// following blank line.
func parseTemplate(kind models.MessageKind, text string) (*messageTemplate, error) {
	subject, body, _ := strings.Cut(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	body = strings.TrimPrefix(body, "\n")

	subjectTemplate, err := newTemplate(kind, subject)
	if err != nil {
		return nil, err
	}

	bodyTemplate, err := newTemplate(kind, body)
	if err != nil {
		return nil, err
	}

	return &messageTemplate{subject: subjectTemplate, body: bodyTemplate}, nil
}

func newTemplate(kind models.MessageKind, text string) (*template.Template, error) {
	t, err := template.New(string(kind)).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid text for message kind %s: %w", kind, err)
	}

	return t, nil
}

// Render returns subject and body of a message. Parameters not set on the message render
// empty.
func (t *Templates) Render(message *models.OutboundMessage) (string, string, error) {
	mt, ok := t.byKind[message.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown message kind %q", message.Kind)
	}

	var subject, body strings.Builder

	if err := mt.subject.Execute(&subject, message.Params); err != nil {
		return "", "", err
	}

	if err := mt.body.Execute(&body, message.Params); err != nil {
		return "", "", err
	}

	// header values must not span lines
	return strings.Join(strings.Fields(subject.String()), " "), body.String(), nil
}
