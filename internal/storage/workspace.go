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

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/log"
	"github.com/lukasdietrich/autosub/internal/models"
)

func init() {
	viper.SetDefault("storage.workspace.foldername", "data/workspaces")
	viper.SetDefault("storage.archive.foldername", "data/archive")
}

const bodyFilename = "mail.txt"

// WorkspacesOptions configure where workspaces are created and archived.
type WorkspacesOptions struct {
	// Foldername is the parent folder of all active workspaces.
	Foldername string `validate:"required"`
	// ArchiveFoldername is the parent folder of archived submissions.
	ArchiveFoldername string `validate:"required"`
}

// WorkspacesOptionsFromViper reads the workspace options from viper.
//
// `storage.workspace.foldername` is the parent folder of all workspaces.
// `storage.archive.foldername` is the parent folder of archived submissions.
func WorkspacesOptionsFromViper() WorkspacesOptions {
	return WorkspacesOptions{
		Foldername:        viper.GetString("storage.workspace.foldername"),
		ArchiveFoldername: viper.GetString("storage.archive.foldername"),
	}
}

// Workspace is a folder holding the material of a single job or generator run.
type Workspace struct {
	// ID is the unique name of the workspace.
	ID string
	// Path is the location of the workspace on the filesystem.
	Path string
}

// Workspaces creates, archives and removes workspace folders.
type Workspaces struct {
	fs    afero.Fs
	idGen IDGenerator
	opts  WorkspacesOptions
}

// NewWorkspaces creates the workspace and archive folders if necessary. Relative folders are
// resolved against the working directory.
func NewWorkspaces(fs afero.Fs, idGen IDGenerator, opts WorkspacesOptions) (*Workspaces, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	folders, err := Resolve(opts.Foldername, opts.ArchiveFoldername)
	if err != nil {
		return nil, err
	}

	opts.Foldername, opts.ArchiveFoldername = folders[0], folders[1]

	for _, folder := range folders {
		if err := fs.MkdirAll(folder, 0700); err != nil {
			return nil, err
		}
	}

	return &Workspaces{fs: fs, idGen: idGen, opts: opts}, nil
}

// Create creates a new workspace and writes the body and all attachments into it.
func (w *Workspaces) Create(ctx context.Context, body string, attachments []models.Attachment) (*Workspace, error) {
	id, err := w.idGen.GenerateID()
	if err != nil {
		return nil, err
	}

	ws := Workspace{
		ID:   id,
		Path: filepath.Join(w.opts.Foldername, id),
	}

	log.DebugContext(ctx).
		Str("workspace", ws.ID).
		Int("attachments", len(attachments)).
		Msg("creating workspace")

	if err := w.fs.MkdirAll(ws.Path, 0700); err != nil {
		return nil, err
	}

	if err := w.populate(&ws, body, attachments); err != nil {
		w.Remove(ctx, &ws)
		return nil, err
	}

	return &ws, nil
}

func (w *Workspaces) populate(ws *Workspace, body string, attachments []models.Attachment) error {
	if body != "" {
		if err := w.writeFile(ws, bodyFilename, strings.NewReader(body)); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)

	for i, attachment := range attachments {
		name := sanitizeFilename(attachment.Filename, i)
		if seen[name] {
			name = fmt.Sprintf("%d-%s", i, name)
		}

		seen[name] = true

		if err := w.writeFile(ws, name, bytes.NewReader(attachment.Content)); err != nil {
			return err
		}
	}

	return nil
}

func (w *Workspaces) writeFile(ws *Workspace, name string, r io.Reader) error {
	f, err := w.fs.Create(filepath.Join(ws.Path, name))
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// sanitizeFilename strips any directory components, so that an attachment cannot escape its
// workspace.
func sanitizeFilename(filename string, index int) string {
	name := path.Base(filepath.ToSlash(strings.TrimSpace(filename)))

	switch name {
	case "", ".", "..", "/", bodyFilename:
		return "attachment-" + strconv.Itoa(index)
	}

	return name
}

// Collect reads every regular file of a workspace as an attachment, ordered by filename.
func (w *Workspaces) Collect(ctx context.Context, ws *Workspace) ([]models.Attachment, error) {
	infos, err := afero.ReadDir(w.fs, ws.Path)
	if err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	var attachments []models.Attachment

	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}

		content, err := afero.ReadFile(w.fs, filepath.Join(ws.Path, info.Name()))
		if err != nil {
			return nil, err
		}

		attachments = append(attachments, models.Attachment{
			Filename: info.Name(),
			Content:  content,
		})
	}

	return attachments, nil
}

// Archive copies a workspace below the archive folder of a user and task and removes it
// afterwards. The workspace must not be used after archiving.
func (w *Workspaces) Archive(ctx context.Context, ws *Workspace, userID, taskNr int64) error {
	target := filepath.Join(w.opts.ArchiveFoldername,
		fmt.Sprintf("user%d", userID),
		fmt.Sprintf("task%d", taskNr),
		ws.ID)

	log.DebugContext(ctx).
		Str("workspace", ws.ID).
		Str("target", target).
		Msg("archiving workspace")

	// the archive may live on another device, so a rename is not an option
	err := afero.Walk(w.fs, ws.Path, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(ws.Path, name)
		if err != nil {
			return err
		}

		if info.IsDir() {
			return w.fs.MkdirAll(filepath.Join(target, rel), 0700)
		}

		return w.copyFile(name, filepath.Join(target, rel))
	})
	if err != nil {
		return fmt.Errorf("could not archive workspace %s: %w", ws.ID, err)
	}

	return w.Remove(ctx, ws)
}

func (w *Workspaces) copyFile(source, target string) error {
	f, err := w.fs.Open(source)
	if err != nil {
		return err
	}

	defer f.Close()

	out, err := w.fs.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// Remove deletes a workspace and everything in it.
func (w *Workspaces) Remove(ctx context.Context, ws *Workspace) error {
	log.DebugContext(ctx).
		Str("workspace", ws.ID).
		Msg("removing workspace")

	err := w.fs.RemoveAll(ws.Path)
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
