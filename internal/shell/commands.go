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

package shell

import (
	"errors"
	"fmt"
	"time"

	"github.com/lukasdietrich/autosub/internal/models"
)

// clearValue removes a setting when given as an answer.
const clearValue = "-"

var (
	errNoUsers = errors.New("there are no users registered")
)

func listUsers(ctx *cmdContext) error {
	users, err := ctx.userDao.FindAll(ctx, ctx.tx)
	if err != nil {
		return err
	}

	ctx.info("(%d) Users", len(users))

	for _, user := range users {
		ctx.info("  %4d  %s <%s>  %s", user.ID, user.Name, user.Email, currentTask(&user))
	}

	return nil
}

func infoUser(ctx *cmdContext) error {
	user, err := selectOneUser(ctx)
	if err != nil {
		return err
	}

	progress, err := ctx.progressDao.FindByUser(ctx, ctx.tx, user.ID)
	if err != nil {
		return err
	}

	ctx.info("ID:         %d", user.ID)
	ctx.info("Name:       %q", user.Name)
	ctx.info("Email:      %s", user.Email)
	ctx.info("First mail: %s", models.FormatTime(time.Unix(user.FirstMail, 0)))
	ctx.info("Current:    %s", currentTask(user))
	ctx.info("")
	ctx.info("(%d) Tasks", len(progress))

	for _, p := range progress {
		if p.IsCompleted() {
			ctx.info("  Task %d: solved on %s after %d submissions",
				p.TaskNr, models.FormatTime(time.Unix(p.FirstSuccessful.Int64, 0)), p.NrSubmissions)
		} else {
			ctx.info("  Task %d: not solved, %d submissions", p.TaskNr, p.NrSubmissions)
		}
	}

	return nil
}

func currentTask(user *models.UserEntity) string {
	if !user.CurrentTask.Valid {
		return "no task"
	}

	return fmt.Sprintf("task %d", user.CurrentTask.Int64)
}

func selectOneUser(ctx *cmdContext) (*models.UserEntity, error) {
	users, err := ctx.userDao.FindAll(ctx, ctx.tx)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, errNoUsers
	}

	items := make([]string, len(users))
	for i, user := range users {
		items[i] = fmt.Sprintf("%s <%s>", user.Name, user.Email)
	}

	i, err := ctx.prompt.choose("User: ", items)
	if err != nil {
		return nil, err
	}

	return &users[i], nil
}

func listWhitelist(ctx *cmdContext) error {
	entries, err := ctx.whitelistDao.FindAll(ctx, ctx.tx)
	if err != nil {
		return err
	}

	ctx.info("(%d) Addresses", len(entries))

	for _, entry := range entries {
		ctx.info("  %s", entry.Email)
	}

	return nil
}

func addWhitelist(ctx *cmdContext) error {
	raw, err := ctx.ask("Address: ")
	if err != nil {
		return err
	}

	addr, err := models.ParseNormalized(raw)
	if err != nil {
		return fmt.Errorf("could not normalize address %q: %w", raw, err)
	}

	if err := ctx.whitelistDao.Insert(ctx, ctx.tx, &models.WhitelistEntity{Email: addr}); err != nil {
		return fmt.Errorf("could not whitelist %q: %w", addr, err)
	}

	ctx.info("Address %q may register now.", addr)
	return nil
}

func showSettings(ctx *cmdContext) error {
	settings, err := ctx.settings.Read(ctx, ctx.tx)
	if err != nil {
		return err
	}

	admin := "none"
	if !settings.AdminEmail.IsZero() {
		admin = settings.AdminEmail.String()
	}

	deadline := "none"
	if !settings.RegistrationDeadline.IsZero() {
		deadline = models.FormatTime(settings.RegistrationDeadline)
	}

	ctx.info("Admin:                 %s", admin)
	ctx.info("Registration deadline: %s", deadline)
	return nil
}

func setAdmin(ctx *cmdContext) error {
	settings, err := ctx.settings.Read(ctx, ctx.tx)
	if err != nil {
		return err
	}

	current := clearValue
	if !settings.AdminEmail.IsZero() {
		current = settings.AdminEmail.String()
	}

	raw, err := ctx.askWithDefault("Admin address (- to remove): ", current)
	if err != nil {
		return err
	}

	var content string

	if raw != clearValue {
		addr, err := models.ParseNormalized(raw)
		if err != nil {
			return fmt.Errorf("could not normalize address %q: %w", raw, err)
		}

		content = addr.String()
	}

	if err := ctx.updateSetting(models.ConfigAdminEmail, content); err != nil {
		return err
	}

	ctx.info("Admin set to %q.", content)
	return nil
}

func setDeadline(ctx *cmdContext) error {
	settings, err := ctx.settings.Read(ctx, ctx.tx)
	if err != nil {
		return err
	}

	current := clearValue
	if !settings.RegistrationDeadline.IsZero() {
		current = settings.RegistrationDeadline.UTC().Format(time.RFC3339)
	}

	raw, err := ctx.askWithDefault("Registration deadline in RFC 3339 (- to remove): ", current)
	if err != nil {
		return err
	}

	var content string

	if raw != clearValue {
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("could not parse deadline %q: %w", raw, err)
		}

		content = deadline.UTC().Format(time.RFC3339)
	}

	if err := ctx.updateSetting(models.ConfigRegistrationDeadline, content); err != nil {
		return err
	}

	ctx.info("Registration deadline set to %q.", content)
	return nil
}

func (c *cmdContext) updateSetting(item, content string) error {
	entity := models.ConfigEntity{
		Item:    item,
		Content: content,
	}

	if err := c.configDao.Upsert(c, c.tx, &entity); err != nil {
		return fmt.Errorf("could not update %s: %w", item, err)
	}

	return nil
}
