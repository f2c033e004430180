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

// Package shell is an interactive shell for course operators. It edits the parts of the course
// that may change while the pipeline is running: the whitelist and the course settings.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
)

// Shell is an interactive shell to inspect users and manage the whitelist and settings.
type Shell struct {
	conn         database.Conn
	userDao      database.UserDao
	progressDao  database.ProgressDao
	whitelistDao database.WhitelistDao
	configDao    database.ConfigDao
	settings     *course.SettingsReader
	commands     cmdSlice
}

// NewShell creates a new shell instance.
func NewShell(
	conn database.Conn,
	userDao database.UserDao,
	progressDao database.ProgressDao,
	whitelistDao database.WhitelistDao,
	configDao database.ConfigDao,
	settings *course.SettingsReader,
) *Shell {
	return &Shell{
		conn:         conn,
		userDao:      userDao,
		progressDao:  progressDao,
		whitelistDao: whitelistDao,
		configDao:    configDao,
		settings:     settings,
		commands: cmdSlice{
			{
				name: "user",
				help: "Inspect registered users.",
				children: cmdSlice{
					{
						name:   "list",
						help:   "List all users.",
						action: listUsers,
					},
					{
						name:   "info",
						help:   "Show the progress of a user.",
						action: infoUser,
					},
				},
			},
			{
				name: "whitelist",
				help: "Manage the addresses allowed to register.",
				children: cmdSlice{
					{
						name:   "list",
						help:   "List all whitelisted addresses.",
						action: listWhitelist,
					},
					{
						name:   "add",
						help:   "Allow a new address to register.",
						action: addWhitelist,
					},
				},
			},
			{
				name: "settings",
				help: "Manage the course settings.",
				children: cmdSlice{
					{
						name:   "show",
						help:   "Show the current settings.",
						action: showSettings,
					},
					{
						name:   "admin",
						help:   "Set the address questions are forwarded to.",
						action: setAdmin,
					},
					{
						name:   "deadline",
						help:   "Set the registration deadline.",
						action: setDeadline,
					},
				},
			},
		},
	}
}

// Run starts the shell read loop.
func (s *Shell) Run() error {
	config := readline.Config{
		AutoComplete: readline.NewPrefixCompleter(s.commands.buildCompleters()...),
	}

	rl, err := readline.NewEx(&config)
	if err != nil {
		return err
	}

	defer rl.Close()

	p := readlinePrompter{rl: rl}

	for {
		rl.SetPrompt(">>> ")

		line, err := rl.Readline()
		if err != nil {
			if isUnimportantError(err) {
				return nil
			}

			return err
		}

		args := strings.Fields(line)
		if err := s.handleCommand(context.Background(), p, args); err != nil && !isUnimportantError(err) {
			fmt.Printf("\nERROR:\n  %s\n\n", err)
		}
	}
}

func isUnimportantError(err error) bool {
	return errors.Is(err, fuzzyfinder.ErrAbort) ||
		errors.Is(err, readline.ErrInterrupt) ||
		errors.Is(err, io.EOF)
}

// prompter asks the operator for input.
type prompter interface {
	// ask reads a non-empty line. The answer is prefilled with defaultValue.
	ask(prompt, defaultValue string) (string, error)
	// choose lets the operator pick one of items and returns its index.
	choose(prompt string, items []string) (int, error)
}

type readlinePrompter struct {
	rl *readline.Instance
}

func (p readlinePrompter) ask(prompt, defaultValue string) (string, error) {
	p.rl.HistoryDisable()
	defer p.rl.HistoryEnable()

	p.rl.SetPrompt(prompt)

	for {
		answer, err := p.rl.ReadlineWithDefault(defaultValue)
		if err != nil || len(answer) > 0 {
			return answer, err
		}
	}
}

func (readlinePrompter) choose(prompt string, items []string) (int, error) {
	return fuzzyfinder.Find(items,
		func(i int) string { return items[i] },
		fuzzyfinder.WithPromptString(prompt))
}

type cmdFunc func(*cmdContext) error

type cmdSlice []cmdDef

func (s cmdSlice) lookup(args []string) (cmdDef, bool) {
	if len(s) > 0 && len(args) > 0 {
		var (
			head = args[0]
			tail = args[1:]
		)

		for _, cmd := range s {
			if head == cmd.name {
				if len(tail) > 0 {
					return cmd.children.lookup(tail)
				}

				return cmd, true
			}
		}
	}

	return cmdDef{}, false
}

func (s cmdSlice) buildCompleters() []readline.PrefixCompleterInterface {
	var completers []readline.PrefixCompleterInterface

	for _, cmd := range s {
		cmdCompleter := readline.PcItem(cmd.name, cmd.children.buildCompleters()...)
		completers = append(completers, cmdCompleter)
	}

	return completers
}

type cmdDef struct {
	name     string
	help     string
	action   cmdFunc
	children cmdSlice
}

type cmdContext struct {
	context.Context
	*Shell

	prompt    prompter
	tx        database.Tx
	infoLines []string
}

func (c *cmdContext) info(format string, v ...interface{}) {
	text := fmt.Sprintf(format, v...)
	c.infoLines = append(c.infoLines, text)
}

func (c *cmdContext) ask(prompt string) (string, error) {
	return c.prompt.ask(prompt, "")
}

func (c *cmdContext) askWithDefault(prompt, defaultValue string) (string, error) {
	return c.prompt.ask(prompt, defaultValue)
}

func (s *Shell) handleCommand(ctx context.Context, p prompter, args []string) error {
	cmd, ok := s.commands.lookup(args)
	if ok {
		if cmd.action != nil {
			infoLines, err := s.executeCommand(ctx, p, cmd)
			if err != nil {
				return err
			}

			printInfo(infoLines)
			return nil
		}

		printCommandHelp(cmd)
	} else {
		printCommandUnknown(s.commands, args)
	}

	return nil
}

// executeCommand runs a command inside of a single transaction and returns its output.
func (s *Shell) executeCommand(ctx context.Context, p prompter, cmd cmdDef) ([]string, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback()

	cmdCtx := cmdContext{
		Context: ctx,
		Shell:   s,
		prompt:  p,
		tx:      tx,
	}

	if err := cmd.action(&cmdCtx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return cmdCtx.infoLines, nil
}

func printInfo(infoLines []string) {
	if len(infoLines) > 0 {
		fmt.Println()

		for _, infoLine := range infoLines {
			fmt.Print("  ")
			fmt.Println(infoLine)
		}

		fmt.Println()
	}
}

func printCommandUnknown(cmds cmdSlice, args []string) {
	fmt.Printf("\n  Unknown command %q\n", strings.Join(args, " "))
	printCommandUsage(cmds)
}

func printCommandHelp(cmd cmdDef) {
	fmt.Printf("\n  %s\n", cmd.help)
	printCommandUsage(cmd.children)
}

func printCommandUsage(cmds cmdSlice) {
	if len(cmds) > 0 {
		fmt.Println()
		fmt.Println("Commands:")

		for _, cmd := range cmds {
			fmt.Printf("  %-10s  %s\n", cmd.name, cmd.help)
		}
	}

	fmt.Println()
}
