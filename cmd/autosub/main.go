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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/log"
)

const usageText = `
Usage:
  autosub [OPTIONS] COMMAND

  Hand out tasks and grade submissions by email.

Version:
  %s

Commands:
  start     Start fetching, grading and sending mails
  stats     Print the counters and task statistics
  shell     Start an interactive administration shell

Options:
%s
`

var (
	// Version is set at compile-time.
	Version string
)

func init() {
	viper.SetDefault("log.pretty", false)
}

func main() {
	var (
		configFilename string
		envFilename    string
	)

	flags := pflag.NewFlagSet("autosub", pflag.ContinueOnError)
	flags.StringVarP(&configFilename, "config", "c", "", "Path to a configuration file")
	flags.StringVarP(&envFilename, "env", "e", ".env", "Path to an optional file of environment variables")
	flags.Usage = printUsage(flags)

	if err := flags.Parse(os.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatal().Err(err).Msg("could not parse flags")
	}

	switch commandName := flags.Arg(1); commandName {
	case "start", "stats", "shell":
		loadEnv(envFilename)
		setupConfig(configFilename)
		sink := setupLogger()
		printConfig()

		err := runCommand(commandName)
		if err != nil {
			log.Error().Err(err).Msg("command failed")
		}

		if !sink.Close(viper.GetDuration("log.grace")) {
			fmt.Fprintln(os.Stderr, "pending log records were not flushed on shutdown")
		}

		if dropped := sink.Dropped(); dropped > 0 {
			fmt.Fprintf(os.Stderr, "%d log records written during shutdown were dropped\n", dropped)
		}

		if err != nil {
			os.Exit(1)
		}
	default:
		flags.Usage()
	}
}

type command interface {
	run() error
}

func runCommand(commandName string) error {
	var (
		cmd command
		err error
	)

	switch commandName {
	case "start":
		cmd, err = newStartCommand()
	case "stats":
		cmd, err = newStatsCommand()
	case "shell":
		cmd, err = newShellCommand()
	}

	if err != nil {
		return fmt.Errorf("could not initialize the application: %w", err)
	}

	return cmd.run()
}

func printUsage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, usageText,
			Version,
			flags.FlagUsages())
	}
}

// setupLogger puts the logging channel in front of stderr. The returned sink has to be closed
// last, so that records of the shutdown are flushed.
func setupLogger() *log.Sink {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		log.Fatal().Err(err).Msg("unknown log level")
	}

	var out io.Writer = os.Stderr
	if viper.GetBool("log.pretty") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	sink := log.NewSinkFromViper(out)
	log.Redirect(sink, level)

	log.Info().Stringer("level", level).Msg("logger ready")
	return sink
}

func loadEnv(filename string) {
	if err := godotenv.Load(filename); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatal().Err(err).Str("filename", filename).Msg("could not load environment file")
		}

		return
	}

	log.Info().Str("filename", filename).Msg("environment loaded")
}

func setupConfig(filename string) {
	viper.SetTypeByDefaultValue(true)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("AUTOSUB")

	if filename != "" {
		readConfig(filename)
	} else {
		log.Info().Msg("no config file provided. using environment only")
	}
}

func readConfig(filename string) {
	log.Info().Str("filename", filename).Msg("loading configuration")
	viper.SetConfigFile(filename)

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Err(err).Msg("configuration file missing")
		} else {
			log.Fatal().Err(err).Msg("could not load configuration")
		}
	}
}

func printConfig() {
	keys := viper.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasSuffix(key, "password") {
			log.Debug().Str("key", key).Msg("<redacted>")
			continue
		}

		v, _ := json.Marshal(viper.Get(key))
		log.Debug().Str("key", key).RawJSON("value", v).Msg("configuration")
	}
}
