// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/cluster"
	"github.com/cedric-dufour/KiSC/pkg/resource"
)

// name holds the name of this program
const (
	name    = "kisc"
	project = "K.I.S.S. Cluster"
)

// version is specified at compilation time (see Makefile).
var version = ""

// commit is the git commit the binary is compiled from. It is
// specified at compilation time (see Makefile).
var commit = ""

const usage = project + ` resource manager

kisc is a command line program for managing cluster resources (hosts,
services, network objects, mountpoints, health checks) without any
central daemon: cluster-wide state is inferred from runtime files
written to a shared directory.`

const notes = `
NOTES:

- Status queries exit with the status code itself:
  0=Started, 1=Suspended, 2=Stopped, 3=Error (255=operational failure).

`

// exitFailure is the exit code of operational failures (as opposed to
// status codes reported by status queries).
const exitFailure = 255

var kiscLog = logrus.New()

// exit allows tests to trap program termination.
var exit = os.Exit

// fatal prints the error's details and exits the program.
func fatal(err error) {
	kiscLog.Error(err)
	fmt.Fprintln(os.Stderr, err)
	exit(exitFailure)
}

// verboseLevels maps the --verbose levels (0=NONE .. 5=TRACE) onto the
// logging levels.
var verboseLevels = []logrus.Level{
	logrus.PanicLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
	logrus.DebugLevel,
	logrus.TraceLevel,
}

func beforeSubcommands(context *cli.Context) error {
	verbose := context.GlobalInt("verbose")
	if verbose < 0 {
		verbose = 0
	}
	if verbose >= len(verboseLevels) {
		verbose = len(verboseLevels) - 1
	}
	kiscLog.Level = verboseLevels[verbose]
	if verbose == 0 {
		kiscLog.Out = io.Discard
	} else {
		kiscLog.Out = os.Stderr
	}

	if path := context.GlobalString("log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0640)
		if err != nil {
			return err
		}
		kiscLog.Out = f
	}

	switch context.GlobalString("log-format") {
	case "text":
		// retain logrus's default.
	case "json":
		kiscLog.Formatter = new(logrus.JSONFormatter)
	default:
		return fmt.Errorf("unknown log-format %q", context.GlobalString("log-format"))
	}

	// Set the library packages' logger.
	cluster.SetLogger(kiscLog)
	resource.SetLogger(kiscLog)

	// Wire the cluster-variable resolver into the resources needing it.
	resource.SetFileResolver(cluster.CopyFileResolver)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = name
	app.Usage = usage

	cli.AppHelpTemplate = fmt.Sprintf(`%s%s`, cli.AppHelpTemplate, notes)

	v := name
	if version != "" {
		v += " " + version
	}
	if commit != "" {
		v += " (commit " + commit + ")"
	}
	app.Version = v

	// Override the default function to display version details to
	// ensure the "--version" option and "version" command are identical.
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(c.App.Version)
	}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, C",
			Value: cluster.DefaultConfigFile,
			Usage: "cluster configuration file",
		},
		cli.IntFlag{
			Name:  "verbose, V",
			Usage: "standard error verbosity level; 0=NONE ... 5=TRACE",
		},
		cli.BoolFlag{
			Name:  "silent, S",
			Usage: "mute all standard output messages",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "set the log file path where internal debug information is written",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the format used by logs ('text' (default), or 'json')",
		},
	}

	app.Commands = []cli.Command{
		configCommand,
		clusterCommand,
		hostCommand,
		resourceCommand,
	}

	app.Before = beforeSubcommands

	// cli prints ExitCoder messages itself; keep the actual exit under
	// our (test-trappable) control.
	cli.OsExiter = func(int) {}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			exit(exitErr.ExitCode())
			return
		}
		fatal(err)
	}
}
