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
	"strings"

	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/cluster"
	"github.com/cedric-dufour/KiSC/pkg/resource"
)

var hostCommand = cli.Command{
	Name:  "host",
	Usage: "host management",
	Subcommands: []cli.Command{
		hostStartCommand,
		hostStopCommand,
		hostStatusCommand,
		hostListCommand,
	},
}

// hostCtl builds the controller for the given host ID, the local host
// when empty.
func hostCtl(context *cli.Context, config *cluster.Config, hostID string) (*cluster.HostCtl, error) {
	if hostID == "" {
		var err error
		if hostID, err = localHostID(config); err != nil {
			return nil, err
		}
	}
	return cluster.NewHostCtl(config, hostID)
}

var hostStartCommand = cli.Command{
	Name:      "start",
	Usage:     "start the host: its bootstrap resources (in declaration order), then the host itself",
	ArgsUsage: `[host-id] (default: local host)`,
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := hostCtl(context, config, context.Args().First())
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Start())
	},
}

var hostStopCommand = cli.Command{
	Name:      "stop",
	Usage:     "stop the host: the host itself, then its non-persistent bootstrap resources (in reverse order)",
	ArgsUsage: `[host-id] (default: local host)`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "force",
			Usage: "force action (DANGEROUS!)",
		},
	},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := hostCtl(context, config, context.Args().First())
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Stop(context.Bool("force")))
	},
}

var hostStatusCommand = cli.Command{
	Name:      "status",
	Usage:     "query the host status (exit code: 0=Started, 1=Suspended, 2=Stopped, 3=Error)",
	ArgsUsage: `[host-id] (default: local host)`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "local",
			Usage: "query the host local status (in addition to its global status)",
		},
	},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := hostCtl(context, config, context.Args().First())
		if err != nil {
			return operationExit(context, err)
		}

		status := ctl.Status(context.Bool("local"), resource.StatusUnknown)
		if !context.GlobalBool("silent") {
			resources := strings.Join(ctl.Host().ResourcesIDs(false), ",")
			if resources == "" {
				resources = "-"
			}
			fmt.Printf("%s %s %s\n", ctl.Host().ID(), statusColor(status), resources)
		}
		return statusExit(status)
	},
}

var hostListCommand = cli.Command{
	Name:  "list",
	Usage: "print the local host's identifier (ID)",
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		hostID, err := localHostID(config)
		if err != nil {
			return operationExit(context, err)
		}
		fmt.Println(hostID)
		return nil
	},
}
