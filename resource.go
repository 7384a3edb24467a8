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
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/cluster"
	"github.com/cedric-dufour/KiSC/pkg/resource"
)

var resourceCommand = cli.Command{
	Name:  "resource",
	Usage: "resource management",
	Subcommands: []cli.Command{
		resourceStartCommand,
		resourceSuspendCommand,
		resourceResumeCommand,
		resourceStopCommand,
		resourceMigrateCommand,
		resourceStatusCommand,
		resourceRuntimeCommand,
		resourceListCommand,
		resourceHelpCommand,
	},
}

var bootstrapFlag = cli.BoolFlag{
	Name:  "bootstrap",
	Usage: "bootstrap (host startup) resource",
}

var forceFlag = cli.BoolFlag{
	Name:  "force",
	Usage: "force action (DANGEROUS!)",
}

// resourceCtl builds the controller for the given resource, targeted
// at the local host.
func resourceCtl(context *cli.Context, config *cluster.Config, resourceID string, bootstrap bool) (*cluster.ResourceCtl, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("missing resource identifier")
	}
	hostID, err := localHostID(config)
	if err != nil {
		return nil, err
	}
	return cluster.NewResourceCtl(config, hostID, resourceID, bootstrap)
}

var resourceStartCommand = cli.Command{
	Name:      "start",
	Usage:     "start the resource (on the local host)",
	ArgsUsage: `<resource-id>`,
	Flags:     []cli.Flag{bootstrapFlag, forceFlag},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().First(), context.Bool("bootstrap"))
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Start(context.Bool("force")))
	},
}

var resourceSuspendCommand = cli.Command{
	Name:      "suspend",
	Usage:     "suspend the (started) resource",
	ArgsUsage: `<resource-id>`,
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().First(), false)
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Suspend())
	},
}

var resourceResumeCommand = cli.Command{
	Name:      "resume",
	Usage:     "resume the (suspended) resource",
	ArgsUsage: `<resource-id>`,
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().First(), false)
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Resume())
	},
}

var resourceStopCommand = cli.Command{
	Name:      "stop",
	Usage:     "stop the resource (on the local host)",
	ArgsUsage: `<resource-id>`,
	Flags:     []cli.Flag{bootstrapFlag, forceFlag},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().First(), context.Bool("bootstrap"))
		if err != nil {
			return operationExit(context, err)
		}
		return operationExit(context, ctl.Stop(context.Bool("force")))
	},
}

var resourceMigrateCommand = cli.Command{
	Name:      "migrate",
	Usage:     "migrate the resource from the local host to the given host",
	ArgsUsage: `<resource-id> <host-id>`,
	Flags:     []cli.Flag{forceFlag},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().Get(0), false)
		if err != nil {
			return operationExit(context, err)
		}
		newHostID := context.Args().Get(1)
		if newHostID == "" {
			return operationExit(context, fmt.Errorf("missing host identifier"))
		}
		return operationExit(context, ctl.Migrate(newHostID, context.Bool("force")))
	},
}

var resourceStatusCommand = cli.Command{
	Name:      "status",
	Usage:     "query the resource status (exit code: 0=Started, 1=Suspended, 2=Stopped, 3=Error)",
	ArgsUsage: `<resource-id>`,
	Flags: []cli.Flag{
		bootstrapFlag,
		cli.BoolFlag{
			Name:  "local",
			Usage: "query the resource local status (in addition to its global status)",
		},
	},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		bootstrap := context.Bool("bootstrap")
		ctl, err := resourceCtl(context, config, context.Args().First(), bootstrap)
		if err != nil {
			return operationExit(context, err)
		}

		// Probe locally only where the resource is actually scoped.
		local := context.Bool("local")
		if local {
			hostID, err := localHostID(config)
			if err != nil {
				return operationExit(context, err)
			}
			scoped, err := config.IsHostResource(hostID, context.Args().First(), bootstrap)
			if err != nil {
				return operationExit(context, err)
			}
			local = scoped
		}

		status := ctl.Status(local, resource.StatusUnknown)
		if !context.GlobalBool("silent") {
			hosts := strings.Join(ctl.Resource().HostsIDs(), ",")
			if hosts == "" {
				hosts = "-"
			}
			fmt.Printf("%s %s %s\n", ctl.Resource().ID(), statusColor(status), hosts)
		}
		return statusExit(status)
	},
}

var resourceRuntimeCommand = cli.Command{
	Name:      "runtime",
	Usage:     "show the resource configuration and runtime status",
	ArgsUsage: `<resource-id>`,
	Flags:     []cli.Flag{bootstrapFlag},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := resourceCtl(context, config, context.Args().First(), context.Bool("bootstrap"))
		if err != nil {
			return operationExit(context, err)
		}
		if !ctl.RuntimeExists() {
			return operationExit(context, fmt.Errorf("resource not started (no runtime file)"))
		}
		if err := ctl.LoadRuntime(); err != nil {
			return operationExit(context, err)
		}
		fmt.Print(ctl.Resource().String(true))
		return nil
	},
}

var resourceListCommand = cli.Command{
	Name:      "list",
	Usage:     "list resources (IDs) running on the host",
	ArgsUsage: `[host-id] (default: local host)`,
	Flags:     []cli.Flag{bootstrapFlag},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}
		ctl, err := hostCtl(context, config, context.Args().First())
		if err != nil {
			return operationExit(context, err)
		}
		if ctl.RuntimeExists() {
			if err := ctl.LoadRuntime(); err != nil {
				return operationExit(context, err)
			}
		}
		for _, id := range ctl.Host().ResourcesIDs(context.Bool("bootstrap")) {
			fmt.Println(id)
		}
		return nil
	},
}

var resourceHelpCommand = cli.Command{
	Name:      "help",
	Usage:     "display help on the given resource (type)",
	ArgsUsage: `<resource-id>`,
	Flags: []cli.Flag{
		bootstrapFlag,
		cli.BoolFlag{
			Name:  "type",
			Usage: "consider the specified resource as a resource type rather than an ID",
		},
	},
	Action: func(context *cli.Context) error {
		typ := context.Args().First()
		if typ == "" {
			fmt.Fprintln(os.Stderr, "available resource types:")
			for _, t := range resource.Types() {
				fmt.Println(t)
			}
			return nil
		}

		if !context.Bool("type") {
			config, err := loadClusterConfig(context)
			if err != nil {
				return err
			}
			r, err := config.Resource(typ, context.Bool("bootstrap"))
			if err != nil {
				return operationExit(context, err)
			}
			typ = r.Type()
		}

		help, err := resource.Help(typ)
		if err != nil {
			return operationExit(context, err)
		}
		fmt.Print(help)
		return nil
	},
}
