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
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/cluster"
	"github.com/cedric-dufour/KiSC/pkg/resource"
)

var clusterCommand = cli.Command{
	Name:  "cluster",
	Usage: "cluster management",
	Subcommands: []cli.Command{
		clusterStatusCommand,
	},
}

var clusterStatusCommand = cli.Command{
	Name:      "status",
	Usage:     "query the cluster-wide hosts or resources status",
	ArgsUsage: `{hosts|resources}`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "bootstrap",
			Usage: "bootstrap (host startup) resources",
		},
	},
	Action: func(context *cli.Context) error {
		what := context.Args().First()
		if what != "hosts" && what != "resources" {
			return cli.NewExitError("invalid argument; expected {hosts|resources}", exitFailure)
		}

		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		defer w.Flush()

		if what == "hosts" {
			for _, hostID := range config.HostsIDs() {
				ctl, err := cluster.NewHostCtl(config, hostID)
				if err != nil {
					return operationExit(context, err)
				}
				status := ctl.Status(false, resource.StatusUnknown)
				resources := strings.Join(ctl.Host().ResourcesIDs(false), ",")
				if resources == "" {
					resources = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", hostID, statusColor(status), resources)
			}
			return nil
		}

		// A resource may run anywhere; its status is wherever its
		// runtime file says it is.
		bootstrap := context.Bool("bootstrap")
		ids := append([]string{}, config.ResourcesIDs(bootstrap)...)
		sort.Strings(ids)
		localHost, err := localHostID(config)
		if err != nil {
			return operationExit(context, err)
		}
		for _, resourceID := range ids {
			ctl, err := cluster.NewResourceCtl(config, localHost, resourceID, bootstrap)
			if err != nil {
				return operationExit(context, err)
			}
			status := ctl.Status(false, resource.StatusUnknown)
			hosts := strings.Join(ctl.Resource().HostsIDs(), ",")
			if hosts == "" {
				hosts = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", resourceID, statusColor(status), hosts)
		}
		return nil
	},
}
