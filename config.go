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
	"sort"

	"github.com/urfave/cli"
)

var configCommand = cli.Command{
	Name:  "config",
	Usage: "configuration management",
	Subcommands: []cli.Command{
		configListCommand,
		configShowCommand,
		configResolveCommand,
	},
}

var configListCommand = cli.Command{
	Name:      "list",
	Usage:     "list configured hosts or resources",
	ArgsUsage: `{hosts|resources}`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "bootstrap",
			Usage: "bootstrap (host startup) resources",
		},
		cli.StringSliceFlag{
			Name:  "include, I",
			Usage: "include (only) hosts/resources with matching setting: key{=value|~=regexp}",
		},
		cli.StringSliceFlag{
			Name:  "exclude, X",
			Usage: "exclude hosts/resources with matching setting: key{=value|~=regexp}",
		},
	},
	Action: func(context *cli.Context) error {
		what := context.Args().First()
		if what != "hosts" && what != "resources" {
			return cli.NewExitError("invalid argument; expected {hosts|resources}", exitFailure)
		}

		include, err := parseSettingFilters(context.StringSlice("include"))
		if err != nil {
			return operationExit(context, err)
		}
		exclude, err := parseSettingFilters(context.StringSlice("exclude"))
		if err != nil {
			return operationExit(context, err)
		}

		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}

		var ids []string
		if what == "hosts" {
			for _, id := range config.HostsIDs() {
				host, _ := config.Host(id)
				if matchFilters(host.Config(), include, exclude) {
					ids = append(ids, id)
				}
			}
		} else {
			bootstrap := context.Bool("bootstrap")
			for _, id := range config.ResourcesIDs(bootstrap) {
				r, _ := config.Resource(id, bootstrap)
				if matchFilters(r.Config(), include, exclude) {
					ids = append(ids, id)
				}
			}
			sort.Strings(ids)
		}

		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var configShowCommand = cli.Command{
	Name:  "show",
	Usage: "show the cluster configuration (optionally scoped to one host or resource)",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "host, H",
			Usage: "host identifier (ID)",
		},
		cli.StringFlag{
			Name:  "resource, R",
			Usage: "resource identifier (ID)",
		},
		cli.BoolFlag{
			Name:  "bootstrap",
			Usage: "bootstrap (host startup) resource",
		},
	},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}

		if hostID := context.String("host"); hostID != "" {
			host, err := config.Host(hostID)
			if err != nil {
				return operationExit(context, err)
			}
			fmt.Print(host.String(true))
			return nil
		}
		if resourceID := context.String("resource"); resourceID != "" {
			r, err := config.Resource(resourceID, context.Bool("bootstrap"))
			if err != nil {
				return operationExit(context, err)
			}
			fmt.Print(r.String(true))
			return nil
		}

		fmt.Print(config.String(false))
		return nil
	},
}

var configResolveCommand = cli.Command{
	Name:  "resolve",
	Usage: "substitute cluster variables in the given file",
	ArgsUsage: `[input] [output]

   [input] is the file to resolve (standard input if omitted)
   [output] is the destination file (standard output if omitted)`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "host, H",
			Usage: "target host identifier (bound to the '$HOST' variable)",
		},
		cli.StringFlag{
			Name:  "resource, R",
			Usage: "target resource identifier (bound to the '$SELF' variable)",
		},
		cli.BoolFlag{
			Name:  "bootstrap",
			Usage: "bootstrap (host startup) resource",
		},
	},
	Action: func(context *cli.Context) error {
		config, err := loadClusterConfig(context)
		if err != nil {
			return err
		}

		input := context.Args().Get(0)
		output := context.Args().Get(1)
		err = config.ResolveFile(input, output,
			context.String("host"), context.String("resource"), context.Bool("bootstrap"), nil)
		return operationExit(context, err)
	},
}
