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
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/cluster"
	"github.com/cedric-dufour/KiSC/pkg/resource"
)

// printErrors writes an accumulated error list to standard error: the
// last (most specific) message by default, the full ordered list at
// debug verbosity.
func printErrors(context *cli.Context, err error) {
	if err == nil {
		return
	}
	if context.GlobalInt("verbose") >= 4 {
		for _, sub := range cluster.Errors(err) {
			fmt.Fprintln(os.Stderr, sub)
		}
		return
	}
	fmt.Fprintln(os.Stderr, cluster.LastError(err))
}

// loadClusterConfig loads the cluster configuration named by the
// --config flag; on failure the errors are displayed and an
// operational-failure exit is returned.
func loadClusterConfig(context *cli.Context) (*cluster.Config, error) {
	config := cluster.NewConfig(context.GlobalString("config"))
	if err := config.Load(); err != nil {
		printErrors(context, err)
		return nil, cli.NewExitError("", exitFailure)
	}
	return config, nil
}

// localHostID returns the host ID matching the local hostname.
func localHostID(config *cluster.Config) (string, error) {
	host, err := config.HostByHostname("")
	if err != nil {
		return "", err
	}
	return host.ID(), nil
}

// operationExit turns an operation's error into the command exit: the
// errors are displayed and an operational-failure exit returned.
func operationExit(context *cli.Context, err error) error {
	if err == nil {
		return nil
	}
	printErrors(context, err)
	return cli.NewExitError("", exitFailure)
}

// statusExit turns a status query into the command exit code:
// 0=Started, 1=Suspended, 2=Stopped, 3=Error, 255=operational failure.
func statusExit(status resource.Status) error {
	code := exitFailure
	switch status {
	case resource.StatusStarted:
		code = 0
	case resource.StatusSuspended:
		code = 1
	case resource.StatusStopped:
		code = 2
	case resource.StatusError:
		code = 3
	}
	if code == 0 {
		return nil
	}
	return cli.NewExitError("", code)
}

// statusColor renders a status word, colored for human eyes (the color
// library disables itself on non-terminals).
func statusColor(status resource.Status) string {
	switch status {
	case resource.StatusStarted:
		return color.GreenString(status.String())
	case resource.StatusSuspended:
		return color.YellowString(status.String())
	case resource.StatusError:
		return color.RedString(status.String())
	}
	return status.String()
}

// settingFilter is one --include/--exclude term: a bare key matches
// its presence, key=value an exact value, key~=regexp a pattern.
type settingFilter struct {
	key     string
	value   string
	pattern *regexp.Regexp
	exact   bool
}

// parseSettingFilters parses --include/--exclude terms.
func parseSettingFilters(terms []string) ([]settingFilter, error) {
	var filters []settingFilter
	for _, term := range terms {
		key, value, found := strings.Cut(term, "=")
		if !found {
			filters = append(filters, settingFilter{key: term})
			continue
		}
		if strings.HasSuffix(key, "~") {
			pattern, err := regexp.Compile(value)
			if err != nil {
				return nil, fmt.Errorf("invalid filter (%s): %w", term, err)
			}
			filters = append(filters, settingFilter{key: strings.TrimSuffix(key, "~"), pattern: pattern})
			continue
		}
		filters = append(filters, settingFilter{key: key, value: value, exact: true})
	}
	return filters, nil
}

// matches reports whether one filter term matches the configuration.
func (f settingFilter) matches(config map[string]string) bool {
	value, ok := config[f.key]
	if !ok {
		return false
	}
	switch {
	case f.pattern != nil:
		return f.pattern.MatchString(value)
	case f.exact:
		return f.value == value
	}
	return true
}

// matchFilters applies the include/exclude filter sets: any matching
// exclude term rejects; with include terms present, at least one must
// match.
func matchFilters(config map[string]string, include, exclude []settingFilter) bool {
	for _, filter := range exclude {
		if filter.matches(config) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, filter := range include {
		if filter.matches(config) {
			return true
		}
	}
	return false
}
