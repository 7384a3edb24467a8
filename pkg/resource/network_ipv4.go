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

package resource

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const networkIPv4Help = `network_ipv4 - IPv4 network address

Configuration parameters:
 - [REQUIRED] address (STRING; dotted decimal IPv4):
   IPv4 network address
 - [REQUIRED] mask (NUMBER; CIDR):
   network mask/prefix length
 - [REQUIRED] device (STRING):
   network device (interface) name
 - [OPTIONAL] broadcast (STRING; dotted decimal IPv4):
   network broadcast address
 - [OPTIONAL] anycast (STRING; dotted decimal IPv4):
   network anycast address
 - [OPTIONAL] label (STRING):
   address label
 - [OPTIONAL] scope (*global|link|host|NUMBER):
   address scope
`

// IPv4 is the network_ipv4 resource, wrapping the ip-address tooling.
type IPv4 struct {
	base
}

func newIPv4(id string, config map[string]string) Resource {
	return &IPv4{base: newBase("network_ipv4", id, config)}
}

func (a *IPv4) Verify() error {
	var result *multierror.Error
	for _, setting := range []string{"address", "mask", "device"} {
		if a.config[setting] == "" {
			result = multierror.Append(result, fmt.Errorf("invalid resource configuration; missing %q setting", setting))
		}
	}
	return result.ErrorOrNil()
}

func (a *IPv4) Start() error {
	a.log().Info("Starting")

	if a.Status(true, StatusStarted) == StatusStarted {
		a.log().Info("Already started")
		return nil
	}

	command := []string{"ip", "-4", "address", "add", fmt.Sprintf("%s/%s", a.config["address"], a.config["mask"])}
	for _, setting := range []string{"broadcast", "anycast", "label", "scope"} {
		if value, ok := a.config[setting]; ok {
			command = append(command, setting, value)
		}
	}
	command = append(command, "dev", a.config["device"])

	if _, err := system.Shell(command); err != nil {
		a.log().Error(err)
		a.status = StatusError
		return err
	}

	a.status = StatusStarted
	return nil
}

func (a *IPv4) Stop() error {
	a.log().Info("Stopping")

	if a.Status(true, StatusStopped) == StatusStopped {
		a.log().Info("Already stopped")
		return nil
	}

	_, err := system.Shell([]string{
		"ip", "-4", "address", "delete",
		fmt.Sprintf("%s/%s", a.config["address"], a.config["mask"]),
		"dev", a.config["device"],
	})
	if err != nil {
		a.log().Error(err)
		a.status = StatusError
		return err
	}

	a.status = StatusStopped
	return nil
}

func (a *IPv4) Status(stateful bool, intent Status) Status {
	if !stateful {
		return a.status
	}

	// Match on the address only, independently from a potentially
	// mismatching network mask, device or options.
	status := StatusStarted
	_, err := system.Shell(
		[]string{"ip", "-4", "address", "show"},
		[]string{"grep", "-Fq", fmt.Sprintf("inet %s/", a.config["address"])},
	)
	if err != nil {
		if system.ExitedWith(err, 0, 1) {
			status = StatusStopped
		} else {
			a.log().Error(err)
			status = StatusError
		}
	}

	a.status = status
	return a.status
}
