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

const networkBridgeHelp = `network_bridge - network bridge interface

Configuration parameters:
 - [REQUIRED] name (STRING):
   bridge name
 - [REQUIRED] devices (STRING; comma-separated):
   attached network devices (interfaces) names
 - [OPTIONAL] bridge parameters: ageing_time, stp_state, priority,
   hello_time, forward_delay, max_age
 - [OPTIONAL] device parameters: address, mtu, txqueuelen, numtxqueues,
   numrxqueues
`

var bridgeOptions = []string{"ageing_time", "stp_state", "priority", "hello_time", "forward_delay", "max_age"}

// Bridge is the network_bridge resource, wrapping the ip-link and
// bridge sysfs tooling.
type Bridge struct {
	base
}

func newBridge(id string, config map[string]string) Resource {
	return &Bridge{base: newBase("network_bridge", id, config)}
}

func (b *Bridge) Verify() error {
	var result *multierror.Error
	for _, setting := range []string{"name", "devices"} {
		if b.config[setting] == "" {
			result = multierror.Append(result, fmt.Errorf("invalid resource configuration; missing %q setting", setting))
		}
	}
	return result.ErrorOrNil()
}

func (b *Bridge) Start() error {
	b.log().Info("Starting")

	if b.Status(true, StatusStarted) == StatusStarted {
		b.log().Info("Already started")
		return nil
	}

	if err := b.start(); err != nil {
		b.log().Error(err)
		b.status = StatusError
		return err
	}

	b.status = StatusStarted
	return nil
}

func (b *Bridge) start() error {
	name := b.config["name"]

	command := []string{"ip", "link", "add", "name", name}
	for _, setting := range linkSettings {
		if value, ok := b.config[setting]; ok {
			command = append(command, setting, value)
		}
	}
	command = append(command, "type", "bridge")
	if _, err := system.Shell(command); err != nil {
		return err
	}

	for _, setting := range bridgeOptions {
		if value, ok := b.config[setting]; ok {
			if err := system.Echo(value, fmt.Sprintf("/sys/class/net/%s/bridge/%s", name, setting)); err != nil {
				return err
			}
		}
	}

	for _, device := range system.ParseList(b.config["devices"]) {
		if _, err := system.Shell([]string{"ip", "link", "set", device, "master", name, "up"}); err != nil {
			return err
		}
	}

	_, err := system.Shell([]string{"ip", "link", "set", name, "up"})
	return err
}

func (b *Bridge) Stop() error {
	b.log().Info("Stopping")

	if b.Status(true, StatusStopped) == StatusStopped {
		b.log().Info("Already stopped")
		return nil
	}

	var result *multierror.Error
	name := b.config["name"]

	if _, err := system.Shell([]string{"ip", "link", "set", name, "down"}); err != nil {
		b.log().Warn(err)
		result = multierror.Append(result, err)
	}

	for _, device := range system.ParseList(b.config["devices"]) {
		if _, err := system.Shell([]string{"ip", "link", "set", device, "nomaster", "down"}); err != nil {
			b.log().Warn(err)
			result = multierror.Append(result, err)
		}
	}

	if _, err := system.Shell([]string{"ip", "link", "delete", name}); err != nil {
		b.log().Error(err)
		b.status = StatusError
		result = multierror.Append(result, err)
	} else {
		b.status = StatusStopped
	}

	return result.ErrorOrNil()
}

func (b *Bridge) Status(stateful bool, intent Status) Status {
	if !stateful {
		return b.status
	}
	b.status = linkStatus(b.config["name"], intent)
	return b.status
}
