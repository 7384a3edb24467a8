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
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const networkVlanHelp = `network_vlan - network VLAN interface

Configuration parameters:
 - [REQUIRED] name (STRING):
   VLAN interface name
 - [REQUIRED] vlan (NUMBER):
   VLAN ID
 - [REQUIRED] device (STRING):
   parent network device (interface) name
 - [OPTIONAL] VLAN parameters: protocol, reorder_hdr, gvrp, mvrp,
   loose_binding, ingress_qos_map, egress_qos_map
 - [OPTIONAL] device parameters: address, mtu, txqueuelen, numtxqueues,
   numrxqueues
`

// Vlan is the network_vlan resource, wrapping the ip-link tooling.
type Vlan struct {
	base
}

func newVlan(id string, config map[string]string) Resource {
	return &Vlan{base: newBase("network_vlan", id, config)}
}

func (v *Vlan) Verify() error {
	var result *multierror.Error
	for _, setting := range []string{"name", "vlan", "device"} {
		if v.config[setting] == "" {
			result = multierror.Append(result, fmt.Errorf("invalid resource configuration; missing %q setting", setting))
		}
	}
	return result.ErrorOrNil()
}

func (v *Vlan) Start() error {
	v.log().Info("Starting")

	if v.Status(true, StatusStarted) == StatusStarted {
		v.log().Info("Already started")
		return nil
	}

	if err := v.start(); err != nil {
		v.log().Error(err)
		v.status = StatusError
		return err
	}

	v.status = StatusStarted
	return nil
}

func (v *Vlan) start() error {
	name := v.config["name"]

	command := []string{"ip", "link", "add", "link", v.config["device"], "name", name}
	for _, setting := range linkSettings {
		if value, ok := v.config[setting]; ok {
			command = append(command, setting, value)
		}
	}
	command = append(command, "type", "vlan")
	if value, ok := v.config["protocol"]; ok {
		command = append(command, "protocol", value)
	}
	command = append(command, "id", v.config["vlan"])
	for _, setting := range []string{"reorder_hdr", "gvrp", "mvrp", "loose_binding"} {
		if value, ok := v.config[setting]; ok {
			command = append(command, setting, value)
		}
	}
	for _, setting := range []string{"ingress_qos_map", "egress_qos_map"} {
		if value, ok := v.config[setting]; ok {
			command = append(command, strings.ReplaceAll(setting, "_", "-"))
			command = append(command, system.ParseList(value)...)
		}
	}
	if _, err := system.Shell(command); err != nil {
		return err
	}

	_, err := system.Shell([]string{"ip", "link", "set", name, "up"})
	return err
}

func (v *Vlan) Stop() error {
	v.log().Info("Stopping")

	if v.Status(true, StatusStopped) == StatusStopped {
		v.log().Info("Already stopped")
		return nil
	}

	var result *multierror.Error
	name := v.config["name"]

	if _, err := system.Shell([]string{"ip", "link", "set", name, "down"}); err != nil {
		v.log().Warn(err)
		result = multierror.Append(result, err)
	}

	if _, err := system.Shell([]string{"ip", "link", "delete", name}); err != nil {
		v.log().Error(err)
		v.status = StatusError
		result = multierror.Append(result, err)
	} else {
		v.status = StatusStopped
	}

	return result.ErrorOrNil()
}

func (v *Vlan) Status(stateful bool, intent Status) Status {
	if !stateful {
		return v.status
	}
	v.status = linkStatus(v.config["name"], intent)
	return v.status
}
