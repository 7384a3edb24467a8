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

const networkBondHelp = `network_bond - network bond (trunk) interface

Configuration parameters:
 - [REQUIRED] name (STRING):
   bond name
 - [REQUIRED] mode (balance-rr|active-backup|balance-xor|broadcast|802.3ad|balance-tlb|balance-alb):
   bonding mode
 - [REQUIRED] devices (STRING; comma-separated):
   bonded network devices (interfaces) names -> links/slaves
 - [OPTIONAL] bond parameters: miimon, updelay, downdelay, use_carrier,
   arp_interval, arp_ip_target, arp_all_targets, arp_validate, primary,
   primary_reselect, active_slave, all_slaves_active, fail_over_mac,
   xmit_hash_policy, packets_per_slave, tlb_dynamic_lb, lacp_rate,
   ad_select, num_grat_arp, num_unsol_na, lp_interval, resend_igmp
 - [OPTIONAL] device parameters: address, mtu, txqueuelen, numtxqueues,
   numrxqueues
`

// bondOptions are the bonding driver options applied through sysfs
// after the device is created.
var bondOptions = []string{
	"miimon", "updelay", "downdelay", "use_carrier",
	"arp_interval", "arp_ip_target", "arp_all_targets", "arp_validate",
	"primary_reselect",
	"all_slaves_active", "fail_over_mac", "xmit_hash_policy", "packets_per_slave", "tlb_dynamic_lb",
	"lacp_rate", "ad_select",
	"num_grat_arp", "num_unsol_na", "lp_interval", "resend_igmp",
}

// linkSettings are the ip-link device settings shared by the link-layer
// resource types.
var linkSettings = []string{"address", "mtu", "txqueuelen", "numtxqueues", "numrxqueues"}

// Bond is the network_bond resource, wrapping the ip-link and bonding
// sysfs tooling.
type Bond struct {
	base
}

func newBond(id string, config map[string]string) Resource {
	return &Bond{base: newBase("network_bond", id, config)}
}

func (b *Bond) Verify() error {
	var result *multierror.Error
	for _, setting := range []string{"name", "mode", "devices"} {
		if b.config[setting] == "" {
			result = multierror.Append(result, fmt.Errorf("invalid resource configuration; missing %q setting", setting))
		}
	}
	return result.ErrorOrNil()
}

func (b *Bond) Start() error {
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

func (b *Bond) start() error {
	name := b.config["name"]

	// Load the bonding driver, without creating any default device.
	if _, err := system.Shell([]string{"modprobe", "bonding", "max_bonds=0"}); err != nil {
		return err
	}

	command := []string{"ip", "link", "add", "name", name}
	for _, setting := range linkSettings {
		if value, ok := b.config[setting]; ok {
			command = append(command, setting, value)
		}
	}
	command = append(command, "type", "bond", "mode", b.config["mode"])
	if _, err := system.Shell(command); err != nil {
		return err
	}

	for _, setting := range bondOptions {
		if value, ok := b.config[setting]; ok {
			if err := system.Echo(value, fmt.Sprintf("/sys/class/net/%s/bonding/%s", name, setting)); err != nil {
				return err
			}
		}
	}

	for _, device := range system.ParseList(b.config["devices"]) {
		if _, err := system.Shell([]string{"ip", "link", "set", device, "master", name, "up"}); err != nil {
			return err
		}
	}

	for _, setting := range []string{"active_slave", "primary"} {
		if value, ok := b.config[setting]; ok {
			if err := system.Echo(value, fmt.Sprintf("/sys/class/net/%s/bonding/%s", name, setting)); err != nil {
				return err
			}
		}
	}

	_, err := system.Shell([]string{"ip", "link", "set", name, "up"})
	return err
}

func (b *Bond) Stop() error {
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

func (b *Bond) Status(stateful bool, intent Status) Status {
	if !stateful {
		return b.status
	}
	b.status = linkStatus(b.config["name"], intent)
	return b.status
}

// linkStatus probes a network interface's existence and, when the
// intent is Started, its operational (UP) state.
func linkStatus(name string, intent Status) Status {
	status := StatusStarted

	if _, err := system.Shell([]string{"test", "-e", fmt.Sprintf("/sys/class/net/%s", name)}); err != nil {
		if system.ExitedWith(err, 0, 1) {
			return StatusStopped
		}
		return StatusError
	}

	if intent == StatusStarted {
		if _, err := system.Shell([]string{"grep", "-Fq", "up", fmt.Sprintf("/sys/class/net/%s/operstate", name)}); err != nil {
			return StatusError
		}
	}

	return status
}
