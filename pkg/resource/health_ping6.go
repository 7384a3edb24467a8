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
	"strconv"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const healthPing6Help = `health_ping6 - (IPv6) ping health check

Configuration parameters:
 - [REQUIRED] address (STRING; comma-separated IPv6 addresses):
   address(es) to ping
 - [OPTIONAL] satisfy (NUMBER):
   consider the check successful if the given count of addresses is
   reachable (default: all)
 - [OPTIONAL] count (NUMBER [*1]):
   ping packet(s) to send
 - [OPTIONAL] interval (NUMBER; seconds [*1]):
   interval between ping packet(s)
 - [OPTIONAL] timeout (NUMBER; seconds [*5]):
   individual timeout for each ping packet
 - [OPTIONAL] deadline (NUMBER; seconds):
   absolute deadline for (all) ping packet(s)
 - [OPTIONAL] interface (STRING):
   interface or address to send the ping packet(s) from
 - [OPTIONAL] mark (STRING):
   mark to tag ping packet(s) with
 - [OPTIONAL] flow (STRING):
   IPv6 flow label (hexadecimal) identifier
`

// Ping6 is the health_ping6 resource, wrapping the ping6 tool; started
// means healthy.
type Ping6 struct {
	base
}

func newPing6(id string, config map[string]string) Resource {
	return &Ping6{base: newBase("health_ping6", id, config)}
}

func (p *Ping6) Verify() error {
	if p.config["address"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"address\" setting")
	}
	if satisfy, ok := p.config["satisfy"]; ok {
		if _, err := strconv.Atoi(satisfy); err != nil {
			return fmt.Errorf("invalid \"satisfy\" setting (%s)", satisfy)
		}
	}
	return nil
}

func (p *Ping6) Start() error {
	if p.Status(true, StatusStarted) == StatusStarted {
		p.log().Info("Already started")
		return nil
	}

	p.log().Info("Starting")
	if err := p.start(); err != nil {
		p.log().Error(err)
		p.status = StatusError
		return err
	}

	p.status = StatusStarted
	return nil
}

func (p *Ping6) start() error {
	satisfy := -1
	if value, ok := p.config["satisfy"]; ok {
		var err error
		if satisfy, err = strconv.Atoi(value); err != nil {
			return fmt.Errorf("invalid \"satisfy\" setting (%s)", value)
		}
	}

	command := []string{"ping6", "-q", "-n"}
	command = append(command, "-c", settingOrDefault(p.config, "count", "1"))
	command = append(command, "-i", settingOrDefault(p.config, "interval", "1"))
	command = append(command, "-W", settingOrDefault(p.config, "timeout", "5"))
	if value, ok := p.config["deadline"]; ok {
		command = append(command, "-w", value)
	}
	if value, ok := p.config["interface"]; ok {
		command = append(command, "-I", value)
	}
	if value, ok := p.config["mark"]; ok {
		command = append(command, "-m", value)
	}
	if value, ok := p.config["flow"]; ok {
		command = append(command, "-F", value)
	}

	addresses := system.ParseList(p.config["address"])
	satisfied := 0
	for _, address := range addresses {
		if _, err := system.Shell(append(append([]string{}, command...), address)); err != nil {
			if system.ExitedWith(err, 0, 1) {
				// address not reachable
				continue
			}
			return err
		}
		satisfied++
	}

	if satisfy < 0 {
		if satisfied < len(addresses) {
			return fmt.Errorf("ping failed (%d<%d)", satisfied, len(addresses))
		}
	} else if satisfied < satisfy {
		return fmt.Errorf("ping failed (%d<%d)", satisfied, satisfy)
	}
	return nil
}

func (p *Ping6) Stop() error {
	p.status = StatusStopped
	p.log().Info("Stopped")
	return nil
}

func (p *Ping6) Status(stateful bool, intent Status) Status {
	return p.status
}

func settingOrDefault(config map[string]string, setting, def string) string {
	if value, ok := config[setting]; ok {
		return value
	}
	return def
}
