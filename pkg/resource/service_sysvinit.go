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

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const serviceSysvinitHelp = `service_sysvinit - SysV-init service

Configuration parameters:
 - [REQUIRED] name (STRING):
   service (init script) name
 - [OPTIONAL] restart (*no|yes):
   restart the service if already started
`

// Sysvinit is the service_sysvinit resource, wrapping the invoke-rc.d
// tool.
type Sysvinit struct {
	base
}

func newSysvinit(id string, config map[string]string) Resource {
	return &Sysvinit{base: newBase("service_sysvinit", id, config)}
}

func (s *Sysvinit) Verify() error {
	if s.config["name"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"name\" setting")
	}
	return nil
}

func (s *Sysvinit) Start() error {
	s.log().Info("Starting")

	restart := system.ParseBool(s.config["restart"])
	if s.Status(true, StatusStarted) == StatusStarted {
		if !restart {
			s.log().Info("Already started")
			return nil
		}
		s.log().Info("Restarting")
	} else {
		restart = false
	}

	action := "start"
	if restart {
		action = "restart"
	}
	if _, err := system.Shell([]string{"invoke-rc.d", "--quiet", s.config["name"], action}); err != nil {
		s.log().Error(err)
		s.status = StatusError
		return err
	}

	s.status = StatusStarted
	return nil
}

func (s *Sysvinit) Stop() error {
	s.log().Info("Stopping")

	if s.Status(true, StatusStopped) == StatusStopped {
		s.log().Info("Already stopped")
		return nil
	}

	if _, err := system.Shell([]string{"invoke-rc.d", "--quiet", s.config["name"], "stop"}); err != nil {
		s.log().Error(err)
		s.status = StatusError
		return err
	}

	s.status = StatusStopped
	return nil
}

func (s *Sysvinit) Status(stateful bool, intent Status) Status {
	if !stateful {
		return s.status
	}

	status := StatusStarted
	if _, err := system.Shell([]string{"invoke-rc.d", "--quiet", s.config["name"], "status"}); err != nil {
		// LSB init scripts report "program is not running" with exit
		// code 3.
		if system.ExitedWith(err, 0, 3) {
			status = StatusStopped
		} else {
			s.log().Error(err)
			status = StatusError
		}
	}

	s.status = status
	return s.status
}
