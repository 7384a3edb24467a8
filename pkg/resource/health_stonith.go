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

const healthStonithHelp = `health_stonith - STONITH device health check

Configuration parameters:
 - [REQUIRED] device_type (STRING):
   device type (e.g. 'external/ssh')
 - [OPTIONAL] parameters (STRING; comma-separated <name>=<value> pairs):
   device parameters (as per 'stonith -t <device_type> -n')
 - [OPTIONAL] count (NUMBER [*1]):
   number of times to perform the check
`

// Stonith is the health_stonith resource, wrapping the stonith tool;
// started means healthy.
type Stonith struct {
	base
}

func newStonith(id string, config map[string]string) Resource {
	return &Stonith{base: newBase("health_stonith", id, config)}
}

func (s *Stonith) Verify() error {
	if s.config["device_type"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"device_type\" setting")
	}
	if parameters, ok := s.config["parameters"]; ok {
		if _, err := system.ParseStringDict(parameters, "="); err != nil {
			return fmt.Errorf("invalid \"parameters\" setting: %w", err)
		}
	}
	return nil
}

func (s *Stonith) Start() error {
	if s.Status(true, StatusStarted) == StatusStarted {
		s.log().Info("Already started")
		return nil
	}

	s.log().Info("Starting")
	command := []string{"stonith", "-s", "-S", "-t", s.config["device_type"]}
	command = append(command, "-c", settingOrDefault(s.config, "count", "1"))
	if parameters, ok := s.config["parameters"]; ok {
		dict, err := system.ParseStringDict(parameters, "=")
		if err != nil {
			s.status = StatusError
			return err
		}
		for name, value := range dict {
			command = append(command, fmt.Sprintf("%s=%s", name, value))
		}
	}

	if _, err := system.Shell(command); err != nil {
		s.log().Error(err)
		s.status = StatusError
		return err
	}

	s.status = StatusStarted
	return nil
}

func (s *Stonith) Stop() error {
	s.status = StatusStopped
	s.log().Info("Stopped")
	return nil
}

func (s *Stonith) Status(stateful bool, intent Status) Status {
	return s.status
}
