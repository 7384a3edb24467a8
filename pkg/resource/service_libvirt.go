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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const serviceLibvirtHelp = `service_libvirt - libvirt domain (virtual machine)

Configuration parameters:
 - [REQUIRED] name (STRING):
   domain name
 - [OPTIONAL] config_file (STRING; path):
   domain configuration file (*.xml); if specified, the domain will be
   'virsh create'd, otherwise it will be 'virsh start'ed (assuming it
   has been 'virsh define'd beforehand)
 - [OPTIONAL] remote_uri (STRING; URI [*qemu://%{host}/system]):
   remote host's URI; the %{host} and %{hostname} variables are
   replaced with the target host's ID and name
 - [OPTIONAL] timeout_start (NUMBER; seconds [*5])
 - [OPTIONAL] timeout_suspend (NUMBER; seconds [*5])
 - [OPTIONAL] timeout_resume (NUMBER; seconds [*5])
 - [OPTIONAL] timeout_stop (NUMBER; seconds [*15])
 - [OPTIONAL] timeout_migrate (NUMBER; seconds [*60])
`

// pollInterval is the interval between two state probes while waiting
// for an external tool to reach the expected state.
var pollInterval = time.Second

// Libvirt is the service_libvirt resource, wrapping the virsh tool.
type Libvirt struct {
	base

	cachedConfigFile string
}

func newLibvirt(id string, config map[string]string) Resource {
	return &Libvirt{base: newBase("service_libvirt", id, config)}
}

func (l *Libvirt) Verify() error {
	if l.config["name"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"name\" setting")
	}
	return nil
}

func (l *Libvirt) Cache(cacheDir string) ([]CacheFile, error) {
	var files []CacheFile
	if source, ok := l.config["config_file"]; ok {
		l.cachedConfigFile = filepath.Join(cacheDir, l.typ+"#"+l.id+".config_file.xml")
		files = append(files, CacheFile{
			Source:      source,
			Destination: l.cachedConfigFile,
			Owner:       "0",
			Group:       "0",
			Mode:        "0600",
		})
	}
	return files, nil
}

// timeout returns the configured timeout (in seconds) for the given
// setting, or its default.
func (l *Libvirt) timeout(setting string, def int) (int, error) {
	value, ok := l.config[setting]
	if !ok {
		return def, nil
	}
	timeout, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value (%s)", value)
	}
	return timeout, nil
}

// domState returns the current domain state as reported by virsh.
func (l *Libvirt) domState() (string, error) {
	output, err := system.Shell([]string{"virsh", "domstate", l.config["name"]})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// waitDomState polls the domain state, once per second, until it
// matches the expected value or the timeout elapses. With unknownOK, a
// domain no longer known to libvirt counts as having reached the state
// (suspend/resume/stop waits).
func (l *Libvirt) waitDomState(expected string, timeout int, unknownOK bool) error {
	for {
		state, err := l.domState()
		if err != nil {
			if !system.Exited(err, 0) {
				return err
			}
			if unknownOK {
				return nil
			}
		} else if state == expected {
			return nil
		}
		if timeout--; timeout < 0 {
			return fmt.Errorf("domain did not reach state (%s)", expected)
		}
		time.Sleep(pollInterval)
	}
}

func (l *Libvirt) Start() error {
	l.log().Info("Starting")

	if l.Status(true, StatusStarted) == StatusStarted {
		l.log().Info("Already started")
		return nil
	}

	if err := l.start(); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return err
	}

	l.status = StatusStarted
	return nil
}

func (l *Libvirt) start() error {
	timeout, err := l.timeout("timeout_start", 5)
	if err != nil {
		return err
	}

	if _, ok := l.config["config_file"]; ok {
		if l.cachedConfigFile == "" {
			return fmt.Errorf("configuration file not cached")
		}
		if _, err = system.Shell([]string{"virsh", "-q", "create", l.cachedConfigFile}); err != nil {
			return err
		}
	} else {
		if _, err = system.Shell([]string{"virsh", "-q", "start", l.config["name"]}); err != nil {
			return err
		}
	}

	if err = l.waitDomState("running", timeout, false); err != nil {
		system.Shell([]string{"virsh", "-q", "destroy", l.config["name"]})
		return fmt.Errorf("domain did not start")
	}
	return nil
}

func (l *Libvirt) Suspend() error {
	l.log().Info("Suspending")

	status := l.Status(true, StatusSuspended)
	if status == StatusSuspended {
		l.log().Info("Already suspended")
		return nil
	}
	if status != StatusStarted {
		return fmt.Errorf("domain not started")
	}

	timeout, err := l.timeout("timeout_suspend", 5)
	if err != nil {
		l.status = StatusError
		return err
	}

	if _, err = system.Shell([]string{"virsh", "-q", "suspend", l.config["name"]}); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return err
	}
	if err = l.waitDomState("paused", timeout, true); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return fmt.Errorf("domain did not suspend")
	}

	l.status = StatusSuspended
	return nil
}

func (l *Libvirt) Resume() error {
	l.log().Info("Resuming")

	status := l.Status(true, StatusStarted)
	if status == StatusStarted {
		l.log().Info("Domain is running")
		return nil
	}
	if status != StatusSuspended {
		return fmt.Errorf("domain not suspended")
	}

	timeout, err := l.timeout("timeout_resume", 5)
	if err != nil {
		l.status = StatusError
		return err
	}

	if _, err = system.Shell([]string{"virsh", "-q", "resume", l.config["name"]}); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return err
	}
	if err = l.waitDomState("running", timeout, true); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return fmt.Errorf("domain did not resume")
	}

	l.status = StatusStarted
	return nil
}

func (l *Libvirt) Stop() error {
	l.log().Info("Stopping")

	if l.Status(true, StatusStopped) == StatusStopped {
		l.log().Info("Already stopped")
		return nil
	}

	timeout, err := l.timeout("timeout_stop", 15)
	if err != nil {
		l.status = StatusError
		return err
	}

	if _, err = system.Shell([]string{"virsh", "-q", "shutdown", l.config["name"]}); err != nil {
		l.log().Error(err)
		l.status = StatusError
		return err
	}
	if err = l.waitDomState("shut off", timeout, true); err != nil {
		system.Shell([]string{"virsh", "-q", "destroy", l.config["name"]})
		l.log().Error(err)
		l.status = StatusError
		return fmt.Errorf("domain did not stop")
	}

	l.status = StatusStopped
	return nil
}

func (l *Libvirt) Migrate(host *Host) error {
	l.log().Info("Migrating")

	if l.Status(true, StatusStarted) != StatusStarted {
		l.log().Info("Not started")
		return nil
	}

	remoteURI, ok := l.config["remote_uri"]
	if !ok {
		remoteURI = "qemu://%{host}/system"
	}
	remoteURI = strings.ReplaceAll(remoteURI, "%{host}", host.ID())
	remoteURI = strings.ReplaceAll(remoteURI, "%{hostname}", host.Hostname())

	timeout, err := l.timeout("timeout_migrate", 60)
	if err != nil {
		return err
	}

	command := []string{"virsh", "-q", "migrate", "--live"}
	if timeout > 0 {
		command = append(command, "--timeout", strconv.Itoa(timeout), "--timeout-suspend")
	}
	command = append(command, l.config["name"], remoteURI)

	if _, err = system.Shell(command); err != nil {
		l.log().Error(err)
		l.Status(true, StatusSuspended)
		return err
	}

	l.status = StatusStarted
	return nil
}

func (l *Libvirt) Status(stateful bool, intent Status) Status {
	if !stateful {
		return l.status
	}

	status := StatusUnknown
	state, err := l.domState()
	switch {
	case err != nil && system.Exited(err, 0):
		// unknown domain
		status = StatusStopped
	case err != nil:
		l.log().Error(err)
		status = StatusError
	case state == "":
		status = StatusError
	case state == "shut off":
		status = StatusStopped
	case state == "paused":
		status = StatusSuspended
	default:
		status = StatusStarted
	}

	l.status = status
	return l.status
}
