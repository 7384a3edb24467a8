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

const servicePacemakerHelp = `service_pacemaker - Pacemaker-managed resource

Configuration parameters:
 - [REQUIRED] name (STRING):
   (Pacemaker) resource name
 - [OPTIONAL] resource_file (STRING; path):
   (Pacemaker) resource configuration file (*.xml); if specified, the
   resource configuration is created/updated from it on start
 - [OPTIONAL] constraint_file (STRING; path):
   (Pacemaker) constraint configuration file (*.xml); if specified, the
   constraint configuration is created/updated from it on start
 - [OPTIONAL] timeout_start (NUMBER; seconds [*15])
 - [OPTIONAL] timeout_stop (NUMBER; seconds [*60])
 - [OPTIONAL] cleanup (*no|yes):
   delete the (Pacemaker) resource/constraint configuration on stop
`

// cibSettleDelay gives the cluster information base time to propagate
// a configuration change before the next command relies on it.
var cibSettleDelay = 3 * time.Second

// Pacemaker is the service_pacemaker resource, wrapping the cibadmin
// and crm_resource tools.
type Pacemaker struct {
	base

	cachedResourceFile   string
	cachedConstraintFile string
}

func newPacemaker(id string, config map[string]string) Resource {
	return &Pacemaker{base: newBase("service_pacemaker", id, config)}
}

func (p *Pacemaker) Verify() error {
	if p.config["name"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"name\" setting")
	}
	return nil
}

func (p *Pacemaker) Cache(cacheDir string) ([]CacheFile, error) {
	var files []CacheFile
	if source, ok := p.config["resource_file"]; ok {
		p.cachedResourceFile = filepath.Join(cacheDir, p.typ+"#"+p.id+".resource_file.xml")
		files = append(files, CacheFile{Source: source, Destination: p.cachedResourceFile, Owner: "0", Group: "0", Mode: "0600"})
	}
	if source, ok := p.config["constraint_file"]; ok {
		p.cachedConstraintFile = filepath.Join(cacheDir, p.typ+"#"+p.id+".constraint_file.xml")
		files = append(files, CacheFile{Source: source, Destination: p.cachedConstraintFile, Owner: "0", Group: "0", Mode: "0600"})
	}
	return files, nil
}

func (p *Pacemaker) timeout(setting string, def int) (int, error) {
	value, ok := p.config[setting]
	if !ok {
		return def, nil
	}
	timeout, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value (%s)", value)
	}
	return timeout, nil
}

// nodes returns the Pacemaker nodes currently running the resource, as
// reported by crm_resource.
func (p *Pacemaker) nodes() (string, error) {
	output, err := system.Shell([]string{"crm_resource", "-Q", "-r", p.config["name"], "-W"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// cleanup deletes the resource/constraint configuration entries when
// the cleanup setting requests it.
func (p *Pacemaker) cleanup() error {
	if !system.ParseBool(p.config["cleanup"]) {
		return nil
	}
	if _, ok := p.config["constraint_file"]; ok {
		query := fmt.Sprintf("//rsc_location[@rsc='%s']", p.config["name"])
		if _, err := system.Shell([]string{"cibadmin", "-o", "constraints", "-d", "-f", "-A", query}); err != nil {
			return err
		}
		time.Sleep(cibSettleDelay)
	}
	if _, ok := p.config["resource_file"]; ok {
		query := fmt.Sprintf("//primitive[@id='%s'] | //group[@id='%s']", p.config["name"], p.config["name"])
		if _, err := system.Shell([]string{"cibadmin", "-o", "resources", "-D", "-A", query}); err != nil {
			return err
		}
		time.Sleep(cibSettleDelay)
	}
	return nil
}

func (p *Pacemaker) Start() error {
	p.log().Info("Starting")

	if p.Status(true, StatusStarted) == StatusStarted {
		p.log().Info("Already started")
		return nil
	}

	if err := p.start(); err != nil {
		p.log().Error(err)
		p.status = StatusError
		return err
	}

	p.status = StatusStarted
	return nil
}

func (p *Pacemaker) start() error {
	timeout, err := p.timeout("timeout_start", 15)
	if err != nil {
		return err
	}

	if _, ok := p.config["resource_file"]; ok && p.cachedResourceFile == "" {
		return fmt.Errorf("resource configuration file not cached")
	}
	if _, ok := p.config["constraint_file"]; ok && p.cachedConstraintFile == "" {
		return fmt.Errorf("constraint configuration file not cached")
	}

	if p.cachedResourceFile != "" {
		if _, err = system.Shell([]string{"cibadmin", "-o", "resources", "-M", "-c", "-x", p.cachedResourceFile}); err != nil {
			return err
		}
		time.Sleep(cibSettleDelay)
	}
	if p.cachedConstraintFile != "" {
		if _, err = system.Shell([]string{"cibadmin", "-o", "constraints", "-M", "-c", "-x", p.cachedConstraintFile}); err != nil {
			return err
		}
		time.Sleep(cibSettleDelay)
	}

	if _, err = system.Shell([]string{"crm_resource", "-Q", "-r", p.config["name"], "-m", "-p", "target-role", "-v", "Started"}); err != nil {
		return err
	}

	for {
		nodes, err := p.nodes()
		if err != nil {
			return err
		}
		if nodes != "" {
			return nil
		}
		if timeout--; timeout < 0 {
			return fmt.Errorf("resource did not start")
		}
		time.Sleep(pollInterval)
	}
}

func (p *Pacemaker) Stop() error {
	p.log().Info("Stopping")

	if p.Status(true, StatusStopped) == StatusStopped {
		p.log().Info("Already stopped")
		if err := p.cleanup(); err != nil {
			p.log().Error(err)
			p.status = StatusError
			return err
		}
		return nil
	}

	if err := p.stop(); err != nil {
		p.log().Error(err)
		p.status = StatusError
		return err
	}

	p.status = StatusStopped
	return nil
}

func (p *Pacemaker) stop() error {
	timeout, err := p.timeout("timeout_stop", 60)
	if err != nil {
		timeout = 60
	}

	if _, err = system.Shell([]string{"crm_resource", "-Q", "-r", p.config["name"], "-m", "-p", "target-role", "-v", "Stopped"}); err != nil {
		return err
	}

	for {
		nodes, err := p.nodes()
		if err != nil {
			return err
		}
		if nodes == "" {
			break
		}
		if timeout--; timeout < 0 {
			return fmt.Errorf("resource did not stop")
		}
		time.Sleep(pollInterval)
	}

	return p.cleanup()
}

func (p *Pacemaker) Status(stateful bool, intent Status) Status {
	if !stateful {
		return p.status
	}

	status := StatusUnknown
	nodes, err := p.nodes()
	switch {
	case err != nil && system.ExitedWith(err, 0, 6):
		// crm_resource: resource not found
		status = StatusStopped
	case err != nil:
		p.log().Error(err)
		status = StatusError
	case nodes == "":
		delete(p.config, "$PACEMAKER_NODES")
		status = StatusStopped
	default:
		p.config["$PACEMAKER_NODES"] = nodes
		status = StatusStarted
	}

	p.status = status
	return p.status
}
