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

const clusterHostgroupHelp = `cluster_hostgroup - cluster hosts group

Configuration parameters:
 - [REQUIRED] hosts (STRING; comma-separated):
   list of host IDs
`

// Hostgroup is the cluster_hostgroup resource: a named set of host
// IDs, usable in HOSTS expressions. Its lifecycle is a no-op.
type Hostgroup struct {
	base
}

func newHostgroup(id string, config map[string]string) Resource {
	return &Hostgroup{base: newBase("cluster_hostgroup", id, config)}
}

// AsHostgroup returns the resource as a *Hostgroup when it is one.
func AsHostgroup(r Resource) (*Hostgroup, bool) {
	hostgroup, ok := r.(*Hostgroup)
	return hostgroup, ok
}

func (g *Hostgroup) Verify() error {
	if g.config["hosts"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"hosts\" setting")
	}
	return nil
}

func (g *Hostgroup) Start() error {
	g.status = StatusStarted
	return nil
}

func (g *Hostgroup) Stop() error {
	g.status = StatusStopped
	return nil
}

func (g *Hostgroup) Status(stateful bool, intent Status) Status {
	return g.status
}

// HostsIDs returns the group members.
func (g *Hostgroup) HostsIDs() []string {
	return system.ParseList(g.config["hosts"])
}
