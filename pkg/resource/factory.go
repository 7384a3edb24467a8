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
	"sort"
)

// entry ties a resource type name to its constructor and its setting
// documentation.
type entry struct {
	newFn func(id string, config map[string]string) Resource
	help string
}

var registry = map[string]entry{
	"cluster_host":      {newHost, clusterHostHelp},
	"cluster_hostgroup": {newHostgroup, clusterHostgroupHelp},
	"cluster_copy":      {newCopy, clusterCopyHelp},
	"network_bond":      {newBond, networkBondHelp},
	"network_bridge":    {newBridge, networkBridgeHelp},
	"network_vlan":      {newVlan, networkVlanHelp},
	"network_ipv4":      {newIPv4, networkIPv4Help},
	"storage_mount":     {newMount, storageMountHelp},
	"service_systemctl": {newSystemctl, serviceSystemctlHelp},
	"service_sysvinit":  {newSysvinit, serviceSysvinitHelp},
	"service_libvirt":   {newLibvirt, serviceLibvirtHelp},
	"service_pacemaker": {newPacemaker, servicePacemakerHelp},
	"service_dummy":     {newDummy, serviceDummyHelp},
	"health_ping6":      {newPing6, healthPing6Help},
	"health_stonith":    {newStonith, healthStonithHelp},
}

// New creates a resource of the given type.
func New(typ, id string, config map[string]string) (Resource, error) {
	e, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("invalid resource type (%s)", typ)
	}
	return e.newFn(id, config), nil
}

// Types returns the registered resource type names, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Help returns the setting documentation for the given resource type.
func Help(typ string) (string, error) {
	e, ok := registry[typ]
	if !ok {
		return "", fmt.Errorf("invalid resource type (%s)", typ)
	}
	return e.help, nil
}
