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

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const clusterHostHelp = `cluster_host - cluster host

Configuration parameters:
 - [REQUIRED] hostname (STRING):
   host name (preferably fully-qualified, FQDN)
 - [OPTIONAL] aliases (STRING; comma-separated):
   host aliases (e.g. short name, cluster node name)
 - [OPTIONAL] virtual (*no|yes):
   virtual host (to be used along 'register_to'; see below)
 - [OPTIONAL] CONSUMABLES (STRING; comma-separated <consumable-id>:<quantity> pairs):
   provided consumables quantity (negative quantity = unlimited)
 - [OPTIONAL] register_to (STRING; host ID):
   delegate resources registration to the given (virtual) host
`

// Host is the cluster_host resource: the unit of placement. It tracks
// the resources registered as running on it ($RESOURCES, $BOOTSTRAP)
// and accounts the consumables they use ($CONSUMABLES_USED,
// $CONSUMABLES_FREE).
type Host struct {
	base

	initialized bool
	hostname    string
	aliases     []string
	consumables map[string]int
	used        map[string]int
	virtual     bool
	registerTo  string
}

func newHost(id string, config map[string]string) Resource {
	return &Host{base: newBase("cluster_host", id, config)}
}

// AsHost returns the resource as a *Host when it is one.
func AsHost(r Resource) (*Host, bool) {
	host, ok := r.(*Host)
	return host, ok
}

func (h *Host) init() error {
	if h.initialized {
		return nil
	}

	h.hostname = h.config["hostname"]
	h.aliases = system.ParseList(h.config["aliases"])

	var err error
	if h.consumables, err = system.ParseIntDict(h.config["CONSUMABLES"], -1); err != nil {
		return err
	}
	if h.used, err = system.ParseIntDict(h.config["$CONSUMABLES_USED"], 1); err != nil {
		return err
	}

	h.virtual = system.ParseBool(h.config["virtual"])
	h.registerTo = h.config["register_to"]

	h.initialized = true
	return nil
}

func (h *Host) Verify() error {
	if h.config["hostname"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"hostname\" setting")
	}
	if _, err := system.ParseIntDict(h.config["CONSUMABLES"], -1); err != nil {
		return fmt.Errorf("invalid resource configuration; invalid \"CONSUMABLES\" setting: %w", err)
	}
	return nil
}

// isLocal reports whether the local hostname matches this host's
// hostname or one of its aliases.
func (h *Host) isLocal() (bool, error) {
	local, err := system.Hostname()
	if err != nil {
		return false, err
	}
	if local == h.hostname {
		return true, nil
	}
	for _, alias := range h.aliases {
		if local == alias {
			return true, nil
		}
	}
	return false, nil
}

func (h *Host) Start() error {
	h.log().Info("Starting")

	if h.Status(true, StatusStarted) == StatusStarted {
		h.log().Info("Already started")
		return nil
	}

	if err := h.init(); err != nil {
		h.status = StatusError
		return err
	}

	if !h.virtual {
		local, err := h.isLocal()
		if err != nil {
			h.status = StatusError
			return err
		}
		if !local {
			h.status = StatusError
			return fmt.Errorf("cannot start remote host")
		}
	}

	h.status = StatusStarted
	return nil
}

func (h *Host) Stop() error {
	h.log().Info("Stopping")

	if h.Status(true, StatusStopped) == StatusStopped {
		h.log().Info("Already stopped")
		return nil
	}

	if err := h.init(); err != nil {
		h.status = StatusError
		return err
	}

	if !h.virtual {
		local, err := h.isLocal()
		if err != nil {
			h.status = StatusError
			return err
		}
		if !local {
			h.status = StatusError
			return fmt.Errorf("cannot stop remote host")
		}
	}

	if h.config["$RESOURCES"] != "" {
		h.status = StatusError
		return fmt.Errorf("resources are running")
	}

	h.status = StatusStopped
	return nil
}

func (h *Host) Status(stateful bool, intent Status) Status {
	if !stateful {
		return h.status
	}

	if err := h.init(); err != nil {
		h.status = StatusError
		return h.status
	}

	status := h.status
	if !h.virtual {
		local, err := h.isLocal()
		switch {
		case err != nil:
			status = StatusError
		case local:
			if status == StatusUnknown {
				status = StatusStopped
			}
		default:
			status = StatusUnknown
		}
	} else if status == StatusUnknown {
		status = StatusStopped
	}

	h.status = status
	return h.status
}

// Hostname returns the configured host name.
func (h *Host) Hostname() string {
	h.init()
	return h.hostname
}

// Aliases returns the configured host aliases.
func (h *Host) Aliases() []string {
	h.init()
	return h.aliases
}

// IsVirtual reports whether the host is virtual.
func (h *Host) IsVirtual() bool {
	h.init()
	return h.virtual
}

// RegisterTo returns the host ID resources registration is delegated
// to, empty when registration is not delegated.
func (h *Host) RegisterTo() string {
	h.init()
	return h.registerTo
}

// resourcesKey returns the runtime key tracking registered resources
// for the given scope.
func resourcesKey(bootstrap bool) string {
	if bootstrap {
		return "$BOOTSTRAP"
	}
	return "$RESOURCES"
}

// RegisterResource registers the given resource as running on this
// host, validating (and, unless check, committing) its consumables
// against the host's provision. With check set, nothing is mutated.
// With oversubscribe set, exhausted consumables only warn.
func (h *Host) RegisterResource(r Resource, bootstrap, check, oversubscribe bool) error {
	h.log().Infof("Registering resource (%s)", r.ID())

	if err := h.init(); err != nil {
		return err
	}
	if h.virtual && bootstrap {
		return fmt.Errorf("virtual host may not register bootstrap resource")
	}

	key := resourcesKey(bootstrap)
	resources := system.ParseList(h.config[key])
	for _, id := range resources {
		if id == r.ID() {
			h.log().Infof("Resource already registered (%s)", r.ID())
			return nil
		}
	}

	// Validate the resource's consumables claims against what this
	// host provides and has left.
	consumes, err := system.ParseIntDict(r.Config()["CONSUMES"], 1)
	if err != nil {
		return err
	}
	claims := map[string]int{}
	for id, wanted := range consumes {
		available, provided := h.consumables[id]
		if !provided {
			h.log().Warnf("Consumable not available (%s)", id)
			continue
		}
		if available >= 0 {
			remaining := available - h.used[id]
			if wanted > remaining {
				if !oversubscribe {
					return fmt.Errorf("%w (%s)", ErrConsumableExhausted, id)
				}
				h.log().Warnf("Consumable oversubscription (%s); %d > %d", id, h.used[id]+wanted, available)
			}
		}
		claims[id] = wanted
	}

	if check {
		return nil
	}

	for id, wanted := range claims {
		h.used[id] += wanted
	}
	resources = append(resources, r.ID())
	h.config[key] = strings.Join(resources, ",")
	if len(h.used) > 0 {
		h.config["$CONSUMABLES_USED"] = system.FormatIntDict(h.used)
	}
	h.updateConsumablesFree()

	h.log().Infof("Resource registered (%s)", r.ID())
	return nil
}

// UnregisterResource removes the given resource from this host's
// registration bookkeeping, releasing its consumables; an unregistered
// resource is a no-op.
func (h *Host) UnregisterResource(r Resource, bootstrap bool) error {
	h.log().Infof("Unregistering resource (%s)", r.ID())

	if err := h.init(); err != nil {
		return err
	}
	if h.virtual && bootstrap {
		return fmt.Errorf("virtual host may not unregister bootstrap resource")
	}

	key := resourcesKey(bootstrap)
	resources := system.ParseList(h.config[key])
	found := false
	kept := resources[:0]
	for _, id := range resources {
		if id == r.ID() {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		h.log().Infof("Resource not registered (%s)", r.ID())
		return nil
	}

	consumes, err := system.ParseIntDict(r.Config()["CONSUMES"], 1)
	if err != nil {
		return err
	}
	for id, wanted := range consumes {
		if _, ok := h.used[id]; !ok {
			h.log().Warnf("Consumable not registered (%s)", id)
			continue
		}
		h.used[id] -= wanted
		if h.used[id] == 0 {
			delete(h.used, id)
		}
	}

	if len(kept) == 0 {
		delete(h.config, key)
	} else {
		h.config[key] = strings.Join(kept, ",")
	}
	if len(h.used) == 0 {
		delete(h.config, "$CONSUMABLES_USED")
	} else {
		h.config["$CONSUMABLES_USED"] = system.FormatIntDict(h.used)
	}
	h.updateConsumablesFree()

	h.log().Infof("Resource unregistered (%s)", r.ID())
	return nil
}

func (h *Host) updateConsumablesFree() {
	if len(h.consumables) == 0 {
		delete(h.config, "$CONSUMABLES_FREE")
		return
	}
	h.config["$CONSUMABLES_FREE"] = system.FormatIntDict(h.ConsumablesFree())
}

// ResourcesIDs returns the resources registered as running on this
// host, in registration order.
func (h *Host) ResourcesIDs(bootstrap bool) []string {
	return system.ParseList(h.config[resourcesKey(bootstrap)])
}

// Consumables returns the provided consumables quantity; a negative
// quantity means unlimited.
func (h *Host) Consumables() map[string]int {
	h.init()
	return h.consumables
}

// ConsumablesUsed returns the used consumables quantity.
func (h *Host) ConsumablesUsed() map[string]int {
	h.init()
	return h.used
}

// ConsumablesFree returns the free consumables quantity.
func (h *Host) ConsumablesFree() map[string]int {
	h.init()
	free := map[string]int{}
	for id, available := range h.consumables {
		free[id] = available - h.used[id]
	}
	return free
}
