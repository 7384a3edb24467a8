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
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

// base carries what every resource type shares: the identifiers, the
// configuration mapping (runtime keys included) and the cached status.
type base struct {
	typ    string
	id     string
	config map[string]string
	status Status
}

func newBase(typ, id string, config map[string]string) base {
	if config == nil {
		config = map[string]string{}
	}
	config["TYPE"] = typ
	config["ID"] = id

	status := StatusUnknown
	if s, ok := config["$STATUS"]; ok {
		status = ParseStatus(s)
	} else {
		config["$STATUS"] = status.String()
	}

	return base{typ: typ, id: id, config: config, status: status}
}

func (b *base) Type() string {
	return b.typ
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Config() map[string]string {
	b.config["$STATUS"] = b.status.String()
	return b.config
}

func (b *base) log() *logrus.Entry {
	return kiscLog.WithFields(logrus.Fields{"type": b.typ, "id": b.id})
}

// String serializes the resource as a single configuration section:
// the ID as section name, TYPE first, the remaining configuration keys
// sorted, and (when requested) the $-prefixed runtime keys sorted after
// them. Serializing and reloading a resource yields the same bytes.
func (b *base) String(includeStatus bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]\n", b.id)
	fmt.Fprintf(&sb, "TYPE=%s\n", b.typ)

	keys := make([]string, 0, len(b.config))
	for key := range b.config {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasPrefix(key, "$") || key == "ID" || key == "TYPE" {
			continue
		}
		fmt.Fprintf(&sb, "%s=%s\n", key, b.config[key])
	}

	if includeStatus {
		b.config["$STATUS"] = b.status.String()
		for _, key := range keys {
			if !strings.HasPrefix(key, "$") {
				continue
			}
			fmt.Fprintf(&sb, "%s=%s\n", key, b.config[key])
		}
	}

	return sb.String()
}

// Cache declares no files by default.
func (b *base) Cache(cacheDir string) ([]CacheFile, error) {
	return nil, nil
}

func (b *base) Suspend() error {
	return fmt.Errorf("resource %s (%s): suspend: %w", b.id, b.typ, ErrNotImplemented)
}

func (b *base) Resume() error {
	return fmt.Errorf("resource %s (%s): resume: %w", b.id, b.typ, ErrNotImplemented)
}

func (b *base) Migrate(host *Host) error {
	return fmt.Errorf("resource %s (%s): migrate: %w", b.id, b.typ, ErrNotImplemented)
}

// RegisterHost records the given host in the $HOSTS runtime key.
func (b *base) RegisterHost(host *Host) error {
	b.log().Infof("Registering host (%s)", host.ID())

	hosts := system.ParseList(b.config["$HOSTS"])
	for _, id := range hosts {
		if id == host.ID() {
			return fmt.Errorf("host already registered (%s)", host.ID())
		}
	}
	hosts = append(hosts, host.ID())
	b.config["$HOSTS"] = strings.Join(hosts, ",")

	return nil
}

// UnregisterHost removes the given host from the $HOSTS runtime key; a
// host that is not registered is a no-op.
func (b *base) UnregisterHost(host *Host) error {
	b.log().Infof("Unregistering host (%s)", host.ID())

	hosts := system.ParseList(b.config["$HOSTS"])
	kept := hosts[:0]
	for _, id := range hosts {
		if id != host.ID() {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(b.config, "$HOSTS")
	} else {
		b.config["$HOSTS"] = strings.Join(kept, ",")
	}

	return nil
}

// HostsIDs returns the hosts registered in $HOSTS.
func (b *base) HostsIDs() []string {
	return system.ParseList(b.config["$HOSTS"])
}
