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

package cluster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	ini "gopkg.in/ini.v1"

	"github.com/cedric-dufour/KiSC/pkg/resource"
	"github.com/cedric-dufour/KiSC/pkg/system"
)

// runtimeFileExt is the extension of the runtime-state files.
const runtimeFileExt = ".run"

// HostCtl is the cluster-level host controller: it wraps one host and
// drives its lifecycle, persisting its runtime state (configuration,
// status, registered resources, consumables accounting) to the global
// runtime directory. The presence of the runtime file is the
// authoritative signal that the host is started.
type HostCtl struct {
	config      *Config
	hostID      string
	host        *resource.Host
	runtimeFile string
}

// NewHostCtl creates a controller for the given host.
func NewHostCtl(config *Config, hostID string) (*HostCtl, error) {
	host, err := config.Host(hostID)
	if err != nil {
		return nil, err
	}
	return &HostCtl{
		config:      config,
		hostID:      hostID,
		host:        host,
		runtimeFile: filepath.Join(config.DirectoryRuntimeGlobal(), host.Type()+":"+hostID+runtimeFileExt),
	}, nil
}

func (h *HostCtl) log() *logrus.Entry {
	return kiscLog.WithFields(logrus.Fields{"host": h.hostID})
}

// Host returns the wrapped host resource.
func (h *HostCtl) Host() *resource.Host {
	return h.host
}

// RuntimeFile returns the host's runtime file path.
func (h *HostCtl) RuntimeFile() string {
	return h.runtimeFile
}

// RuntimeExists reports whether the host's runtime file exists.
func (h *HostCtl) RuntimeExists() bool {
	info, err := os.Stat(h.runtimeFile)
	return err == nil && info.Mode().IsRegular()
}

// SaveRuntime persists the host's runtime state, atomically and under
// a tight umask.
func (h *HostCtl) SaveRuntime() error {
	h.log().Debug("Saving runtime")
	return saveRuntime(h.runtimeFile, h.host.String(true))
}

// LoadRuntime reconstructs the host from its runtime file, replacing
// the in-memory instance.
func (h *HostCtl) LoadRuntime() error {
	h.log().Debug("Loading runtime")

	config, err := loadRuntime(h.runtimeFile, h.hostID)
	if err != nil {
		return err
	}
	r, err := resource.New(h.host.Type(), h.hostID, config)
	if err != nil {
		return err
	}
	host, ok := resource.AsHost(r)
	if !ok {
		return fmt.Errorf("invalid host runtime file (%s)", h.runtimeFile)
	}
	h.host = host
	return nil
}

// DeleteRuntime deletes the host's runtime file.
func (h *HostCtl) DeleteRuntime() error {
	h.log().Debug("Deleting runtime")
	return os.Remove(h.runtimeFile)
}

// saveRuntime writes a runtime file: temp file next to the final path,
// then rename, under umask 0077.
func saveRuntime(path, content string) error {
	return system.WithUmask(0077, func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		temp := path + "." + uuid.NewString()
		if err := os.WriteFile(temp, []byte(content), 0666); err != nil {
			return err
		}
		if err := os.Rename(temp, path); err != nil {
			os.Remove(temp)
			return err
		}
		return nil
	})
}

// loadRuntime reads a runtime file back into a configuration mapping.
func loadRuntime(path, id string) (map[string]string, error) {
	file, err := ini.LoadSources(iniLoadOptions, path)
	if err != nil {
		return nil, err
	}
	section, err := file.GetSection(id)
	if err != nil {
		return nil, fmt.Errorf("invalid runtime file (%s): %w", path, err)
	}
	return section.KeysHash(), nil
}

// localCheck verifies the host may be handled from the local host: a
// physical host must be the local one, a virtual host must admit the
// local host through its HOSTS expression.
func (h *HostCtl) localCheck(action string) error {
	local, err := h.config.HostByHostname("")
	if err != nil {
		return err
	}
	if !h.host.IsVirtual() {
		if h.hostID != local.ID() {
			return fmt.Errorf("cannot %s remote host: %w", action, ErrPrecondition)
		}
		return nil
	}
	if expression, ok := h.host.Config()["HOSTS"]; ok && !h.config.IsHostAllowed(expression, local.ID()) {
		return fmt.Errorf("local host (%s) not allowed to handle this (virtual) host: %w", local.ID(), ErrPrecondition)
	}
	return nil
}

// Start starts the host: create (or reload) its runtime file, start
// its auto-start bootstrap resources in declaration order, start the
// host resource proper, and persist. Any failure rolls the host back
// with Stop(force).
func (h *HostCtl) Start() error {
	h.log().Info("Starting")

	err := h.start()
	if err != nil {
		h.log().Error(err)
		h.Stop(true)
		return err
	}

	h.log().Info("Started")
	return nil
}

func (h *HostCtl) start() error {
	if err := h.localCheck("start"); err != nil {
		return err
	}

	// Initialize the runtime state from/to file.
	if h.RuntimeExists() {
		if err := h.LoadRuntime(); err != nil {
			return err
		}
	} else if err := h.SaveRuntime(); err != nil {
		return err
	}

	if !h.host.IsVirtual() {
		for _, resourceID := range h.config.ResourcesIDs(true) {
			if !h.config.Autostart(resourceID) {
				continue
			}
			scoped, err := h.config.IsHostResource(h.hostID, resourceID, true)
			if err != nil {
				return err
			}
			if !scoped {
				continue
			}
			ctl, err := NewResourceCtl(h.config, h.hostID, resourceID, true)
			if err != nil {
				return err
			}
			if err := ctl.Start(false); err != nil {
				return multierror.Append(err,
					fmt.Errorf("failed to start host's bootstrap resource (%s)", resourceID))
			}
		}

		// Refresh the runtime state mutated by the bootstrap
		// resources' registrations.
		if err := h.LoadRuntime(); err != nil {
			return err
		}
	}

	if err := h.host.Start(); err != nil {
		return multierror.Append(err, fmt.Errorf("failed to start host resource"))
	}

	return h.SaveRuntime()
}

// Stop stops the host, mirroring Start in reverse: refuse while
// regular resources are registered (unless forced, in which case they
// are stopped first, in reverse registration order), stop the host
// resource, stop the non-persistent bootstrap resources in reverse
// order, and delete the runtime file.
func (h *HostCtl) Stop(force bool) error {
	h.log().Info("Stopping")

	err := h.stop(force)
	if err != nil {
		h.log().Error(err)
		return err
	}

	h.log().Info("Stopped")
	return nil
}

func (h *HostCtl) stop(force bool) error {
	if err := h.localCheck("stop"); err != nil {
		return err
	}

	runtimeExists := h.RuntimeExists()
	if !runtimeExists && !force {
		return fmt.Errorf("host not started: %w", ErrPrecondition)
	}
	if runtimeExists {
		if err := h.LoadRuntime(); err != nil {
			return err
		}
	}

	// Regular resources still registered?
	if resources := h.host.ResourcesIDs(false); len(resources) > 0 {
		if !force {
			return fmt.Errorf("resources are running on host: %w", ErrPrecondition)
		}
		for i := len(resources) - 1; i >= 0; i-- {
			resourceID := resources[i]
			scoped, err := h.config.IsHostResource(h.hostID, resourceID, false)
			if err != nil {
				return err
			}
			if !scoped {
				continue
			}
			ctl, err := NewResourceCtl(h.config, h.hostID, resourceID, false)
			if err != nil {
				return err
			}
			if err := ctl.Stop(force); err != nil {
				return multierror.Append(err,
					fmt.Errorf("failed to stop host's resource (%s)", resourceID))
			}
		}
	}

	if err := h.host.Stop(); err != nil && !force {
		return multierror.Append(err, fmt.Errorf("failed to stop host resource"))
	}

	if runtimeExists {
		if err := h.SaveRuntime(); err != nil {
			return err
		}
	}

	if !h.host.IsVirtual() {
		bootstraps := h.host.ResourcesIDs(true)
		for i := len(bootstraps) - 1; i >= 0; i-- {
			resourceID := bootstraps[i]
			scoped, err := h.config.IsHostResource(h.hostID, resourceID, true)
			if err != nil {
				return err
			}
			if !scoped {
				continue
			}
			ctl, err := NewResourceCtl(h.config, h.hostID, resourceID, true)
			if err != nil {
				return err
			}
			if system.ParseBool(ctl.Resource().Config()["PERSISTENT"]) {
				continue
			}
			if err := ctl.Stop(force); err != nil {
				return multierror.Append(err,
					fmt.Errorf("failed to stop host's bootstrap resource (%s)", resourceID))
			}
		}
	}

	if runtimeExists {
		return h.DeleteRuntime()
	}
	return nil
}

// Status queries the host status: the runtime file is the global
// truth; with local, the host resource is also probed, and a host
// started locally but lacking its runtime file reports Error.
func (h *HostCtl) Status(local bool, intent resource.Status) resource.Status {
	h.log().Info("Querying status")

	status := resource.StatusStopped
	runtimeExists := h.RuntimeExists()
	if runtimeExists {
		if err := h.LoadRuntime(); err != nil {
			h.log().Error(err)
			return resource.StatusError
		}
	}

	if local {
		probed := h.host.Status(true, intent)
		if probed == resource.StatusUnknown || probed == resource.StatusError {
			h.log().Error("Failed to query local host status")
			return resource.StatusError
		}
		if probed != resource.StatusStopped {
			if !runtimeExists {
				h.log().Error("Host started locally but not globally")
				return resource.StatusError
			}
			status = probed
		}
	} else if runtimeExists {
		status = h.host.Status(false, intent)
	}

	h.log().Infof("Status is %s", status)
	return status
}

// RegisterResource books the given resource on this host: validate its
// consumables (admission control), and, unless this is a dry-run
// check, commit the registration and persist the runtime state.
func (h *HostCtl) RegisterResource(r resource.Resource, bootstrap, check, oversubscribe bool) error {
	h.log().Infof("Registering resource (%s)", r.ID())

	if !bootstrap && h.host.RegisterTo() != "" {
		return fmt.Errorf("resource registration delegated to other host: %w", ErrPrecondition)
	}
	if !h.RuntimeExists() {
		return fmt.Errorf("host not started: %w", ErrPrecondition)
	}
	if err := h.LoadRuntime(); err != nil {
		return err
	}

	if err := h.host.RegisterResource(r, bootstrap, check, oversubscribe); err != nil {
		return multierror.Append(err,
			fmt.Errorf("failed to register host's resource (%s)", r.ID()))
	}
	if check {
		return nil
	}

	return h.SaveRuntime()
}

// UnregisterResource removes the given resource's booking from this
// host and persists the runtime state.
func (h *HostCtl) UnregisterResource(r resource.Resource, bootstrap bool) error {
	h.log().Infof("Unregistering resource (%s)", r.ID())

	if !bootstrap && h.host.RegisterTo() != "" {
		return fmt.Errorf("resource registration delegated to other host: %w", ErrPrecondition)
	}
	if !h.RuntimeExists() {
		return fmt.Errorf("host not started: %w", ErrPrecondition)
	}
	if err := h.LoadRuntime(); err != nil {
		return err
	}

	if err := h.host.UnregisterResource(r, bootstrap); err != nil {
		return multierror.Append(err,
			fmt.Errorf("failed to unregister host's resource (%s)", r.ID()))
	}

	return h.SaveRuntime()
}
