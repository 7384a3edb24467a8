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

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/cedric-dufour/KiSC/pkg/resource"
)

// ResourceCtl is the cluster-level resource controller: it wraps one
// resource, targeted at one host, and drives its lifecycle, persisting
// its runtime state to the local (bootstrap) or global (regular)
// runtime directory. The presence of the runtime file is the
// authoritative signal that the resource is currently started.
type ResourceCtl struct {
	config      *Config
	hostID      string
	resourceID  string
	bootstrap   bool
	res         resource.Resource
	runtimeFile string
}

// NewResourceCtl creates a controller for the given resource, targeted
// at the given host.
func NewResourceCtl(config *Config, hostID, resourceID string, bootstrap bool) (*ResourceCtl, error) {
	res, err := config.Resource(resourceID, bootstrap)
	if err != nil {
		return nil, err
	}
	runtimeDir := config.DirectoryRuntimeGlobal()
	if bootstrap {
		runtimeDir = config.DirectoryRuntimeLocal()
	}
	return &ResourceCtl{
		config:      config,
		hostID:      hostID,
		resourceID:  resourceID,
		bootstrap:   bootstrap,
		res:         res,
		runtimeFile: filepath.Join(runtimeDir, res.Type()+":"+resourceID+runtimeFileExt),
	}, nil
}

func (r *ResourceCtl) log() *logrus.Entry {
	return kiscLog.WithFields(logrus.Fields{"resource": r.resourceID, "host": r.hostID})
}

// Resource returns the wrapped resource.
func (r *ResourceCtl) Resource() resource.Resource {
	return r.res
}

// RuntimeFile returns the resource's runtime file path.
func (r *ResourceCtl) RuntimeFile() string {
	return r.runtimeFile
}

// RuntimeExists reports whether the resource's runtime file exists.
func (r *ResourceCtl) RuntimeExists() bool {
	info, err := os.Stat(r.runtimeFile)
	return err == nil && info.Mode().IsRegular()
}

// SaveRuntime persists the resource's runtime state.
func (r *ResourceCtl) SaveRuntime() error {
	r.log().Debug("Saving runtime")
	return saveRuntime(r.runtimeFile, r.res.String(true))
}

// LoadRuntime reconstructs the resource from its runtime file,
// replacing the in-memory instance.
func (r *ResourceCtl) LoadRuntime() error {
	r.log().Debug("Loading runtime")

	config, err := loadRuntime(r.runtimeFile, r.resourceID)
	if err != nil {
		return err
	}
	res, err := resource.New(r.res.Type(), r.resourceID, config)
	if err != nil {
		return err
	}
	r.res = res
	return nil
}

// DeleteRuntime deletes the resource's runtime file.
func (r *ResourceCtl) DeleteRuntime() error {
	r.log().Debug("Deleting runtime")
	return os.Remove(r.runtimeFile)
}

// localCheck verifies the targeted host is the local one.
func (r *ResourceCtl) localCheck(action string) error {
	local, err := r.config.HostByHostname("")
	if err != nil {
		return err
	}
	if r.hostID != local.ID() {
		return fmt.Errorf("cannot %s resource on remote host: %w", action, ErrPrecondition)
	}
	return nil
}

// registrationHost resolves the host all registration bookkeeping goes
// to: the targeted host itself, or its registration delegate. A
// virtual host may not delegate, and the delegate must be a started
// virtual host. Bootstrap resources ignore delegation.
func (r *ResourceCtl) registrationHost(host *HostCtl, validate bool) (*HostCtl, error) {
	if r.bootstrap {
		return host, nil
	}
	delegateID := host.Host().RegisterTo()
	if delegateID == "" {
		return host, nil
	}
	if validate && host.Host().IsVirtual() {
		return nil, fmt.Errorf("virtual host may not delegate registration to other host: %w", ErrPrecondition)
	}
	delegate, err := NewHostCtl(r.config, delegateID)
	if err != nil {
		return nil, err
	}
	if validate && !delegate.Host().IsVirtual() {
		return nil, fmt.Errorf("host may not delegate registration to non-virtual host: %w", ErrPrecondition)
	}
	if delegate.Status(true, resource.StatusStarted) != resource.StatusStarted {
		return nil, fmt.Errorf("registration host not started: %w", ErrPrecondition)
	}
	return delegate, nil
}

// Start starts the resource on its host: preconditions (local host,
// host started, resource stopped, HOSTS admission, delegation rules,
// consumables dry-run), cache resolution, then the plugin start and
// the two-sided registration, persisted to the runtime file. Once the
// plugin may have acted, any failure rolls back with Stop(force).
func (r *ResourceCtl) Start(force bool) error {
	r.log().Info("Starting")

	started, err := r.start(force)
	if err != nil {
		r.log().Error(err)
		if started {
			r.Stop(true)
		}
		return err
	}

	r.log().Info("Started")
	return nil
}

// start returns whether the resource may have been (partially) started
// and therefore needs a forced stop on error.
func (r *ResourceCtl) start(force bool) (bool, error) {
	if err := r.localCheck("start"); err != nil {
		return false, err
	}

	host, err := NewHostCtl(r.config, r.hostID)
	if err != nil {
		return false, err
	}
	if !r.bootstrap {
		if host.Status(true, resource.StatusStarted) != resource.StatusStarted {
			return false, fmt.Errorf("host not started: %w", ErrPrecondition)
		}

		// Already started (potentially elsewhere)?
		switch status := r.Status(false, resource.StatusStarted); status {
		case resource.StatusStarted:
			r.log().Info("Resource already started")
			return false, nil
		case resource.StatusStopped:
		default:
			return false, fmt.Errorf("resource not stopped: %w", ErrPrecondition)
		}
	}

	scoped, err := r.config.IsHostResource(r.hostID, r.resourceID, r.bootstrap)
	if err != nil {
		return false, err
	}
	if !scoped {
		return false, fmt.Errorf("resource is not allowed to run on host: %w", ErrPrecondition)
	}

	registration, err := r.registrationHost(host, true)
	if err != nil {
		return false, err
	}

	// Consumables availability (dry-run).
	if r.res.Config()["CONSUMES"] != "" {
		if err := registration.RegisterResource(r.res, r.bootstrap, true, force); err != nil {
			return false, multierror.Append(err, fmt.Errorf("host's resources registration check failed"))
		}
	}

	// Cache the resource internals.
	cacheFiles, err := r.res.Cache(r.config.DirectoryCache())
	if err != nil {
		return false, multierror.Append(err, fmt.Errorf("failed to cache resource internals"))
	}
	for _, file := range cacheFiles {
		err := r.config.ResolveFile(file.Source, file.Destination, registration.Host().ID(), r.resourceID, r.bootstrap,
			&FilePerms{Owner: file.Owner, Group: file.Group, Mode: file.Mode})
		if err != nil {
			return false, multierror.Append(err, fmt.Errorf("failed to cache resource internals"))
		}
	}

	if err := r.res.Start(); err != nil {
		return true, multierror.Append(err, fmt.Errorf("failed to start resource"))
	}
	if err := registration.RegisterResource(r.res, r.bootstrap, false, force); err != nil {
		return true, multierror.Append(err, fmt.Errorf("failed to register to the host's resources"))
	}
	if err := r.res.RegisterHost(registration.Host()); err != nil {
		return true, multierror.Append(err, fmt.Errorf("failed to register the resource's host"))
	}
	if err := r.SaveRuntime(); err != nil {
		return true, err
	}

	return true, nil
}

// Suspend suspends the (started, non-bootstrap) resource.
func (r *ResourceCtl) Suspend() error {
	r.log().Info("Suspending")

	if r.bootstrap {
		return fmt.Errorf("bootstrap resource may not be suspended: %w", ErrPrecondition)
	}
	if err := r.localCheck("suspend"); err != nil {
		return err
	}

	host, err := NewHostCtl(r.config, r.hostID)
	if err != nil {
		return err
	}
	if host.Status(true, resource.StatusStarted) != resource.StatusStarted {
		return fmt.Errorf("host not started: %w", ErrPrecondition)
	}

	switch status := r.Status(true, resource.StatusSuspended); status {
	case resource.StatusSuspended:
		r.log().Info("Resource already suspended")
		return nil
	case resource.StatusStarted:
	default:
		return fmt.Errorf("resource not started (locally): %w", ErrPrecondition)
	}

	if err := r.res.Suspend(); err != nil {
		return multierror.Append(err, fmt.Errorf("failed to suspend resource"))
	}

	return r.SaveRuntime()
}

// Resume resumes the (suspended, non-bootstrap) resource.
func (r *ResourceCtl) Resume() error {
	r.log().Info("Resuming")

	if r.bootstrap {
		return fmt.Errorf("bootstrap resource may not be resumed: %w", ErrPrecondition)
	}
	if err := r.localCheck("resume"); err != nil {
		return err
	}

	host, err := NewHostCtl(r.config, r.hostID)
	if err != nil {
		return err
	}
	if host.Status(true, resource.StatusStarted) != resource.StatusStarted {
		return fmt.Errorf("host not started: %w", ErrPrecondition)
	}

	switch status := r.Status(true, resource.StatusStarted); status {
	case resource.StatusStarted:
		r.log().Info("Resource is started")
		return nil
	case resource.StatusSuspended:
	default:
		return fmt.Errorf("resource not suspended (locally): %w", ErrPrecondition)
	}

	if err := r.res.Resume(); err != nil {
		return multierror.Append(err, fmt.Errorf("failed to resume resource"))
	}

	return r.SaveRuntime()
}

// Stop stops the resource: plugin stop, two-sided unregistration, and
// runtime file deletion. With force, plugin and unregistration errors
// are downgraded to warnings. An unforced mid-sequence failure
// triggers a forced stop to clean up.
func (r *ResourceCtl) Stop(force bool) error {
	r.log().Info("Stopping")

	stopped, err := r.stop(force)
	if err != nil {
		r.log().Error(err)
		if stopped && !force {
			r.Stop(true)
		}
		return err
	}

	r.log().Info("Stopped")
	return nil
}

func (r *ResourceCtl) stop(force bool) (bool, error) {
	if err := r.localCheck("stop"); err != nil {
		return false, err
	}

	host, err := NewHostCtl(r.config, r.hostID)
	if err != nil {
		return false, err
	}
	if !r.bootstrap {
		if host.Status(true, resource.StatusStarted) != resource.StatusStarted {
			return false, fmt.Errorf("host not started: %w", ErrPrecondition)
		}
	}

	if status := r.Status(true, resource.StatusStopped); status == resource.StatusStopped {
		if !r.bootstrap && !force {
			return false, fmt.Errorf("resource not started (locally): %w", ErrPrecondition)
		}
		r.log().Warn("Resource not started")
	}

	registration, err := r.registrationHost(host, false)
	if err != nil {
		return false, err
	}

	if err := r.res.Stop(); err != nil {
		if !force {
			return false, multierror.Append(err, fmt.Errorf("failed to stop resource"))
		}
		r.log().Warn("Failed to stop resource")
	}

	if err := r.res.UnregisterHost(registration.Host()); err != nil {
		if !force {
			return true, multierror.Append(err, fmt.Errorf("failed to unregister the resource's host"))
		}
		r.log().Warn("Failed to unregister the resource's host")
	}
	if err := registration.UnregisterResource(r.res, r.bootstrap); err != nil {
		if !force {
			return true, multierror.Append(err, fmt.Errorf("failed to unregister from the host's resources"))
		}
		r.log().Warn("Failed to unregister from the host's resources")
	}

	if r.RuntimeExists() {
		if err := r.DeleteRuntime(); err != nil {
			return true, err
		}
	}

	return true, nil
}

// Migrate migrates the (started, non-bootstrap) resource to the given
// host. Delegation is resolved independently on both sides; the
// registration switch happens only when the resolved registration
// hosts differ, after a consumables dry-run on the new side.
func (r *ResourceCtl) Migrate(newHostID string, force bool) error {
	r.log().Info("Migrating")

	migrated, err := r.migrate(newHostID, force)
	if err != nil {
		r.log().Error(err)
		if migrated {
			r.Stop(true)
		}
		return err
	}

	r.log().Info("Migrated")
	return nil
}

func (r *ResourceCtl) migrate(newHostID string, force bool) (bool, error) {
	if r.bootstrap {
		return false, fmt.Errorf("bootstrap resource may not be migrated: %w", ErrPrecondition)
	}
	if err := r.localCheck("migrate"); err != nil {
		return false, err
	}
	if r.hostID == newHostID {
		return false, fmt.Errorf("cannot migrate resource from/to same host: %w", ErrPrecondition)
	}

	localHost, err := NewHostCtl(r.config, r.hostID)
	if err != nil {
		return false, err
	}
	if localHost.Status(true, resource.StatusStarted) != resource.StatusStarted {
		return false, fmt.Errorf("local host not started: %w", ErrPrecondition)
	}

	if status := r.Status(true, resource.StatusStarted); status != resource.StatusStarted {
		return false, fmt.Errorf("resource not started (locally): %w", ErrPrecondition)
	}

	scoped, err := r.config.IsHostResource(newHostID, r.resourceID, false)
	if err != nil {
		return false, err
	}
	if !scoped {
		return false, fmt.Errorf("resource is not allowed to run on remote host: %w", ErrPrecondition)
	}

	remoteHost, err := NewHostCtl(r.config, newHostID)
	if err != nil {
		return false, err
	}
	if remoteHost.Status(false, resource.StatusStarted) != resource.StatusStarted {
		return false, fmt.Errorf("remote host not started: %w", ErrPrecondition)
	}

	localRegistration, err := r.registrationHost(localHost, false)
	if err != nil {
		return false, err
	}
	remoteRegistration, err := r.remoteRegistrationHost(remoteHost)
	if err != nil {
		return false, err
	}

	registrationSwitch := remoteRegistration.Host().ID() != localRegistration.Host().ID()

	if registrationSwitch && r.res.Config()["CONSUMES"] != "" {
		if err := remoteRegistration.RegisterResource(r.res, r.bootstrap, true, force); err != nil {
			return false, multierror.Append(err, fmt.Errorf("remote host's resources registration check failed"))
		}
	}

	if err := r.res.Migrate(remoteHost.Host()); err != nil {
		return false, multierror.Append(err, fmt.Errorf("failed to migrate resource"))
	}

	if registrationSwitch {
		if err := r.res.UnregisterHost(localRegistration.Host()); err != nil {
			return true, multierror.Append(err, fmt.Errorf("failed to unregister the resource's local host"))
		}
		if err := localRegistration.UnregisterResource(r.res, r.bootstrap); err != nil {
			return true, multierror.Append(err, fmt.Errorf("failed to unregister from the local host's resources"))
		}
		if err := remoteRegistration.RegisterResource(r.res, r.bootstrap, false, force); err != nil {
			return true, multierror.Append(err, fmt.Errorf("failed to register to the remote host's resources"))
		}
		if err := r.res.RegisterHost(remoteRegistration.Host()); err != nil {
			return true, multierror.Append(err, fmt.Errorf("failed to register the resource's remote host"))
		}
	}

	if err := r.SaveRuntime(); err != nil {
		return true, err
	}

	return true, nil
}

// remoteRegistrationHost resolves the remote side's registration host,
// enforcing the delegation rules on it.
func (r *ResourceCtl) remoteRegistrationHost(remote *HostCtl) (*HostCtl, error) {
	delegateID := remote.Host().RegisterTo()
	if delegateID == "" {
		return remote, nil
	}
	if remote.Host().IsVirtual() {
		return nil, fmt.Errorf("virtual host may not delegate registration to other host: %w", ErrPrecondition)
	}
	delegate, err := NewHostCtl(r.config, delegateID)
	if err != nil {
		return nil, err
	}
	if !delegate.Host().IsVirtual() {
		return nil, fmt.Errorf("remote host may not delegate registration to non-virtual host: %w", ErrPrecondition)
	}
	if delegate.Status(true, resource.StatusStarted) != resource.StatusStarted {
		return nil, fmt.Errorf("remote registration host not started: %w", ErrPrecondition)
	}
	return delegate, nil
}

// Status queries the resource status: the runtime file is the global
// truth; with local, the plugin is also probed, and a resource started
// locally but lacking its runtime file reports Error. A successful
// local probe with intent other than Stopped re-persists the runtime
// file, capturing plugin-updated runtime fields.
func (r *ResourceCtl) Status(local bool, intent resource.Status) resource.Status {
	r.log().Info("Querying status")

	status := resource.StatusStopped
	runtimeExists := r.RuntimeExists()
	if runtimeExists {
		if err := r.LoadRuntime(); err != nil {
			r.log().Error(err)
			return resource.StatusError
		}
	}

	if local {
		probed := r.res.Status(true, intent)
		if probed == resource.StatusUnknown || probed == resource.StatusError {
			r.log().Error("Failed to query local resource status")
			return resource.StatusError
		}
		if probed != resource.StatusStopped {
			if !runtimeExists {
				r.log().Error("Resource started locally but not globally")
				return resource.StatusError
			}
			if intent != resource.StatusStopped {
				// The probe may have refreshed runtime fields.
				if err := r.SaveRuntime(); err != nil {
					r.log().Error(err)
					return resource.StatusError
				}
			}
			status = probed
		}
	} else if runtimeExists {
		status = r.res.Status(false, intent)
	}

	r.log().Infof("Status is %s", status)
	return status
}
