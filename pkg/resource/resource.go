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

// Package resource defines the resource plugin contract and the
// concrete resource types (hosts, host groups, network objects,
// mountpoints, services, health checks, file copies).
//
// A resource carries a free-form configuration mapping; keys starting
// with a dollar sign ($) are reserved for runtime state and round-trip
// through the on-disk runtime files. The upper-case keys TYPE, ID,
// HOSTS, CONSUMES, CONSUMABLES and PERSISTENT have engine-level
// semantics.
package resource

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Status is a resource's lifecycle state.
type Status int

const (
	// StatusUnknown means the state has not been probed yet.
	StatusUnknown Status = iota - 1
	// StatusStarted means the resource is up.
	StatusStarted
	// StatusSuspended means the resource is up but paused.
	StatusSuspended
	// StatusStopped means the resource is down.
	StatusStopped
	// StatusError means the last operation or probe failed.
	StatusError
)

// String renders the status the way it is stored in runtime files.
func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "Started"
	case StatusSuspended:
		return "Suspended"
	case StatusStopped:
		return "Stopped"
	case StatusError:
		return "Error"
	}
	return "Unknown"
}

// ParseStatus converts the on-disk status word back to a Status.
func ParseStatus(s string) Status {
	for _, status := range []Status{StatusStarted, StatusSuspended, StatusStopped, StatusError} {
		if s == status.String() {
			return status
		}
	}
	return StatusUnknown
}

// ErrNotImplemented is returned by lifecycle operations a resource type
// does not support.
var ErrNotImplemented = errors.New("operation not implemented")

// ErrConsumableExhausted is returned when registering a resource would
// exceed a host's consumables provision.
var ErrConsumableExhausted = errors.New("consumable exhausted")

// CacheFile declares a file a resource wants rewritten into the cache
// directory, with cluster variables substituted, before it starts.
type CacheFile struct {
	Source      string
	Destination string
	Owner       string
	Group       string
	Mode        string
}

// Resource is the contract every resource type implements.
//
// Lifecycle operations are idempotent: starting a Started resource (or
// stopping a Stopped one) reports success. On failure the resource's
// cached status becomes StatusError.
type Resource interface {
	// Type returns the canonical type name (e.g. "storage_mount").
	Type() string
	// ID returns the resource ID.
	ID() string
	// Config returns the configuration mapping, runtime ($-prefixed)
	// keys included. The mapping is live: registration bookkeeping
	// mutates it.
	Config() map[string]string
	// Verify statically checks the configuration.
	Verify() error
	// Cache declares the files to rewrite into the cache directory.
	Cache(cacheDir string) ([]CacheFile, error)

	Start() error
	Suspend() error
	Resume() error
	Stop() error
	// Migrate moves the resource to the given host; most types do not
	// support it and fail with ErrNotImplemented.
	Migrate(host *Host) error
	// Status queries the resource status. When stateful, an external
	// probe is performed and the cached status updated; otherwise the
	// cached value is returned. intent hints at the transition being
	// confirmed and may deepen the probe.
	Status(stateful bool, intent Status) Status

	// RegisterHost records the given host as running this resource
	// (the $HOSTS runtime key).
	RegisterHost(host *Host) error
	// UnregisterHost removes the given host from $HOSTS.
	UnregisterHost(host *Host) error
	// HostsIDs returns the hosts currently registered in $HOSTS.
	HostsIDs() []string

	// String serializes the resource as its configuration (and, when
	// requested, runtime status) section.
	String(includeStatus bool) string
}

var kiscLog = defaultLogger()

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// SetLogger sets the logger used by this package.
func SetLogger(logger *logrus.Logger) {
	kiscLog = logger
}

// FileResolver substitutes cluster variables while copying a file; the
// cluster package installs the real implementation so that resources
// performing substitution (cluster_copy's config_file setting) do not
// depend on it.
type FileResolver func(configFile, source, destination, owner, group, mode string) error

var fileResolver FileResolver

// SetFileResolver installs the cluster-variable file resolver.
func SetFileResolver(f FileResolver) {
	fileResolver = f
}
