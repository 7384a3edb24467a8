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

// Package cluster ties the configuration, the resources and the
// on-disk runtime state together: it loads the cluster configuration
// (with transitive file inclusion), resolves cluster variables, and
// drives hosts and resources through their lifecycle, persisting every
// state change to the local/global runtime directories.
package cluster

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	ini "gopkg.in/ini.v1"

	"github.com/cedric-dufour/KiSC/pkg/resource"
	"github.com/cedric-dufour/KiSC/pkg/system"
)

// Default paths.
const (
	DefaultConfigFile       = "/etc/kisc.cfg"
	DefaultCacheDir         = "/var/cache/kisc"
	DefaultLocalRuntimeDir  = "/var/run/kisc"
	DefaultGlobalRuntimeDir = "/cluster/run/kisc"
)

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

// iniLoadOptions parses configuration and runtime files: raw values,
// case-preserving key names.
var iniLoadOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
}

// Config is the cluster configuration: hosts, host groups, and the
// ordered bootstrap and regular resource sequences, together with the
// cache/runtime directory settings.
type Config struct {
	configFile string
	settings   map[string]string

	hosts      map[string]*resource.Host
	hostgroups map[string]*resource.Hostgroup

	// Resource order is the order of first appearance across all
	// (transitively) included files and is the canonical start/stop
	// ordering; the index maps give O(1) lookup by ID.
	bootstrap     []resource.Resource
	bootstrapIdx  map[string]int
	bootstrapAuto map[string]bool
	resources     []resource.Resource
	resourceIdx   map[string]int
}

// NewConfig creates a configuration bound to the given file (the
// default configuration file when empty).
func NewConfig(configFile string) *Config {
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	return &Config{
		configFile:    configFile,
		settings:      map[string]string{},
		hosts:         map[string]*resource.Host{},
		hostgroups:    map[string]*resource.Hostgroup{},
		bootstrapIdx:  map[string]int{},
		bootstrapAuto: map[string]bool{},
		resourceIdx:   map[string]int{},
	}
}

// Load reads the configuration from disk. Errors are accumulated: a
// malformed section does not abort the load, and the returned error
// carries the ordered list of everything that went wrong.
func (c *Config) Load() error {
	kiscLog.Info("Loading configuration")

	cacheDir := DefaultCacheDir
	localRuntimeDir := DefaultLocalRuntimeDir
	globalRuntimeDir := DefaultGlobalRuntimeDir

	file, err := ini.LoadSources(iniLoadOptions, c.configFile)
	if err != nil {
		return fmt.Errorf("<%s> %w", c.configFile, err)
	}
	if section, err := file.GetSection("KiSC"); err == nil {
		if section.HasKey("cache_dir") {
			cacheDir = section.Key("cache_dir").String()
		}
		if section.HasKey("local_runtime_dir") {
			localRuntimeDir = section.Key("local_runtime_dir").String()
		}
		if section.HasKey("global_runtime_dir") {
			globalRuntimeDir = section.Key("global_runtime_dir").String()
		}
	}

	c.settings["config_file"] = c.configFile
	c.settings["cache_dir"] = cacheDir
	c.settings["local_runtime_dir"] = localRuntimeDir
	c.settings["global_runtime_dir"] = globalRuntimeDir

	var result *multierror.Error

	// Make sure the local cache/runtime directories exist.
	// NOTE: ideally, those are located on a tmpfs partition.
	for _, dir := range []string{cacheDir, localRuntimeDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			result = multierror.Append(result, err)
		}
	}

	result = multierror.Append(result, c.loadResources(c.configFile, true, true))

	kiscLog.Info("Configuration loaded")
	return result.ErrorOrNil()
}

// loadResources loads the resource sections of the given file, in
// declaration order, recursing into include sections.
func (c *Config) loadResources(configFile string, bootstrap, autostart bool) error {
	kiscLog.Debugf("Loading resources configuration from file (%s)", configFile)

	file, err := ini.LoadSources(iniLoadOptions, configFile)
	if err != nil {
		return fmt.Errorf("<%s> %w", configFile, err)
	}

	var result *multierror.Error
	for _, section := range file.Sections() {
		id := section.Name()
		if id == ini.DefaultSection || id == "KiSC" {
			continue
		}
		config := section.KeysHash()

		typ, ok := config["TYPE"]
		if !ok {
			result = multierror.Append(result, fmt.Errorf(
				"<%s> [%s] invalid configuration section; missing \"TYPE\" setting: %w", configFile, id, ErrConfig))
			continue
		}

		if typ == "include" {
			subBootstrap := system.ParseBool(config["BOOTSTRAP"])
			subAutostart := system.ParseBool(config["AUTOSTART"])
			if path, ok := config["file"]; ok {
				if err := c.loadResources(path, subBootstrap, subAutostart); err != nil {
					for _, sub := range Errors(err) {
						result = multierror.Append(result, fmt.Errorf("<%s> %w", configFile, sub))
					}
				}
			}
			if dir, ok := config["directory"]; ok {
				pattern := config["glob"]
				if pattern == "" {
					pattern = "*.cfg"
				}
				paths, err := filepath.Glob(filepath.Join(dir, pattern))
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("<%s> [%s] %w", configFile, id, err))
					continue
				}
				sort.Strings(paths)
				for _, path := range paths {
					if err := c.loadResources(path, subBootstrap, subAutostart); err != nil {
						for _, sub := range Errors(err) {
							result = multierror.Append(result, fmt.Errorf("<%s> %w", configFile, sub))
						}
					}
				}
			}
			continue
		}

		var errs error
		if bootstrap {
			errs = c.createResourceBootstrap(typ, id, config, autostart)
		} else {
			errs = c.createResource(typ, id, config)
		}
		if errs != nil {
			for _, sub := range Errors(errs) {
				result = multierror.Append(result, fmt.Errorf("<%s> %w", configFile, sub))
			}
		}
	}

	return result.ErrorOrNil()
}

// createResourceBootstrap creates a bootstrap-scope resource; hosts and
// host groups go into their dedicated maps, everything else into the
// ordered bootstrap sequence.
func (c *Config) createResourceBootstrap(typ, id string, config map[string]string, autostart bool) error {
	kiscLog.Debugf("Creating bootstrap resource (%s:%s)", typ, id)

	r, err := resource.New(typ, id, config)
	if err != nil {
		return fmt.Errorf("[%s] %v: %w", id, err, ErrConfig)
	}
	if err := r.Verify(); err != nil {
		var result *multierror.Error
		for _, sub := range Errors(err) {
			result = multierror.Append(result, fmt.Errorf("[%s] %v: %w", id, sub, ErrConfig))
		}
		return result.ErrorOrNil()
	}

	switch typ {
	case "cluster_host":
		if _, exists := c.hosts[id]; exists {
			return fmt.Errorf("[%s] host with same ID already exists: %w", id, ErrConfig)
		}
		host, _ := resource.AsHost(r)
		c.hosts[id] = host
	case "cluster_hostgroup":
		if _, exists := c.hostgroups[id]; exists {
			return fmt.Errorf("[%s] hosts group with same ID already exists: %w", id, ErrConfig)
		}
		hostgroup, _ := resource.AsHostgroup(r)
		c.hostgroups[id] = hostgroup
	default:
		if _, exists := c.bootstrapIdx[id]; exists {
			return fmt.Errorf("[%s] resource with same ID already exists: %w", id, ErrConfig)
		}
		c.bootstrap = append(c.bootstrap, r)
		c.bootstrapIdx[id] = len(c.bootstrap) - 1
		c.bootstrapAuto[id] = autostart
	}

	return nil
}

// createResource creates a regular-scope resource; cluster_* types are
// rejected outside bootstrap scope.
func (c *Config) createResource(typ, id string, config map[string]string) error {
	kiscLog.Debugf("Creating resource (%s:%s)", typ, id)

	if strings.HasPrefix(typ, "cluster_") {
		return fmt.Errorf(
			"[%s] invalid resource type (%s); \"cluster\" resources can only be defined in bootstrap configuration: %w",
			id, typ, ErrConfig)
	}

	r, err := resource.New(typ, id, config)
	if err != nil {
		return fmt.Errorf("[%s] %v: %w", id, err, ErrConfig)
	}
	if err := r.Verify(); err != nil {
		var result *multierror.Error
		for _, sub := range Errors(err) {
			result = multierror.Append(result, fmt.Errorf("[%s] %v: %w", id, sub, ErrConfig))
		}
		return result.ErrorOrNil()
	}

	if _, exists := c.resourceIdx[id]; exists {
		return fmt.Errorf("[%s] resource with same ID already exists: %w", id, ErrConfig)
	}
	c.resources = append(c.resources, r)
	c.resourceIdx[id] = len(c.resources) - 1

	return nil
}

// IsHostAllowed evaluates a HOSTS expression for the given host ID.
//
// The expression is a comma-separated list of host IDs, '@'-prefixed
// hostgroup IDs, or '@ALL' for every host; an exclamation mark (!)
// prefixing a token negates the condition. Evaluation is
// last-match-wins, with early exit on a negative match.
func (c *Config) IsHostAllowed(expression, hostID string) bool {
	if expression == "" {
		return true
	}

	allowed := expression[0] == '!'
	for _, token := range strings.Split(expression, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		match := true
		if token[0] == '!' {
			match = false
			token = token[1:]
		}
		switch {
		case token == "@ALL":
			allowed = match
		case strings.HasPrefix(token, "@"):
			hostgroup, ok := c.hostgroups[token[1:]]
			if !ok {
				continue
			}
			member := false
			for _, id := range hostgroup.HostsIDs() {
				if id == hostID {
					member = true
					break
				}
			}
			if !member {
				continue
			}
			allowed = match
		case token == hostID:
			allowed = match
		default:
			continue
		}
		if !match {
			break
		}
	}

	return allowed
}

// ConfigFile returns the configuration file path.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Settings returns the base ([KiSC] section) settings.
func (c *Config) Settings() map[string]string {
	return c.settings
}

// DirectoryCache returns the cache directory.
func (c *Config) DirectoryCache() string {
	return c.settings["cache_dir"]
}

// DirectoryRuntimeLocal returns the (host-local) runtime directory.
func (c *Config) DirectoryRuntimeLocal() string {
	return c.settings["local_runtime_dir"]
}

// DirectoryRuntimeGlobal returns the (cluster-shared) runtime
// directory.
func (c *Config) DirectoryRuntimeGlobal() string {
	return c.settings["global_runtime_dir"]
}

// HostsIDs returns all host IDs, sorted.
func (c *Config) HostsIDs() []string {
	ids := make([]string, 0, len(c.hosts))
	for id := range c.hosts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Host returns the host with the given ID.
func (c *Config) Host(hostID string) (*resource.Host, error) {
	host, ok := c.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("host not found (%s): %w", hostID, ErrConfig)
	}
	return host, nil
}

// HostByHostname returns the host whose hostname or aliases match the
// given name, the local hostname when empty.
func (c *Config) HostByHostname(hostname string) (*resource.Host, error) {
	if hostname == "" {
		local, err := system.Hostname()
		if err != nil {
			return nil, err
		}
		hostname = local
	}
	for _, host := range c.hosts {
		if hostname == host.Hostname() {
			return host, nil
		}
		for _, alias := range host.Aliases() {
			if hostname == alias {
				return host, nil
			}
		}
	}
	return nil, fmt.Errorf("host (name) not found (%s): %w", hostname, ErrConfig)
}

// Hostgroup returns the hosts group with the given ID.
func (c *Config) Hostgroup(hostgroupID string) (*resource.Hostgroup, error) {
	hostgroup, ok := c.hostgroups[hostgroupID]
	if !ok {
		return nil, fmt.Errorf("hosts group not found (%s): %w", hostgroupID, ErrConfig)
	}
	return hostgroup, nil
}

// HostgroupsIDs returns all hosts group IDs, sorted.
func (c *Config) HostgroupsIDs() []string {
	ids := make([]string, 0, len(c.hostgroups))
	for id := range c.hostgroups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resources returns all resources of the given scope, in declaration
// order.
func (c *Config) Resources(bootstrap bool) []resource.Resource {
	if bootstrap {
		return c.bootstrap
	}
	return c.resources
}

// ResourcesIDs returns all resource IDs of the given scope, in
// declaration order.
func (c *Config) ResourcesIDs(bootstrap bool) []string {
	resources := c.Resources(bootstrap)
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID())
	}
	return ids
}

// Resource returns the resource with the given ID within the given
// scope.
func (c *Config) Resource(resourceID string, bootstrap bool) (resource.Resource, error) {
	if bootstrap {
		if i, ok := c.bootstrapIdx[resourceID]; ok {
			return c.bootstrap[i], nil
		}
		return nil, fmt.Errorf("resource (bootstrap) not found (%s): %w", resourceID, ErrConfig)
	}
	if i, ok := c.resourceIdx[resourceID]; ok {
		return c.resources[i], nil
	}
	return nil, fmt.Errorf("resource not found (%s): %w", resourceID, ErrConfig)
}

// Autostart reports whether the given bootstrap resource is eligible
// for auto-start on host start.
func (c *Config) Autostart(resourceID string) bool {
	return c.bootstrapAuto[resourceID]
}

// IsHostResource reports whether the given resource is scoped to the
// given host, per its HOSTS expression (a resource without one is
// allowed on every host).
func (c *Config) IsHostResource(hostID, resourceID string, bootstrap bool) (bool, error) {
	r, err := c.Resource(resourceID, bootstrap)
	if err != nil {
		return false, err
	}
	expression, ok := r.Config()["HOSTS"]
	if !ok {
		return true, nil
	}
	return c.IsHostAllowed(expression, hostID), nil
}

// String dumps the whole configuration in its serialized form.
func (c *Config) String(includeStatus bool) string {
	var sb strings.Builder
	banner := strings.Repeat("*", 80) + "\n"

	sb.WriteString(banner)
	fmt.Fprintf(&sb, "* Local Configuration (%s)\n", c.configFile)
	sb.WriteString(banner)
	sb.WriteString("\n[KiSC]\n")
	keys := make([]string, 0, len(c.settings))
	for key := range c.settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", key, c.settings[key])
	}

	sb.WriteString("\n" + banner + "* Hosts\n" + banner)
	for _, id := range c.HostsIDs() {
		sb.WriteString("\n" + c.hosts[id].String(includeStatus))
	}

	sb.WriteString("\n" + banner + "* Hostgroups\n" + banner)
	for _, id := range c.HostgroupsIDs() {
		sb.WriteString("\n" + c.hostgroups[id].String(includeStatus))
	}

	sb.WriteString("\n" + banner + "* Resources (bootstrap)\n" + banner)
	for _, r := range c.bootstrap {
		sb.WriteString("\n" + r.String(includeStatus))
	}

	sb.WriteString("\n" + banner + "* Resources\n" + banner)
	for _, r := range c.resources {
		sb.WriteString("\n" + r.String(includeStatus))
	}

	return sb.String()
}
