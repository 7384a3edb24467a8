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
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cedric-dufour/KiSC/pkg/resource"
	"github.com/cedric-dufour/KiSC/pkg/system"
)

// Cluster variables are written '%{<id>[.<setting>][|<filter>]*}'.
var variableRE = regexp.MustCompile(`%\{[^{}]*\}`)

// Filter syntaxes.
var (
	filterUnaryRE   = regexp.MustCompile(`^(int|float|strip|lower|upper|dirname|basename)$`)
	filterArithRE   = regexp.MustCompile(`^(add|sub|mul|div)\( *(-?[.0-9]+) *\)$`)
	filterRemoveRE  = regexp.MustCompile(`^remove\( *'([^']*)' *\)$`)
	filterReplaceRE = regexp.MustCompile(`^replace\( *'([^']*)' *, *'([^']*)' *\)$`)
)

// FilePerms carries the ownership/mode to apply to a resolved file;
// empty fields leave the corresponding attribute unchanged.
type FilePerms struct {
	Owner string
	Group string
	Mode  string
}

// ResolveString substitutes the cluster variables in the given string.
//
// hostID binds the '$HOST' pseudo-identifier and resourceID (within
// the given scope) the '$SELF' one; either may be empty when the
// corresponding pseudo-identifier is not used. Every distinct variable
// is resolved once and spliced at each of its occurrences.
func (c *Config) ResolveString(s, hostID, resourceID string, bootstrap bool) (string, error) {
	kiscLog.Debugf("Resolving cluster variables string (%s)", s)

	seen := map[string]bool{}
	for _, variable := range variableRE.FindAllString(s, -1) {
		if seen[variable] {
			continue
		}
		seen[variable] = true

		value, err := c.resolveVariable(variable, hostID, resourceID, bootstrap)
		if err != nil {
			return "", err
		}
		s = strings.ReplaceAll(s, variable, value)
	}

	return s, nil
}

// resolveVariable resolves one '%{...}' variable.
func (c *Config) resolveVariable(variable, hostID, resourceID string, bootstrap bool) (string, error) {
	kiscLog.Debugf("Substituting variable (%s)", variable)

	tokens := splitFilters(variable[2 : len(variable)-1])
	head, filters := tokens[0], tokens[1:]

	id, setting, found := strings.Cut(head, ".")
	if !found {
		setting = "ID"
	}

	config, err := c.variableConfig(id, hostID, resourceID, bootstrap)
	if err != nil {
		return "", fmt.Errorf("%w; %s (%v)", ErrInvalidVariable, variable, err)
	}

	value, err := variableSetting(config, setting)
	if err != nil {
		return "", fmt.Errorf("%w; %s (%v)", ErrInvalidVariable, variable, err)
	}

	for _, filter := range filters {
		kiscLog.Debugf("Applying filter: %s", filter)
		if value, err = applyFilter(value, filter); err != nil {
			return "", fmt.Errorf("%w; %s (invalid filter; %v)", ErrInvalidVariable, variable, err)
		}
	}

	return value.render(), nil
}

// variableConfig returns the configuration mapping the given variable
// identifier refers to.
func (c *Config) variableConfig(id, hostID, resourceID string, bootstrap bool) (map[string]string, error) {
	switch id {
	case "KiSC":
		return c.settings, nil
	case "$HOST":
		if hostID == "" {
			return nil, fmt.Errorf("target host not specified")
		}
		host, err := c.Host(hostID)
		if err != nil {
			return nil, err
		}
		return host.Config(), nil
	case "$SELF":
		if resourceID == "" {
			return nil, fmt.Errorf("target resource not specified")
		}
		r, err := c.Resource(resourceID, bootstrap)
		if err != nil {
			return nil, err
		}
		return r.Config(), nil
	}

	// Plain identifier: regular resources first, then bootstrap
	// resources, then hosts and host groups.
	if r, err := c.Resource(id, false); err == nil {
		return r.Config(), nil
	}
	if r, err := c.Resource(id, true); err == nil {
		return r.Config(), nil
	}
	if host, ok := c.hosts[id]; ok {
		return host.Config(), nil
	}
	if hostgroup, ok := c.hostgroups[id]; ok {
		return hostgroup.Config(), nil
	}
	return nil, fmt.Errorf("resource not found (%s)", id)
}

// variableSetting extracts the given setting from the configuration
// mapping; the CONSUMES(<name>) and CONSUMABLES(<name>) forms extract
// one entry from the respective dictionary.
func variableSetting(config map[string]string, setting string) (filterValue, error) {
	for _, dictionary := range []string{"CONSUMES", "CONSUMABLES"} {
		prefix := dictionary + "("
		if strings.HasPrefix(setting, prefix) && strings.HasSuffix(setting, ")") {
			name := setting[len(prefix) : len(setting)-1]
			dict, err := system.ParseIntDict(config[dictionary], 1)
			if err != nil {
				return filterValue{}, err
			}
			quantity, ok := dict[name]
			if !ok {
				return filterValue{}, fmt.Errorf("no such entry (%s)", name)
			}
			return filterValue{kind: kindString, s: strconv.Itoa(quantity)}, nil
		}
	}

	value, ok := config[setting]
	if !ok {
		return filterValue{}, fmt.Errorf("no such setting (%s)", setting)
	}
	return filterValue{kind: kindString, s: value}, nil
}

// splitFilters splits a variable's content on its '|' separators,
// ignoring separators within single-quoted filter arguments.
func splitFilters(s string) []string {
	var tokens []string
	var sb strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
			sb.WriteRune(r)
		case r == '|' && !quoted:
			tokens = append(tokens, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	tokens = append(tokens, sb.String())
	return tokens
}

// filterValue is a variable value along the filter chain: a string
// until an 'int' or 'float' filter types it, numeric from then on
// (integer until a float appears).
type filterValue struct {
	kind byte
	s    string
	i    int64
	f    float64
}

const (
	kindString = 's'
	kindInt    = 'i'
	kindFloat  = 'f'
)

func (v filterValue) render() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return v.s
}

// str returns the value as a string, erroring on numeric values (the
// string filters do not apply to them).
func (v filterValue) str() (string, error) {
	if v.kind != kindString {
		return "", fmt.Errorf("not a string")
	}
	return v.s, nil
}

func applyFilter(v filterValue, filter string) (filterValue, error) {
	if m := filterUnaryRE.FindStringSubmatch(filter); m != nil {
		return applyUnaryFilter(v, m[1])
	}
	if m := filterArithRE.FindStringSubmatch(filter); m != nil {
		return applyArithFilter(v, m[1], m[2])
	}
	if m := filterRemoveRE.FindStringSubmatch(filter); m != nil {
		s, err := v.str()
		if err != nil {
			return v, err
		}
		return filterValue{kind: kindString, s: strings.ReplaceAll(s, m[1], "")}, nil
	}
	if m := filterReplaceRE.FindStringSubmatch(filter); m != nil {
		s, err := v.str()
		if err != nil {
			return v, err
		}
		return filterValue{kind: kindString, s: strings.ReplaceAll(s, m[1], m[2])}, nil
	}
	return v, fmt.Errorf("%s", filter)
}

func applyUnaryFilter(v filterValue, op string) (filterValue, error) {
	switch op {
	case "int":
		switch v.kind {
		case kindString:
			i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
			if err != nil {
				return v, err
			}
			return filterValue{kind: kindInt, i: i}, nil
		case kindFloat:
			return filterValue{kind: kindInt, i: int64(v.f)}, nil
		}
		return v, nil
	case "float":
		switch v.kind {
		case kindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if err != nil {
				return v, err
			}
			return filterValue{kind: kindFloat, f: f}, nil
		case kindInt:
			return filterValue{kind: kindFloat, f: float64(v.i)}, nil
		}
		return v, nil
	}

	s, err := v.str()
	if err != nil {
		return v, err
	}
	switch op {
	case "strip":
		s = strings.TrimSpace(s)
	case "lower":
		s = strings.ToLower(s)
	case "upper":
		s = strings.ToUpper(s)
	case "dirname":
		s = filepath.Dir(s)
	case "basename":
		s = filepath.Base(s)
	}
	return filterValue{kind: kindString, s: s}, nil
}

// applyArithFilter applies an arithmetic filter; the literal argument
// is coerced to the value's current numeric type, and integer division
// stays integer.
func applyArithFilter(v filterValue, op, arg string) (filterValue, error) {
	switch v.kind {
	case kindInt:
		i, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return v, err
		}
		switch op {
		case "add":
			v.i += i
		case "sub":
			v.i -= i
		case "mul":
			v.i *= i
		case "div":
			if i == 0 {
				return v, fmt.Errorf("division by zero")
			}
			v.i /= i
		}
		return v, nil
	case kindFloat:
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return v, err
		}
		switch op {
		case "add":
			v.f += f
		case "sub":
			v.f -= f
		case "mul":
			v.f *= f
		case "div":
			if f == 0 {
				return v, fmt.Errorf("division by zero")
			}
			v.f /= f
		}
		return v, nil
	}
	return v, fmt.Errorf("not a number")
}

// ResolveFile copies the given source file (standard input when empty)
// to the given destination (standard output when empty), substituting
// the cluster variables in its content. Parent directories are created
// and the file written under a restrictive umask, then the requested
// ownership/mode applied.
func (c *Config) ResolveFile(source, destination, hostID, resourceID string, bootstrap bool, perms *FilePerms) error {
	kiscLog.Infof("Caching file: %s > %s", source, destination)

	var content []byte
	var err error
	if source == "" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(source)
	}
	if err != nil {
		return err
	}

	resolved, err := c.ResolveString(string(content), hostID, resourceID, bootstrap)
	if err != nil {
		return err
	}

	if destination == "" {
		_, err = os.Stdout.WriteString(resolved)
		return err
	}

	return system.WithUmask(0077, func() error {
		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(destination, []byte(resolved), 0666); err != nil {
			return err
		}
		if perms != nil {
			return system.Perms(destination, perms.Owner, perms.Group, perms.Mode)
		}
		return nil
	})
}

// CopyFileResolver loads the given cluster configuration and resolves
// the source file into the destination against it, binding '$HOST' to
// the local host. It backs the cluster_copy resource's config_file
// setting (see resource.SetFileResolver).
func CopyFileResolver(configFile, source, destination, owner, group, mode string) error {
	config := NewConfig(configFile)
	if err := config.Load(); err != nil {
		return err
	}
	host, err := config.HostByHostname("")
	if err != nil {
		return err
	}
	return config.ResolveFile(source, destination, host.ID(), "", false,
		&FilePerms{Owner: owner, Group: group, Mode: mode})
}

var _ resource.FileResolver = CopyFileResolver
