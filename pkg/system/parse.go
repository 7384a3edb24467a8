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

package system

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseBool parses the given boolean string; "true", "t", "yes", "y",
// "on" and "1" (lower-cased) resolve to true, everything else to false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true
	}
	return false
}

// ParseList parses a comma-separated list string, trimming each item
// and skipping empty ones.
func ParseList(s string) []string {
	list := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// ParseIntDict parses a "key:value[,...]" dictionary string with
// integer values; a key without a value takes def.
func ParseIntDict(s string, def int) (map[string]int, error) {
	dict := map[string]int{}
	for _, entry := range strings.Split(s, ",") {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if !found {
			dict[key] = def
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("failed to cast dictionary value (%s)", entry)
		}
		dict[key] = i
	}
	return dict, nil
}

// ParseStringDict parses a "key<assign>value[,...]" dictionary string;
// an entry without the assignment operator is an error.
func ParseStringDict(s, assign string) (map[string]string, error) {
	dict := map[string]string{}
	for _, entry := range strings.Split(s, ",") {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, assign)
		if !found {
			return nil, fmt.Errorf("dictionary entry has no value (%s)", entry)
		}
		dict[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dict, nil
}

// FormatIntDict renders an integer dictionary as "key:value[,...]",
// keys sorted.
func FormatIntDict(dict map[string]int) string {
	keys := make([]string, 0, len(dict))
	for key := range dict {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, fmt.Sprintf("%s:%d", key, dict[key]))
	}
	return strings.Join(entries, ",")
}
