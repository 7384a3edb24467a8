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
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/cedric-dufour/KiSC/pkg/resource"
)

// Error kinds surfaced to callers; individual errors wrap one of these
// so call sites can discriminate with errors.Is while the messages keep
// their entity context.
var (
	// ErrConfig covers malformed configuration: missing settings,
	// duplicate IDs, disallowed types in scope.
	ErrConfig = errors.New("configuration error")
	// ErrPrecondition covers operations attempted in the wrong state:
	// host not started, resource not stopped, host not allowed,
	// delegation rules violated.
	ErrPrecondition = errors.New("precondition not met")
	// ErrAdmission covers consumables exhaustion (downgradeable to a
	// warning with force).
	ErrAdmission = resource.ErrConsumableExhausted
	// ErrInvalidVariable covers unresolvable cluster variables.
	ErrInvalidVariable = errors.New("invalid cluster variable")
)

// Errors flattens a (possibly accumulated) error into its ordered list.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.Errors
	}
	return []error{err}
}

// LastError returns the last (most specific) error of an accumulated
// error list.
func LastError(err error) error {
	list := Errors(err)
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}
