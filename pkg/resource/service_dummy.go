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

const serviceDummyHelp = `service_dummy - dummy service (for test purposes)

No configuration parameters. Implements the full lifecycle, including
suspend/resume and migrate, as pure status changes.
`

// Dummy is the service_dummy resource: a stateless stand-in
// implementing the full lifecycle, migration included, as pure status
// changes.
type Dummy struct {
	base
}

func newDummy(id string, config map[string]string) Resource {
	return &Dummy{base: newBase("service_dummy", id, config)}
}

func (d *Dummy) Verify() error {
	return nil
}

func (d *Dummy) Start() error {
	d.status = StatusStarted
	d.log().Info("Started")
	return nil
}

func (d *Dummy) Suspend() error {
	d.status = StatusSuspended
	d.log().Info("Suspended")
	return nil
}

func (d *Dummy) Resume() error {
	d.status = StatusStarted
	d.log().Info("Resumed")
	return nil
}

func (d *Dummy) Stop() error {
	d.status = StatusStopped
	d.log().Info("Stopped")
	return nil
}

func (d *Dummy) Migrate(host *Host) error {
	d.status = StatusStarted
	d.log().Infof("Migrated (%s)", host.ID())
	return nil
}

func (d *Dummy) Status(stateful bool, intent Status) Status {
	if d.status == StatusUnknown {
		d.status = StatusStopped
	}
	return d.status
}
