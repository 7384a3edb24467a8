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
	"os"
	"path/filepath"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const clusterCopyHelp = `cluster_copy - copy a file (optionally substituting cluster variables)

Configuration parameters:
 - [REQUIRED] source (STRING; path):
   source file
 - [REQUIRED] destination (STRING; path):
   destination file
 - [OPTIONAL] mkdir (*yes|no):
   create the destination directory, if needs be
 - [OPTIONAL] user (STRING|NUMBER):
   destination file owner user name or UID
 - [OPTIONAL] group (STRING|NUMBER):
   destination file owner group name or GID
 - [OPTIONAL] mode (NUMBER; octal):
   destination file mode
 - [OPTIONAL] command_pre (STRING):
   command to execute before the file is copied
 - [OPTIONAL] command_post (STRING):
   command to execute after the file is copied
 - [OPTIONAL] config_file (STRING; path):
   cluster configuration file for variables substitution
`

// Copy is the cluster_copy resource: it materializes a file at start,
// optionally running pre/post commands and substituting cluster
// variables along the way.
type Copy struct {
	base
}

func newCopy(id string, config map[string]string) Resource {
	return &Copy{base: newBase("cluster_copy", id, config)}
}

func (c *Copy) Verify() error {
	if c.config["source"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"source\" setting")
	}
	if c.config["destination"] == "" {
		return fmt.Errorf("invalid resource configuration; missing \"destination\" setting")
	}
	return nil
}

// runCommand parses and executes a user-supplied command string.
func (c *Copy) runCommand(command string) error {
	args, err := shellwords.Parse(command)
	if err != nil {
		return fmt.Errorf("invalid command (%s): %w", command, err)
	}
	_, err = system.Shell(args)
	return err
}

func (c *Copy) Start() error {
	c.log().Info("Starting")

	if c.Status(true, StatusStarted) == StatusStarted {
		c.log().Info("Already started")
		return nil
	}

	if err := c.start(); err != nil {
		c.log().Error(err)
		c.status = StatusError
		return err
	}

	c.status = StatusStarted
	return nil
}

func (c *Copy) start() error {
	destination := c.config["destination"]

	if mkdir, ok := c.config["mkdir"]; !ok || system.ParseBool(mkdir) {
		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			return err
		}
	}

	if command, ok := c.config["command_pre"]; ok {
		if err := c.runCommand(command); err != nil {
			return err
		}
	}

	if configFile, ok := c.config["config_file"]; ok {
		if fileResolver == nil {
			return fmt.Errorf("no cluster variables resolver available")
		}
		err := fileResolver(configFile, c.config["source"], destination,
			c.config["user"], c.config["group"], c.config["mode"])
		if err != nil {
			return err
		}
	} else {
		content, err := os.ReadFile(c.config["source"])
		if err != nil {
			return err
		}
		err = system.WithUmask(0077, func() error {
			if err := os.WriteFile(destination, content, 0666); err != nil {
				return err
			}
			return system.Perms(destination, c.config["user"], c.config["group"], c.config["mode"])
		})
		if err != nil {
			return err
		}
	}

	if command, ok := c.config["command_post"]; ok {
		if err := c.runCommand(command); err != nil {
			return err
		}
	}

	return nil
}

func (c *Copy) Stop() error {
	c.status = StatusStopped
	c.log().Info("Stopped")
	return nil
}

func (c *Copy) Status(stateful bool, intent Status) Status {
	return c.status
}
