// Copyright (C) 2024 Haystack VLBI Software Group.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config describes the shard topology used by MakeReadPlan /
// MakeWritePlan: the path-format template, the pattern substituted
// into its string verb, and the module/disk identifier lists. This is
// the "configuration loader" ambient component named in SPEC_FULL.md,
// decoded from YAML with sigs.k8s.io/yaml (which reads the json tags
// below).
type Config struct {
	// Template is a path-format string with exactly two integer
	// verbs (module, disk) and one string verb (pattern), e.g.
	// "/mnt/disks/%d/%d/data/%s".
	Template string `json:"template"`
	// Pattern is substituted into Template's string verb.
	Pattern string `json:"pattern"`
	// Modules is the list of storage-module identifiers to scan.
	Modules []int `json:"modules"`
	// Disks is the list of per-module disk identifiers to scan.
	Disks []int `json:"disks"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("config %s: template is required", path)
	}
	if len(cfg.Modules) == 0 || len(cfg.Disks) == 0 {
		return nil, fmt.Errorf("config %s: modules and disks must both be non-empty", path)
	}
	return &cfg, nil
}
