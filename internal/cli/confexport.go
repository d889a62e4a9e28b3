// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/runner"
)

type retentionExport struct {
	Daily   int `json:"daily" yaml:"daily"`
	Weekly  int `json:"weekly" yaml:"weekly"`
	Monthly int `json:"monthly" yaml:"monthly"`
	Yearly  int `json:"yearly" yaml:"yearly"`
}

type pathsExport struct {
	Root    string   `json:"root" yaml:"root"`
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

type filesetExport struct {
	Retention *retentionExport `json:"retention,omitempty" yaml:"retention,omitempty"`
	Schedule  string           `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Paths     pathsExport      `json:"paths" yaml:"paths"`
	Notes     string           `json:"notes" yaml:"notes"`
}

func confexportCmd() *cobra.Command {
	var minimal, withDisabled bool
	var output string

	cmd := &cobra.Command{
		Use:   "confexport [group_glob] [fileset_glob]",
		Short: "Dump fileset configuration as JSON or YAML",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("confexport: --output must be json or yaml, got %q", output)
			}
			asYAML := output == "yaml"

			groupGlob, hostGlob := "*", "*"
			if len(args) > 0 {
				groupGlob = args[0]
			}
			if len(args) > 1 {
				hostGlob = args[1]
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("confexport: %w", err)
			}

			for _, fs := range sets {
				if !withDisabled && !fs.Enabled {
					continue
				}
				if ok, _ := filepath.Match(groupGlob, fs.Group.Name); !ok {
					continue
				}
				if ok, _ := filepath.Match(hostGlob, fs.FriendlyName); !ok {
					continue
				}

				export := toFilesetExport(fs, minimal)
				identifier := fs.Group.Name + "/" + fs.FriendlyName
				if asYAML {
					raw, err := yaml.Marshal(export)
					if err != nil {
						return fmt.Errorf("confexport: marshal yaml: %w", err)
					}
					fmt.Printf("---\n# %s\n\n%s\n", identifier, raw)
				} else {
					raw, err := json.MarshalIndent(export, "", "  ")
					if err != nil {
						return fmt.Errorf("confexport: marshal json: %w", err)
					}
					fmt.Printf("/* %s */\n\n%s\n\n", identifier, raw)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&minimal, "minimal", false, "do not show retention/schedule")
	cmd.Flags().StringVar(&output, "output", "json", "json or yaml")
	cmd.Flags().BoolVar(&withDisabled, "with-disabled", false, "also list disabled filesets")
	return cmd
}

func toFilesetExport(fs catalog.Fileset, minimal bool) filesetExport {
	export := filesetExport{
		Paths: pathsExport{
			Root:    "/",
			Include: splitPathList(fs.Includes),
			Exclude: splitPathList(fs.Excludes),
		},
		Notes: fs.Description,
	}

	if !minimal {
		export.Schedule = "nightly"
		retain := runner.ParseRetention(fs.Retention)
		export.Retention = &retentionExport{
			Daily:   retain["d"],
			Weekly:  retain["w"],
			Monthly: retain["m"],
			Yearly:  retain["y"],
		}
	}
	return export
}

func splitPathList(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		fields = []string{}
	}
	return fields
}
