// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package objsyncconf parses the INI-style configuration consumed by the
// planb-objsync tool: one [section] per mirror target, which may list
// several containers, plus path translation and exclusion rules.
package objsyncconf

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// TranslateRule is one "container|pattern|replacement" rewrite rule.
// Container "*" matches every container.
type TranslateRule struct {
	Container   string
	Pattern     string
	Replacement string
}

// ExcludeRule is one "container|pattern" exclusion rule.
type ExcludeRule struct {
	Container string
	Pattern   string
}

// ContainerConfig names one logical sub-namespace of a section's bucket,
// addressed by an S3 key prefix. A section with no configured containers
// mirrors the bucket root as a single unnamed container.
type ContainerConfig struct {
	Name   string
	Prefix string
}

// Section is one configured mirror target.
type Section struct {
	Name string

	Endpoint        string
	Region          string
	Bucket          string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	LocalRoot       string
	Workers         int
	ConnectTimeoutS int
	ReadTimeoutS    int

	Containers []ContainerConfig
	Translate  []TranslateRule
	Exclude    []ExcludeRule
}

// Config is the fully parsed objsync config file: one Section per
// [section] block, keyed by name.
type Config struct {
	Sections map[string]*Section
}

// Load parses path into a Config.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, fmt.Errorf("load objsync config: %w", err)
	}

	cfg := &Config{Sections: map[string]*Section{}}
	for _, s := range f.Sections() {
		if s.Name() == ini.DefaultSection {
			continue
		}

		sec := &Section{
			Name:            s.Name(),
			Endpoint:        s.Key("endpoint").String(),
			Region:          s.Key("region").MustString("us-east-1"),
			Bucket:          s.Key("bucket").String(),
			AccessKey:       s.Key("access_key").String(),
			SecretKey:       s.Key("secret_key").String(),
			UseSSL:          s.Key("use_ssl").MustBool(true),
			LocalRoot:       s.Key("local_root").String(),
			Workers:         s.Key("workers").MustInt(7),
			ConnectTimeoutS: s.Key("connect_timeout").MustInt(60),
			ReadTimeoutS:    s.Key("read_timeout").MustInt(60),
		}

		for _, line := range s.Key("container").ValueWithShadows() {
			parts := strings.SplitN(line, "|", 2)
			cc := ContainerConfig{Name: parts[0]}
			if len(parts) == 2 {
				cc.Prefix = parts[1]
			}
			sec.Containers = append(sec.Containers, cc)
		}

		for _, line := range s.Key("translate").ValueWithShadows() {
			rule, err := parseTranslate(line)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", s.Name(), err)
			}
			sec.Translate = append(sec.Translate, rule)
		}

		for _, line := range s.Key("exclude").ValueWithShadows() {
			rule, err := parseExclude(line)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", s.Name(), err)
			}
			sec.Exclude = append(sec.Exclude, rule)
		}

		if sec.Bucket == "" {
			return nil, fmt.Errorf("section %s: bucket is required", s.Name())
		}
		if sec.LocalRoot == "" {
			return nil, fmt.Errorf("section %s: local_root is required", s.Name())
		}

		cfg.Sections[s.Name()] = sec
	}

	return cfg, nil
}

// ContainerNames returns every configured container name, or a single
// empty-named entry when the section mirrors its bucket root directly.
func (s *Section) ContainerNames() []string {
	if len(s.Containers) == 0 {
		return []string{""}
	}
	names := make([]string, len(s.Containers))
	for i, c := range s.Containers {
		names[i] = c.Name
	}
	return names
}

// Prefix resolves container to its configured key prefix, "" if the
// container is unnamed or unknown.
func (s *Section) Prefix(container string) string {
	for _, c := range s.Containers {
		if c.Name == container {
			return c.Prefix
		}
	}
	return ""
}

func parseTranslate(line string) (TranslateRule, error) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return TranslateRule{}, fmt.Errorf("invalid translate rule %q: want container|pattern|replacement", line)
	}
	return TranslateRule{Container: parts[0], Pattern: parts[1], Replacement: parts[2]}, nil
}

func parseExclude(line string) (ExcludeRule, error) {
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return ExcludeRule{}, fmt.Errorf("invalid exclude rule %q: want container|pattern", line)
	}
	return ExcludeRule{Container: parts[0], Pattern: parts[1]}, nil
}
