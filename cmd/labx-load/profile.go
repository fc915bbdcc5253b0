package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
	"github.com/labx-platform/testbed/pkg/serrors"
)

// profileFile is the YAML layout accepted by --profile-file.
type profileFile struct {
	Name       string              `yaml:"name" validate:"required"`
	Type       loadtest.TestType   `yaml:"type" validate:"omitempty,oneof=stress spike volume endurance scalability"`
	Target     loadtest.Target     `yaml:"target"`
	Load       loadtest.Load       `yaml:"load"`
	Thresholds loadtest.Thresholds `yaml:"thresholds"`
	Scenarios  []loadtest.Scenario `yaml:"scenarios" validate:"dive"`
}

func builtinProfileNames() []string {
	var names []string
	for _, c := range services.DefaultConfigs(time.Now()) {
		names = append(names, c.ID)
	}
	sort.Strings(names)
	return names
}

func builtinProfile(name string) (loadtest.Config, error) {
	for _, c := range services.DefaultConfigs(time.Now()) {
		if c.ID == name {
			return c, nil
		}
	}
	return loadtest.Config{}, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(builtinProfileNames(), ", "))
}

func parseProfile(data []byte) (loadtest.Config, error) {
	var p profileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return loadtest.Config{}, errors.Wrap(err, "decode profile")
	}
	if verrs := serrors.ValidateStruct(p); verrs != nil {
		return loadtest.Config{}, verrs
	}
	if p.Type == "" {
		p.Type = loadtest.TypeStress
	}
	if p.Target.Method == "" {
		p.Target.Method = "GET"
	}
	now := time.Now().UTC()
	return loadtest.Config{
		ID:         strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p.Name)), " ", "_"),
		Name:       p.Name,
		Type:       p.Type,
		Target:     p.Target,
		Load:       p.Load,
		Thresholds: p.Thresholds,
		Scenarios:  p.Scenarios,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func loadProfileFile(path string) (loadtest.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return loadtest.Config{}, errors.Wrapf(err, "read profile %s", path)
	}
	return parseProfile(data)
}

// pointAt switches cfg to live mode with its target resolved against baseURL.
func pointAt(cfg loadtest.Config, baseURL string) (loadtest.Config, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return cfg, fmt.Errorf("invalid --base-url %q", baseURL)
	}
	ref, err := url.Parse(strings.TrimPrefix(cfg.Target.URL, "/"))
	if err != nil {
		return cfg, errors.Wrap(err, "parse target url")
	}
	out := cfg.Clone()
	out.Target.URL = base.ResolveReference(ref).String()
	out.Target.Mode = loadtest.ModeLive
	return out, nil
}

type overrides struct {
	VUs         int
	DurationSec int
	ThinkTimeMs int
}

func (o overrides) apply(cfg *loadtest.Config) {
	if o.VUs > 0 {
		cfg.Load.VirtualUsers = o.VUs
	}
	if o.DurationSec > 0 {
		cfg.Load.DurationSeconds = o.DurationSec
	}
	if o.ThinkTimeMs > 0 {
		cfg.Load.ThinkTimeMs = o.ThinkTimeMs
	}
}
