package loadtest

import (
	"net/url"
	"time"

	"github.com/labx-platform/testbed/pkg/serrors"
)

type CreateConfigDTO struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Type        TestType   `json:"type" validate:"required,oneof=stress spike volume endurance scalability"`
	Target      Target     `json:"target"`
	Load        Load       `json:"load"`
	Thresholds  Thresholds `json:"thresholds"`
	Scenarios   []Scenario `json:"scenarios" validate:"dive"`
	Enabled     *bool      `json:"enabled"`
}

func (d CreateConfigDTO) Validate() error {
	if verrs := serrors.ValidateStruct(d); verrs != nil {
		return verrs
	}
	if d.Target.Live() {
		u, err := url.Parse(d.Target.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidTarget.WithDetails(d.Target.URL)
		}
	} else if err := d.Load.CheckSimulated(); err != nil {
		return err
	}
	if len(d.Scenarios) > 0 {
		total := 0
		for _, s := range d.Scenarios {
			total += s.Weight
		}
		if total <= 0 {
			return ErrInvalidScenarios
		}
	}
	return nil
}

// ToEntity builds a Config. Method defaults to GET, mode to simulated and Enabled to true.
func (d CreateConfigDTO) ToEntity(id string, now time.Time) Config {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	target := d.Target
	if target.Method == "" {
		target.Method = "GET"
	}
	if target.Mode == "" {
		target.Mode = ModeSimulated
	}
	scenarios := d.Scenarios
	if scenarios == nil {
		scenarios = []Scenario{}
	}
	return Config{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		Target:      target,
		Load:        d.Load,
		Thresholds:  d.Thresholds,
		Scenarios:   scenarios,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type ExecuteDTO struct {
	ConfigID    string `json:"configId" validate:"required"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Notes       string `json:"notes"`
}

func (d ExecuteDTO) Validate() error {
	if verrs := serrors.ValidateStruct(d); verrs != nil {
		return verrs
	}
	return nil
}

// Metadata applies the staging/latest defaults.
func (d ExecuteDTO) Metadata() Metadata {
	m := Metadata{Environment: d.Environment, Version: d.Version, Notes: d.Notes}
	if m.Environment == "" {
		m.Environment = DefaultEnvironment
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	return m
}

type SetBaselineDTO struct {
	ExecutionID string `json:"executionId" validate:"required"`
}
