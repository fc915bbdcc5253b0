package deployment

import (
	"time"

	"github.com/hashicorp/go-version"

	"github.com/labx-platform/testbed/pkg/serrors"
)

type CreateConfigDTO struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Environment EnvironmentType `json:"environment" validate:"required,oneof=staging production development"`
	Platform    Platform        `json:"platform" validate:"required,oneof=netlify vercel aws azure gcp"`
	Build       Build           `json:"config"`
	Monitoring  Monitoring      `json:"monitoring"`
	Enabled     *bool           `json:"enabled"`
}

func (d CreateConfigDTO) Validate() error {
	if verrs := serrors.ValidateStruct(d); verrs != nil {
		return verrs
	}
	return nil
}

// ToEntity builds a Config; Enabled defaults to true.
func (d CreateConfigDTO) ToEntity(id string, now time.Time) Config {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	return Config{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Environment: d.Environment,
		Platform:    d.Platform,
		Build:       d.Build,
		Monitoring:  d.Monitoring,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type DeployDTO struct {
	ConfigID string `json:"configId" validate:"required"`
	Version  string `json:"version" validate:"required"`
	Commit   string `json:"commitHash"`
	Branch   string `json:"branch"`
}

func (d DeployDTO) Validate() error {
	if verrs := serrors.ValidateStruct(d); verrs != nil {
		return verrs
	}
	if _, err := version.NewSemver(d.Version); err != nil {
		return ErrInvalidVersion.WithDetails(err.Error())
	}
	return nil
}
