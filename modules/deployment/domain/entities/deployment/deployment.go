package deployment

import (
	"slices"
	"time"
)

type EnvironmentType string

const (
	EnvStaging     EnvironmentType = "staging"
	EnvProduction  EnvironmentType = "production"
	EnvDevelopment EnvironmentType = "development"
)

type Platform string

const (
	PlatformNetlify Platform = "netlify"
	PlatformVercel  Platform = "vercel"
	PlatformAWS     Platform = "aws"
	PlatformAzure   Platform = "azure"
	PlatformGCP     Platform = "gcp"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusBuilding  Status = "building"
	StatusDeploying Status = "deploying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether a deployment in status s can still be cancelled.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusBuilding || s == StatusDeploying
}

type Caching struct {
	Enabled    bool              `json:"enabled"`
	TTLSeconds int               `json:"ttl" validate:"gte=0"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type Build struct {
	Command   string            `json:"buildCommand" validate:"required"`
	OutputDir string            `json:"outputDirectory" validate:"required"`
	Env       map[string]string `json:"environmentVariables,omitempty"`
	Domain    string            `json:"domain" validate:"required,hostname_rfc1123"`
	SSL       bool              `json:"ssl"`
	CDN       bool              `json:"cdn"`
	Caching   Caching           `json:"caching"`
}

type Monitoring struct {
	HealthCheckURL string   `json:"healthCheckUrl,omitempty" validate:"omitempty,url"`
	HealthChecks   []string `json:"healthChecks,omitempty"`
	WebhookURL     string   `json:"webhookUrl,omitempty" validate:"omitempty,url"`
}

type Config struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Environment EnvironmentType `json:"environment"`
	Platform    Platform        `json:"platform"`
	Build       Build           `json:"config"`
	Monitoring  Monitoring      `json:"monitoring"`
	Enabled     bool            `json:"enabled"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Performance struct {
	BuildTimeMs     int64 `json:"buildTime"`
	DeployTimeMs    int64 `json:"deployTime"`
	BundleSize      int64 `json:"bundleSize"`
	LighthouseScore int   `json:"lighthouseScore"`
}

type Checks struct {
	HealthCheck     bool `json:"healthCheck"`
	SmokeTest       bool `json:"smokeTest"`
	SecurityScan    bool `json:"securityScan"`
	PerformanceTest bool `json:"performanceTest"`
}

type Deployment struct {
	ID              string          `json:"id"`
	ConfigID        string          `json:"configId"`
	Status          Status          `json:"status"`
	Version         string          `json:"version"`
	Commit          string          `json:"commitHash"`
	Branch          string          `json:"branch"`
	Environment     EnvironmentType `json:"environment"`
	StartedAt       time.Time       `json:"startedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	DurationSeconds int64           `json:"duration"`
	URL             string          `json:"url,omitempty"`
	Error           string          `json:"error,omitempty"`
	BuildLogs       []string        `json:"buildLogs"`
	DeployLogs      []string        `json:"deploymentLogs"`
	Performance     Performance     `json:"performance"`
	Checks          Checks          `json:"checks"`
	RollbackOf      string          `json:"rollbackOf,omitempty"`
}

func (d Deployment) Clone() Deployment {
	out := d
	out.BuildLogs = slices.Clone(d.BuildLogs)
	out.DeployLogs = slices.Clone(d.DeployLogs)
	if d.CompletedAt != nil {
		at := *d.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Finish moves d into a terminal status at the given time.
func (d *Deployment) Finish(status Status, at time.Time) {
	d.Status = status
	d.CompletedAt = &at
	d.DurationSeconds = int64(at.Sub(d.StartedAt) / time.Second)
}

type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthDown     Health = "down"
)

type Environment struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           EnvironmentType `json:"type"`
	URL            string          `json:"url"`
	Version        string          `json:"version,omitempty"`
	LastDeployment string          `json:"lastDeployment,omitempty"`
	Health         Health          `json:"health"`
	ResponseTimeMs int             `json:"responseTime"`
	Uptime         float64         `json:"uptime"`
	LastCheck      time.Time       `json:"lastCheck"`
}

type FindParams struct {
	ConfigID    string          `form:"configId"`
	Status      Status          `form:"status"`
	Environment EnvironmentType `form:"environment"`
	Limit       int             `form:"limit"`
}

func (p FindParams) Matches(d Deployment) bool {
	if p.ConfigID != "" && d.ConfigID != p.ConfigID {
		return false
	}
	if p.Status != "" && d.Status != p.Status {
		return false
	}
	if p.Environment != "" && d.Environment != p.Environment {
		return false
	}
	return true
}
