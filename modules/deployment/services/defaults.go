package services

import (
	"time"

	"github.com/labx-platform/testbed/modules/deployment/domain/entities/deployment"
)

const (
	StagingConfigID    = "staging_config"
	ProductionConfigID = "production_config"
)

func defaultConfigs(now time.Time) []deployment.Config {
	return []deployment.Config{
		{
			ID:          StagingConfigID,
			Name:        "Staging Environment",
			Description: "Staging deployment configuration for testing",
			Environment: deployment.EnvStaging,
			Platform:    deployment.PlatformNetlify,
			Build: deployment.Build{
				Command:   "pnpm build",
				OutputDir: ".next",
				Env:       map[string]string{"NODE_ENV": "staging", "NEXT_PUBLIC_API_URL": "https://staging-api.5glabx.com"},
				Domain:    "staging.5glabx.com",
				SSL:       true,
				CDN:       true,
				Caching: deployment.Caching{
					Enabled:    true,
					TTLSeconds: 3600,
					Headers:    map[string]string{"Cache-Control": "public, max-age=3600"},
				},
			},
			Monitoring: deployment.Monitoring{
				HealthCheckURL: "https://staging.5glabx.com/api/health",
				HealthChecks:   []string{"/api/health", "/api/status"},
			},
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          ProductionConfigID,
			Name:        "Production Environment",
			Description: "Production deployment configuration",
			Environment: deployment.EnvProduction,
			Platform:    deployment.PlatformNetlify,
			Build: deployment.Build{
				Command:   "pnpm build",
				OutputDir: ".next",
				Env:       map[string]string{"NODE_ENV": "production", "NEXT_PUBLIC_API_URL": "https://api.5glabx.com"},
				Domain:    "5glabx.com",
				SSL:       true,
				CDN:       true,
				Caching: deployment.Caching{
					Enabled:    true,
					TTLSeconds: 86400,
					Headers:    map[string]string{"Cache-Control": "public, max-age=86400"},
				},
			},
			Monitoring: deployment.Monitoring{
				HealthCheckURL: "https://5glabx.com/api/health",
				HealthChecks:   []string{"/api/health", "/api/status", "/api/ready"},
			},
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func defaultEnvironments(now time.Time) []deployment.Environment {
	return []deployment.Environment{
		{
			ID:             "staging_env",
			Name:           "Staging",
			Type:           deployment.EnvStaging,
			URL:            "https://staging.5glabx.com",
			Health:         deployment.HealthHealthy,
			ResponseTimeMs: 120,
			Uptime:         99.9,
			LastCheck:      now,
		},
		{
			ID:             "production_env",
			Name:           "Production",
			Type:           deployment.EnvProduction,
			URL:            "https://5glabx.com",
			Health:         deployment.HealthHealthy,
			ResponseTimeMs: 85,
			Uptime:         99.95,
			LastCheck:      now,
		},
	}
}
