// Package config defines the global configuration structure for the fieldline
// pipeline and viewer. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"fieldline/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the fieldline tools.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"fieldline"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Platform      PlatformConfig
	AWS           AWSConfig
	Catalog       CatalogConfig
	Artifacts     ArtifactsConfig
	Viewer        ViewerConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// PlatformConfig holds the credentials and endpoint for the remote imagery
// analytics platform. Authentication is either a static API key or a
// service-account key pair; when both are present the service account wins.
// Neither is required at load time so that dry runs against the in-process
// stub work without credentials.
type PlatformConfig struct {
	BaseURL string `envconfig:"PLATFORM_BASE_URL" default:"https://geo.fieldline.io" validate:"required,url"`

	// Static bearer key auth.
	APIKey SecretString `envconfig:"PLATFORM_API_KEY"`

	// Service-account auth: a signed assertion is exchanged for a short-lived
	// access token.
	ServiceAccount string       `envconfig:"PLATFORM_SERVICE_ACCOUNT"`
	PrivateKeyPEM  SecretString `envconfig:"PLATFORM_PRIVATE_KEY"`
	TokenTTL       time.Duration `envconfig:"PLATFORM_TOKEN_TTL" default:"1h"`

	Timeout   time.Duration `envconfig:"PLATFORM_TIMEOUT" default:"120s"`
	UserAgent string        `envconfig:"PLATFORM_USER_AGENT" default:"Fieldline/1.0"`
}

// HasServiceAccount reports whether service-account credentials are configured.
func (p PlatformConfig) HasServiceAccount() bool {
	return p.ServiceAccount != "" && p.PrivateKeyPEM.Unmask() != ""
}

// HasAPIKey reports whether a static API key is configured.
func (p PlatformConfig) HasAPIKey() bool {
	return p.APIKey.Unmask() != ""
}

// AWSConfig holds AWS regional configuration for the catalog probe and
// CloudWatch metrics.
type AWSConfig struct {
	// Region defaults to the region hosting the Sentinel-2 archive buckets.
	Region string `envconfig:"AWS_REGION" default:"eu-central-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// CatalogConfig holds settings for the advisory Sentinel-2 archive probe that
// runs before a pipeline run. The probe never aborts a run; it only warns.
type CatalogConfig struct {
	Enabled bool          `envconfig:"CATALOG_PREFLIGHT" default:"true"`
	Mirrors []string      `envconfig:"CATALOG_MIRRORS" default:"sentinel-s2-l2a,sentinel-cogs"`
	Tile    string        `envconfig:"CATALOG_TILE" default:"31UFU"`
	Timeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"15s"`
}

// ArtifactsConfig holds settings for the run artifact directory layout.
type ArtifactsConfig struct {
	Dir             string `envconfig:"ARTIFACTS_DIR" default:"runs"`
	CompressVectors bool   `envconfig:"ARTIFACTS_COMPRESS_VECTORS" default:"true"`
	QuicklookWidth  int    `envconfig:"QUICKLOOK_WIDTH" default:"512"`
}

// ViewerConfig holds HTTP server settings for the artifact viewer.
type ViewerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"VIEWER_REQUEST_TIMEOUT" default:"15s"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Fieldline"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
