package config

// Registry types accepted by the push stage.
const (
	RegistryTypeACR    = "acr"
	RegistryTypeCommon = "common"
)

// Deployment types accepted by the deploy stage.
const (
	DeploymentTypeSingle   = "single"
	DeploymentTypeMultiple = "multiple"
)

// DefaultPriority is the deployment priority used when none is configured.
const DefaultPriority = "10"

// AzureConfig identifies the subscription credentials and resource group
// shared by all three stages.
type AzureConfig struct {
	CredentialsID string `yaml:"credentials_id" toml:"credentials_id"`
	ResourceGroup string `yaml:"resource_group" toml:"resource_group"`
}

// ToolConfig locates the external command-line tools.
type ToolConfig struct {
	// Binary is the module build/push tool (iotedgedev).
	Binary string `yaml:"binary" toml:"binary"`

	// MinVersion is the oldest tool version accepted by the preflight check.
	// Empty disables the check.
	MinVersion string `yaml:"min_version" toml:"min_version"`

	// Platform is the default target platform for build and push.
	Platform string `yaml:"platform" toml:"platform"`

	// AzBinary is the Azure CLI used for hub deployment calls.
	AzBinary string `yaml:"az_binary" toml:"az_binary"`

	// ContainerTag is written to the descriptor as CONTAINER_TAG and
	// suffixes every module image tag. Templates such as "{sha}" or
	// "{branch}-{ci.pipeline}" are expanded per run.
	ContainerTag string `yaml:"container_tag" toml:"container_tag"`
}

// BuildConfig holds the build stage parameters.
type BuildConfig struct {
	Manifest string `yaml:"manifest" toml:"manifest"`
	Platform string `yaml:"platform" toml:"platform"`
}

// PushConfig holds the push stage parameters.
type PushConfig struct {
	// RegistryType is "acr" (Azure Container Registry looked up through the
	// management plane) or "common" (any registry with stored credentials).
	RegistryType string `yaml:"registry_type" toml:"registry_type"`

	// ACRName is the registry name inside Azure.ResourceGroup. acr only.
	ACRName string `yaml:"acr_name" toml:"acr_name"`

	// RegistryURL and RegistryCredentialsID describe a self-hosted
	// registry endpoint. common only.
	RegistryURL           string `yaml:"registry_url" toml:"registry_url"`
	RegistryCredentialsID string `yaml:"registry_credentials_id" toml:"registry_credentials_id"`

	// BypassModules is a comma-separated list of modules to skip.
	BypassModules string `yaml:"bypass_modules" toml:"bypass_modules"`

	Manifest string `yaml:"manifest" toml:"manifest"`
	Platform string `yaml:"platform" toml:"platform"`
}

// DeployConfig holds the deploy stage parameters.
type DeployConfig struct {
	// Content is the resolved deployment manifest, relative to the workspace.
	Content string `yaml:"content" toml:"content"`

	HubName string `yaml:"hub_name" toml:"hub_name"`

	// Type selects the target: "single" uses DeviceID, "multiple" uses
	// TargetCondition.
	Type            string `yaml:"type" toml:"type"`
	DeviceID        string `yaml:"device_id" toml:"device_id"`
	TargetCondition string `yaml:"target_condition" toml:"target_condition"`

	DeploymentID string `yaml:"deployment_id" toml:"deployment_id"`

	// Priority is kept as text so an explicit "0" survives flag merging.
	Priority string `yaml:"priority" toml:"priority"`
}

// DefaultToolConfig returns the stock tool locations.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		Binary:     "iotedgedev",
		MinVersion: "2.0.0",
		Platform:   "amd64",
		AzBinary:   "az",
	}
}

// DefaultBuildConfig returns sensible defaults for the build stage.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Manifest: "deployment.template.json",
	}
}

// DefaultPushConfig returns sensible defaults for the push stage.
func DefaultPushConfig() PushConfig {
	return PushConfig{
		RegistryType: RegistryTypeACR,
		Manifest:     "deployment.template.json",
	}
}

// DefaultDeployConfig returns sensible defaults for the deploy stage.
func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		Content:  "config/deployment.amd64.json",
		Type:     DeploymentTypeSingle,
		Priority: DefaultPriority,
	}
}
