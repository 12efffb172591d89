package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// deploymentIDRe is the IoT Hub configuration id alphabet.
var deploymentIDRe = regexp.MustCompile(`^[a-z0-9\-:+%_#*?!(),=@;$']{1,128}$`)

// ValidationError reports a stage parameter that failed validation.
// Value never holds secret material.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
}

func invalid(field, value, message string) error {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func required(field, value string) error {
	if value == "" {
		return invalid(field, "", "is required")
	}
	return nil
}

// ValidatePriority parses a deployment priority: a non-negative integer.
func ValidatePriority(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, invalid("deploy.priority", s, "must be a non-negative integer")
	}
	return n, nil
}

// ValidateDeploymentID checks a deployment id against the hub's rules:
// up to 128 lowercase letters, digits and -:+%_#*?!(),=@;$'.
func ValidateDeploymentID(s string) error {
	if !deploymentIDRe.MatchString(s) {
		return invalid("deploy.deployment_id", s, "must be 1-128 lowercase letters, digits or -:+%_#*?!(),=@;$'")
	}
	return nil
}

// BuildPlatform returns the effective build platform.
func (c *Config) BuildPlatform() string {
	if c.Build.Platform != "" {
		return c.Build.Platform
	}
	return c.Tool.Platform
}

// PushPlatform returns the effective push platform.
func (c *Config) PushPlatform() string {
	if c.Push.Platform != "" {
		return c.Push.Platform
	}
	return c.Tool.Platform
}

// ValidateBuild checks the parameters the build stage needs.
func (c *Config) ValidateBuild() error {
	return errors.Join(
		required("tool.binary", c.Tool.Binary),
		required("build.manifest", c.Build.Manifest),
		required("build.platform", c.BuildPlatform()),
	)
}

// ValidatePush checks the parameters the push stage needs.
func (c *Config) ValidatePush() error {
	errs := []error{
		required("tool.binary", c.Tool.Binary),
		required("push.manifest", c.Push.Manifest),
		required("push.platform", c.PushPlatform()),
	}

	switch c.Push.RegistryType {
	case RegistryTypeACR:
		errs = append(errs,
			required("azure.credentials_id", c.Azure.CredentialsID),
			required("azure.resource_group", c.Azure.ResourceGroup),
			required("push.acr_name", c.Push.ACRName),
		)
	case RegistryTypeCommon:
		errs = append(errs, required("push.registry_url", c.Push.RegistryURL))
	default:
		errs = append(errs, invalid("push.registry_type", c.Push.RegistryType,
			fmt.Sprintf("must be %q or %q", RegistryTypeACR, RegistryTypeCommon)))
	}

	return errors.Join(errs...)
}

// ValidateDeploy checks the parameters the deploy stage needs. The target
// condition grammar is checked when the target is built.
func (c *Config) ValidateDeploy() error {
	d := c.Deploy
	errs := []error{
		required("tool.az_binary", c.Tool.AzBinary),
		required("azure.credentials_id", c.Azure.CredentialsID),
		required("deploy.content", d.Content),
		required("deploy.hub_name", d.HubName),
		ValidateDeploymentID(d.DeploymentID),
	}
	if _, err := ValidatePriority(d.Priority); err != nil {
		errs = append(errs, err)
	}

	switch d.Type {
	case DeploymentTypeSingle:
		errs = append(errs, required("deploy.device_id", d.DeviceID))
	case DeploymentTypeMultiple:
		errs = append(errs, required("deploy.target_condition", d.TargetCondition))
	default:
		errs = append(errs, invalid("deploy.type", d.Type,
			fmt.Sprintf("must be %q or %q", DeploymentTypeSingle, DeploymentTypeMultiple)))
	}

	return errors.Join(errs...)
}
