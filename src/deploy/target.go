package deploy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sofmeright/edgefreight/src/config"
)

// Target selection modes.
const (
	ModeSingle   = config.DeploymentTypeSingle
	ModeMultiple = config.DeploymentTypeMultiple
)

// deviceIDRe is the IoT Hub device id alphabet, minus the single quote
// which cannot appear inside a quoted condition literal.
var deviceIDRe = regexp.MustCompile(`^[A-Za-z0-9\-.%_*?!(),:=@$]{1,128}$`)

// Target selects the devices a deployment applies to: exactly one device,
// or every device matching a twin query condition.
type Target struct {
	deviceID  string
	condition string
}

// ForDevice targets a single device by id.
func ForDevice(deviceID string) (Target, error) {
	if deviceID == "" {
		return Target{}, &config.ValidationError{Field: "deploy.device_id", Message: "is required"}
	}
	if !deviceIDRe.MatchString(deviceID) {
		return Target{}, &config.ValidationError{
			Field:   "deploy.device_id",
			Value:   deviceID,
			Message: "must be 1-128 letters, digits or -.%_*?!(),:=@$",
		}
	}
	return Target{deviceID: deviceID}, nil
}

// ForCondition targets every device matching expr. The expression must be
// a well-formed twin query condition.
func ForCondition(expr string) (Target, error) {
	if strings.TrimSpace(expr) == "" {
		return Target{}, &config.ValidationError{Field: "deploy.target_condition", Message: "is required"}
	}
	if err := ParseCondition(expr); err != nil {
		return Target{}, &config.ValidationError{Field: "deploy.target_condition", Value: expr, Message: err.Error()}
	}
	return Target{condition: expr}, nil
}

// NewTarget builds the target for a deployment type.
func NewTarget(mode, deviceID, condition string) (Target, error) {
	switch mode {
	case ModeSingle:
		return ForDevice(deviceID)
	case ModeMultiple:
		return ForCondition(condition)
	default:
		return Target{}, &config.ValidationError{
			Field:   "deploy.type",
			Value:   mode,
			Message: fmt.Sprintf("must be %q or %q", ModeSingle, ModeMultiple),
		}
	}
}

// IsSingleDevice reports whether the target is one device.
func (t Target) IsSingleDevice() bool {
	return t.deviceID != ""
}

// DeviceID returns the targeted device, empty for a condition target.
func (t Target) DeviceID() string {
	return t.deviceID
}

// Condition renders the target as the hub's target condition.
func (t Target) Condition() string {
	if t.deviceID != "" {
		return fmt.Sprintf("deviceId='%s'", t.deviceID)
	}
	return t.condition
}

func (t Target) String() string {
	if t.deviceID != "" {
		return "device " + t.deviceID
	}
	return "condition " + t.condition
}
