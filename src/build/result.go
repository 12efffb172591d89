package build

import "time"

// Step outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// StepResult captures the outcome of a single iotedgedev invocation.
type StepResult struct {
	Name     string
	Status   string
	Modules  []ModuleEvent // per-module progress parsed from tool output
	Duration time.Duration
	Error    error
}

// Images returns the image references the step built or pushed, in order.
func (r *StepResult) Images() []string {
	var images []string
	seen := map[string]bool{}
	for _, m := range r.Modules {
		if m.Image == "" || seen[m.Image] {
			continue
		}
		seen[m.Image] = true
		images = append(images, m.Image)
	}
	return images
}
