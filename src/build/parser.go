package build

import (
	"regexp"
	"strings"
)

// Module actions reported by iotedgedev.
const (
	ActionBuild = "build"
	ActionPush  = "push"
	ActionSkip  = "skip"
)

// ModuleEvent is one module-level progress line from iotedgedev output.
type ModuleEvent struct {
	Module string // module name from the manifest, when known
	Action string // build, push or skip
	Image  string // full image reference, empty for skip
}

// Regex patterns for iotedgedev progress output.
var (
	// ======== BUILDING MODULE: filtermodule ========
	moduleHeaderRe = regexp.MustCompile(`BUILDING MODULE:\s*(\S+)`)
	// BUILDING DOCKER IMAGE: acr1.azurecr.io/filtermodule:0.0.1-amd64
	buildImageRe = regexp.MustCompile(`BUILDING DOCKER IMAGE:\s*(\S+)`)
	// PUSHING DOCKER IMAGE: acr1.azurecr.io/filtermodule:0.0.1-amd64
	pushImageRe = regexp.MustCompile(`PUSHING DOCKER IMAGE:\s*(\S+)`)
	// MODULE filtermodule IN BYPASS_MODULES, SKIPPING
	bypassRe = regexp.MustCompile(`(?i)(?:module\s+)?(\S+)\s+(?:is\s+)?in\s+BYPASS_MODULES`)
)

// ParseToolOutput extracts module events from captured iotedgedev output.
// Lines that are not module progress are ignored.
func ParseToolOutput(lines []string) []ModuleEvent {
	var events []ModuleEvent
	current := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := moduleHeaderRe.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		if m := buildImageRe.FindStringSubmatch(line); m != nil {
			events = append(events, ModuleEvent{Module: current, Action: ActionBuild, Image: m[1]})
			continue
		}
		if m := pushImageRe.FindStringSubmatch(line); m != nil {
			events = append(events, ModuleEvent{Module: moduleFromImage(current, m[1]), Action: ActionPush, Image: m[1]})
			continue
		}
		if m := bypassRe.FindStringSubmatch(line); m != nil {
			events = append(events, ModuleEvent{Module: strings.Trim(m[1], `"'`), Action: ActionSkip})
		}
	}

	return events
}

// moduleFromImage falls back to the repository name when no module header
// preceded the image line, as happens with push --no-build.
func moduleFromImage(current, image string) string {
	if current != "" {
		return current
	}
	name := image
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, ":@"); i >= 0 {
		name = name[:i]
	}
	return name
}
