// Package deploy loads deployment manifests and submits them to an IoT Hub.
package deploy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/Jeffail/gabs"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// DesiredKey is the twin section every deployment must carry.
const DesiredKey = "properties.desired"

const (
	modulesContentKey = "modulesContent"
	edgeAgentKey      = "$edgeAgent"
)

// ErrMalformedDescriptor is matched by every MalformedDescriptorError.
var ErrMalformedDescriptor = errors.New("malformed deployment descriptor")

// MalformedDescriptorError reports a deployment file that cannot be
// submitted: unreadable, not JSON, or missing a required key.
type MalformedDescriptorError struct {
	Path string
	Key  string // missing key, empty when the file did not parse
	Err  error
}

// Error implements the error interface.
func (e *MalformedDescriptorError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("deployment descriptor %s is missing required key %q (was the template fully resolved?)", e.Path, e.Key)
	}
	return fmt.Sprintf("deployment descriptor %s: %v", e.Path, e.Err)
}

// Is matches ErrMalformedDescriptor.
func (e *MalformedDescriptorError) Is(target error) bool {
	return target == ErrMalformedDescriptor
}

// Unwrap returns the underlying read or parse error.
func (e *MalformedDescriptorError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal finding in a deployment descriptor.
type Warning struct {
	Line    int // 1-based, 0 when unknown
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Descriptor is a loaded deployment manifest.
type Descriptor struct {
	Path     string
	Content  *gabs.Container
	Raw      []byte
	Warnings []Warning
}

var placeholderRe = regexp.MustCompile(`\$\{[^}\n]*\}`)

// LoadDescriptor reads and checks a deployment manifest. A document
// missing properties.desired fails with a MalformedDescriptorError naming
// the key and the file; anything else about the content is accepted.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedDescriptorError{Path: path, Err: err}
	}

	content, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, &MalformedDescriptorError{Path: path, Err: fmt.Errorf("parsing JSON: %w", err)}
	}

	if desired(content) == nil {
		return nil, &MalformedDescriptorError{Path: path, Key: DesiredKey}
	}

	return &Descriptor{
		Path:     path,
		Content:  content,
		Raw:      raw,
		Warnings: placeholders(raw),
	}, nil
}

// desired locates properties.desired. Edge manifests keep it on the
// $edgeAgent twin inside modulesContent, normally as a literal dotted key;
// plain twin documents keep it at the root. The first location holding
// it wins.
func desired(c *gabs.Container) *gabs.Container {
	for _, root := range [][]string{
		{modulesContentKey, edgeAgentKey},
		{"content", modulesContentKey, edgeAgentKey},
		{},
	} {
		if section := desiredAt(c, root); section != nil {
			return section
		}
	}
	return nil
}

func desiredAt(c *gabs.Container, root []string) *gabs.Container {
	if len(root) > 0 {
		if !c.Exists(root...) {
			return nil
		}
		c = c.Search(root...)
	}
	if c.Exists(DesiredKey) {
		return c.Search(DesiredKey)
	}
	if c.Exists("properties", "desired") {
		return c.Search("properties", "desired")
	}
	return nil
}

// Modules returns the module names declared to the edge agent, sorted.
func (d *Descriptor) Modules() []string {
	section := desired(d.Content)
	if section == nil || !section.Exists("modules") {
		return nil
	}
	children, err := section.Search("modules").ChildrenMap()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func placeholders(raw []byte) []Warning {
	var warnings []Warning
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), len(raw)+1)
	line := 0
	for scanner.Scan() {
		line++
		for _, m := range placeholderRe.FindAllString(scanner.Text(), -1) {
			warnings = append(warnings, Warning{Line: line, Message: fmt.Sprintf("unresolved placeholder %s", m)})
		}
	}
	return warnings
}

// ScanSecrets looks for plaintext credentials in the descriptor, such as
// registry passwords pasted into registryCredentials. Findings are
// warnings; the match itself is never included.
func (d *Descriptor) ScanSecrets() ([]Warning, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing secret scanner: %w", err)
	}

	hits := detector.DetectBytes(d.Raw)
	warnings := make([]Warning, 0, len(hits))
	for _, h := range hits {
		warnings = append(warnings, Warning{
			Line:    h.StartLine + 1, // gitleaks is 0-indexed
			Message: "possible plaintext secret: " + h.Description + " (" + h.RuleID + ")",
		})
	}
	return warnings, nil
}
