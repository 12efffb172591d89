// Package envfile writes the dotenv descriptor read by iotedgedev.
//
// Every write is complete: all recognized keys are present, unused ones
// are empty. The file is replaced atomically so the tool never reads a
// half-written descriptor.
package envfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// FileName is the descriptor's name inside the job workspace.
const FileName = ".env"

// Recognized keys.
const (
	KeyRegistryServer = "CONTAINER_REGISTRY_SERVER"
	KeyBypassModules  = "BYPASS_MODULES"
	KeyHubName        = "IOTHUB_NAME"
	KeyDeviceID       = "DEVICE_ID"
	KeyContainerTag   = "CONTAINER_TAG"
)

// Keys lists every key a descriptor carries.
var Keys = []string{KeyRegistryServer, KeyBypassModules, KeyHubName, KeyDeviceID, KeyContainerTag}

// Descriptor is the environment handed to iotedgedev. Registry
// credentials are deliberately absent; they travel in the child process
// environment only.
type Descriptor struct {
	RegistryServer string
	BypassModules  string
	HubName        string
	DeviceID       string
	ContainerTag   string
}

// Map returns the full key set, empty strings included.
func (d Descriptor) Map() map[string]string {
	return map[string]string{
		KeyRegistryServer: d.RegistryServer,
		KeyBypassModules:  d.BypassModules,
		KeyHubName:        d.HubName,
		KeyDeviceID:       d.DeviceID,
		KeyContainerTag:   d.ContainerTag,
	}
}

// Path returns the descriptor location inside workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, FileName)
}

// Write replaces the descriptor at path with d.
func Write(path string, d Descriptor) error {
	content, err := godotenv.Marshal(d.Map())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", FileName, err)
	}
	return writeAtomic(path, []byte(content+"\n"))
}

// Read parses a descriptor back into a map.
func Read(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env, nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place. On any failure the temporary file is removed and the
// previous descriptor, if any, is left untouched.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary %s: %w", FileName, err)
	}
	tmpPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temporary %s: %w", FileName, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temporary %s: %w", FileName, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temporary %s: %w", FileName, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting %s permissions: %w", FileName, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s into place: %w", FileName, err)
	}
	return nil
}
