package gitver

import (
	"fmt"
	"path/filepath"
)

var (
	pipelineEnv = []string{
		"CI_PIPELINE_ID",         // GitLab
		"GITHUB_RUN_ID",          // GitHub Actions
		"BUILD_NUMBER",           // Jenkins
		"BITBUCKET_BUILD_NUMBER", // Bitbucket
	}
	jobEnv = []string{
		"CI_JOB_NAME",       // GitLab
		"GITHUB_JOB",        // GitHub Actions
		"JOB_NAME",          // Jenkins
		"BITBUCKET_STEP_ID", // Bitbucket
	}
)

// JobName returns the display name of the running CI job, e.g.
// "edge-deploy #42". Outside CI it falls back to the workspace directory
// and git context; v may be nil.
func JobName(workspace string, v *VersionInfo) string {
	job := firstEnv(jobEnv...)
	run := firstEnv(pipelineEnv...)
	switch {
	case job != "" && run != "":
		return fmt.Sprintf("%s #%s", job, run)
	case job != "":
		return job
	}

	name := filepath.Base(workspace)
	if v == nil {
		return name
	}
	if v.Branch != "" {
		return fmt.Sprintf("%s@%s (%s)", name, v.Branch, v.ShortSHA())
	}
	return fmt.Sprintf("%s (%s)", name, v.ShortSHA())
}
