package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("JENKINS_URL") != "" || os.Getenv("TF_BUILD") == "True"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// Collapsible section helpers. GitLab and GitHub Actions fold the output
// between start and end; other runners see nothing.

func SectionStart(w io.Writer, id, name string) {
	switch {
	case IsGitLabCI():
		ts := time.Now().Unix()
		fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
	case IsGitHubActions():
		fmt.Fprintf(w, "::group::%s\n", name)
	}
}

func SectionEnd(w io.Writer, id string) {
	switch {
	case IsGitLabCI():
		ts := time.Now().Unix()
		fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
	case IsGitHubActions():
		fmt.Fprintln(w, "::endgroup::")
	}
}

// CIHeader prints a compact pipeline context line at the start of a CI run.
func CIHeader(w io.Writer) {
	if !IsCI() {
		return
	}
	parts := []string{}
	if sha := firstEnv("CI_COMMIT_SHORT_SHA", "GITHUB_SHA", "GIT_COMMIT"); sha != "" {
		if len(sha) > 8 {
			sha = sha[:8]
		}
		parts = append(parts, fmt.Sprintf("sha=%s", sha))
	}
	if pipe := firstEnv("CI_PIPELINE_ID", "GITHUB_RUN_ID", "BUILD_NUMBER"); pipe != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", pipe))
	}
	if runner := firstEnv("CI_RUNNER_DESCRIPTION", "RUNNER_NAME", "NODE_NAME"); runner != "" {
		parts = append(parts, fmt.Sprintf("runner=%s", runner))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  ci: %s\n", strings.Join(parts, "  "))
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
