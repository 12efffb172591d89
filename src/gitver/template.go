package gitver

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ResolveTemplate expands template variables in a container tag against
// version info and environment.
//
// Supported templates:
//
//	{version}          → "1.2.3" or "1.2.3-alpha.1" (full version)
//	{base}             → "1.2.3" (semver base, no prerelease)
//	{major}            → "1"
//	{minor}            → "2"
//	{patch}            → "3"
//	{prerelease}       → "alpha.1" or "" (empty for stable)
//	{branch}           → "main", "develop"
//	{sha}              → "abc1234" (default 7)
//	{sha:12}           → "abc1234def01" (first 12 chars)
//	{env:VAR_NAME}     → value of environment variable
//	{date}             → "2026-02-24" (ISO date, UTC)
//	{timestamp}        → "1740412800" (unix epoch)
//	{ci.pipeline}      → pipeline/run ID
//	{ci.job}           → job name
//
// Literals pass through as-is. The result is sanitized for use as an
// image tag.
func ResolveTemplate(tmpl string, v *VersionInfo) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}

	s := resolveEnvVars(tmpl)
	s = resolveCIContext(s)
	s = resolveTime(s, time.Now().UTC())

	if v != nil {
		s = resolveSHA(s, v.SHA)
		s = strings.NewReplacer(
			"{version}", v.Version,
			"{base}", v.Base,
			"{major}", v.Major,
			"{minor}", v.Minor,
			"{patch}", v.Patch,
			"{prerelease}", v.Prerelease,
			"{branch}", v.Branch,
			"{sha}", v.ShortSHA(),
		).Replace(s)
	}

	return sanitizeTag(s)
}

// NeedsGit reports whether tmpl references git-derived variables.
func NeedsGit(tmpl string) bool {
	for _, v := range []string{"{version}", "{base}", "{major}", "{minor}", "{patch}", "{prerelease}", "{branch}", "{sha"} {
		if strings.Contains(tmpl, v) {
			return true
		}
	}
	return false
}

// resolveEnvVars replaces all {env:VAR_NAME} with the env var value.
func resolveEnvVars(s string) string {
	for {
		start := strings.Index(s, "{env:")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			return s
		}
		end += start
		varName := s[start+5 : end]
		val := os.Getenv(varName)
		s = s[:start] + val + s[end+1:]
	}
}

// resolveSHA replaces {sha:N} with the SHA truncated to N chars.
// Plain {sha} is handled separately by the simple replacement pass.
func resolveSHA(s string, sha string) string {
	for {
		start := strings.Index(s, "{sha:")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			return s
		}
		end += start
		width, err := strconv.Atoi(s[start+5 : end])
		if err != nil || width <= 0 {
			width = 7
		}
		s = s[:start] + truncate(sha, width) + s[end+1:]
	}
}

func resolveTime(s string, now time.Time) string {
	s = strings.ReplaceAll(s, "{date}", now.Format("2006-01-02"))
	s = strings.ReplaceAll(s, "{timestamp}", strconv.FormatInt(now.Unix(), 10))
	return s
}

// resolveCIContext replaces CI context templates with values from environment.
// Supports GitLab CI, GitHub Actions, Jenkins, and Bitbucket Pipelines.
func resolveCIContext(s string) string {
	s = strings.ReplaceAll(s, "{ci.pipeline}", firstEnv(pipelineEnv...))
	s = strings.ReplaceAll(s, "{ci.job}", firstEnv(jobEnv...))
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// firstEnv returns the value of the first non-empty environment variable.
func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// sanitizeTag replaces characters not allowed in Docker tags.
func sanitizeTag(s string) string {
	r := strings.NewReplacer(
		"/", "-",
		" ", "-",
		"+", "-",
	)
	return r.Replace(s)
}
