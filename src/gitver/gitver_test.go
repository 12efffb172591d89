package gitver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Unix(1700000000, 0)}

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commit(t *testing.T, dir string, repo *git.Repository, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte(msg), 0o644))
	_, err = wt.Add("file.txt")
	require.NoError(t, err)
	h, err := wt.Commit(msg, &git.CommitOptions{Author: testAuthor})
	require.NoError(t, err)
	return h
}

func TestDetectVersionWithoutTags(t *testing.T) {
	dir, repo := initRepo(t)
	h := commit(t, dir, repo, "first")

	v, err := DetectVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, h.String(), v.SHA)
	assert.Equal(t, "0.0.0-dev+"+h.String()[:7], v.Version)
	assert.False(t, v.IsRelease)
	assert.Equal(t, "master", v.Branch)
}

func TestDetectVersionAtTag(t *testing.T) {
	dir, repo := initRepo(t)
	commit(t, dir, repo, "first")
	h := commit(t, dir, repo, "second")
	_, err := repo.CreateTag("v1.2.3", h, nil)
	require.NoError(t, err)

	v, err := DetectVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.Version)
	assert.Equal(t, "v1.2.3", v.Tag)
	assert.True(t, v.IsRelease)
}

func TestDetectVersionAfterAnnotatedTag(t *testing.T) {
	dir, repo := initRepo(t)
	h := commit(t, dir, repo, "first")
	_, err := repo.CreateTag("v2.0.0-rc.1", h, &git.CreateTagOptions{Tagger: testAuthor, Message: "rc"})
	require.NoError(t, err)
	head := commit(t, dir, repo, "second")

	v, err := DetectVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.Base)
	assert.Equal(t, "rc.1", v.Prerelease)
	assert.False(t, v.IsRelease)
	assert.Equal(t, "2.0.0-rc.1-dev+"+head.String()[:7], v.Version)
}

func TestDetectVersionFromSubdirectory(t *testing.T) {
	dir, repo := initRepo(t)
	commit(t, dir, repo, "first")
	sub := filepath.Join(dir, "modules", "filter")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	_, err := DetectVersion(sub)
	assert.NoError(t, err)
}

func TestDetectVersionOutsideRepo(t *testing.T) {
	_, err := DetectVersion(t.TempDir())
	assert.Error(t, err)
}

func TestResolveTemplate(t *testing.T) {
	for _, k := range pipelineEnv {
		t.Setenv(k, "")
	}
	t.Setenv("BUILD_NUMBER", "42")
	t.Setenv("EDGE_RING", "canary")
	v := &VersionInfo{Version: "1.2.3-dev+abcdef1", Base: "1.2.3", Major: "1", Branch: "feature/x", SHA: "abcdef1234567890"}

	assert.Equal(t, "1.2.3-dev-abcdef1", ResolveTemplate("{version}", v))
	assert.Equal(t, "feature-x-abcdef1", ResolveTemplate("{branch}-{sha}", v))
	assert.Equal(t, "abcdef1234", ResolveTemplate("{sha:10}", v))
	assert.Equal(t, "canary-42", ResolveTemplate("{env:EDGE_RING}-{ci.pipeline}", v))
	assert.Equal(t, "latest", ResolveTemplate("latest", nil))
	assert.True(t, strings.HasPrefix(ResolveTemplate("{date}", nil), "20"))
}

func TestNeedsGit(t *testing.T) {
	assert.True(t, NeedsGit("{sha:8}"))
	assert.True(t, NeedsGit("v{version}"))
	assert.False(t, NeedsGit("{env:TAG}"))
	assert.False(t, NeedsGit(""))
}

func TestJobName(t *testing.T) {
	for _, k := range append(append([]string{}, jobEnv...), pipelineEnv...) {
		t.Setenv(k, "")
	}
	v := &VersionInfo{Branch: "main", SHA: "abcdef1234"}

	assert.Equal(t, "ws@main (abcdef1)", JobName("/builds/ws", v))
	assert.Equal(t, "ws", JobName("/builds/ws", nil))

	t.Setenv("JOB_NAME", "edge-deploy")
	assert.Equal(t, "edge-deploy", JobName("/builds/ws", v))

	t.Setenv("BUILD_NUMBER", "7")
	assert.Equal(t, "edge-deploy #7", JobName("/builds/ws", v))
}
