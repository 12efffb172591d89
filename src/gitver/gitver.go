// Package gitver derives version and job context from the workspace's git
// repository. It feeds container tag templates and the job name reported
// with stage outcomes.
package gitver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	Version      string // full version: "1.2.3", "1.2.3-alpha.1", "0.0.0-dev+abc1234"
	Base         string // semver base without prerelease: "1.2.3"
	Major        string
	Minor        string
	Patch        string
	Prerelease   string // "alpha.1", "beta.2", "rc.1", or "" for stable
	SHA          string // full commit hash
	Branch       string
	Tag          string // nearest version tag, "" when there is none
	IsRelease    bool   // true if HEAD is exactly at a tag
	IsPrerelease bool   // true if tag has a prerelease suffix
}

// ShortSHA returns the first 7 characters of the commit hash.
func (v *VersionInfo) ShortSHA() string {
	return truncate(v.SHA, 7)
}

// semverRe captures major.minor.patch and optional -prerelease suffix.
var semverRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-(.+))?$`)

// branchEnv names CI variables that carry the branch when the checkout is
// a detached HEAD.
var branchEnv = []string{
	"CI_COMMIT_REF_NAME", // GitLab
	"GITHUB_REF_NAME",    // GitHub Actions
	"BRANCH_NAME",        // Jenkins multibranch
	"GIT_BRANCH",         // Jenkins git plugin
	"BITBUCKET_BRANCH",   // Bitbucket
}

// DetectVersion resolves version info from git tags and refs. rootDir may
// be any directory inside the work tree.
func DetectVersion(rootDir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", rootDir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	v := &VersionInfo{SHA: head.Hash().String()}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	} else {
		v.Branch = strings.TrimPrefix(firstEnv(branchEnv...), "origin/")
	}

	tag, distance, err := nearestTag(repo, head.Hash())
	if err != nil {
		return nil, err
	}

	if tag == "" {
		// No tags — use dev version
		v.Version = fmt.Sprintf("0.0.0-dev+%s", v.ShortSHA())
		v.Base = "0.0.0"
		v.Major = "0"
		v.Minor = "0"
		v.Patch = "0"
		return v, nil
	}

	v.Tag = tag
	v.IsRelease = distance == 0

	m := semverRe.FindStringSubmatch(tag)
	v.Major, v.Minor, v.Patch = m[1], m[2], m[3]
	v.Base = fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])
	if m[4] != "" {
		v.Prerelease = m[4]
		v.IsPrerelease = true
		v.Version = fmt.Sprintf("%s-%s", v.Base, v.Prerelease)
	} else {
		v.Version = v.Base
	}

	if !v.IsRelease {
		v.Version = fmt.Sprintf("%s-dev+%s", v.Version, v.ShortSHA())
	}
	return v, nil
}

// nearestTag walks history from head and returns the first commit's
// highest semver tag together with its distance from head.
func nearestTag(repo *git.Repository, head plumbing.Hash) (string, int, error) {
	tagged, err := versionTags(repo)
	if err != nil {
		return "", 0, err
	}
	if len(tagged) == 0 {
		return "", 0, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head})
	if err != nil {
		return "", 0, fmt.Errorf("reading history: %w", err)
	}
	defer iter.Close()

	var (
		found    string
		distance int
	)
	err = iter.ForEach(func(c *object.Commit) error {
		if t, ok := tagged[c.Hash]; ok {
			found = t
			return storer.ErrStop
		}
		distance++
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return "", 0, fmt.Errorf("reading history: %w", err)
	}
	return found, distance, nil
}

// versionTags maps commits to their highest semver tag. Annotated tags are
// peeled to the commit they point at.
func versionTags(repo *git.Repository) (map[plumbing.Hash]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	tagged := map[plumbing.Hash]string{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !semverRe.MatchString(name) {
			return nil
		}
		hash, err := repo.ResolveRevision(plumbing.Revision(ref.Name().String()))
		if err != nil {
			return nil
		}
		if prev, ok := tagged[*hash]; !ok || newer(name, prev) {
			tagged[*hash] = name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tagged, nil
}

func newer(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return va.GreaterThan(vb)
}
