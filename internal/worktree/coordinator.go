// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
	"github.com/nomadflowcode/nomadflow/internal/shellrun"
)

// cloneTimeout is the deadline for `git clone`, per the 10-minute
// budget in the external-interfaces contract.
const cloneTimeout = 600

// Coordinator is the worktree/session coordinator. It holds no
// worktree state of its own; every operation re-derives its answer
// from the source control tool.
type Coordinator struct {
	ReposDir     string
	WorktreesDir string
}

func New(reposDir, worktreesDir string) *Coordinator {
	return &Coordinator{ReposDir: reposDir, WorktreesDir: worktreesDir}
}

// ListRepositories scans <base>/repos for directories containing a
// .git entry.
func (c *Coordinator) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository

	entries, err := os.ReadDir(c.ReposDir)
	if os.IsNotExist(err) {
		return repos, nil
	}
	if err != nil {
		return nil, nomaderr.Wrap(nomaderr.Io, "read repos dir", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.ReposDir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
			continue
		}
		repos = append(repos, Repository{
			Name:   entry.Name(),
			Path:   path,
			Branch: c.currentBranch(ctx, path),
		})
	}
	return repos, nil
}

// CloneRepository clones url into <base>/repos/<name>, deriving name
// from the URL when not supplied, sanitizing it, and scrubbing any
// injected credential token from the persisted remote afterward.
func (c *Coordinator) CloneRepository(ctx context.Context, url, token, name string) (Repository, error) {
	repoName := name
	if repoName == "" {
		stem := strings.TrimSuffix(filepath.Base(strings.TrimRight(url, "/")), ".git")
		if stem == "" {
			return Repository{}, nomaderr.NewOther("cannot determine repository name from URL")
		}
		repoName = stem
	}
	repoName = SanitizeName(repoName)

	dest := filepath.Join(c.ReposDir, repoName)
	if _, err := os.Stat(dest); err == nil {
		return Repository{}, nomaderr.NewAlreadyExists(fmt.Sprintf("repository %q already exists", repoName))
	}

	if err := os.MkdirAll(c.ReposDir, 0o755); err != nil {
		return Repository{}, nomaderr.Wrap(nomaderr.Io, "create repos dir", err)
	}

	cloneURL := url
	if token != "" {
		cloneURL = injectToken(url, token)
	}

	result := shellrun.RunCommand(ctx, fmt.Sprintf("git clone %s %s", shQuote(cloneURL), shQuote(dest)), "", cloneTimeout)
	if !result.Success() {
		return Repository{}, nomaderr.NewCommandFailed(fmt.Sprintf("git clone failed: %s", result.Stderr))
	}

	if token != "" {
		shellrun.Run(ctx, fmt.Sprintf("git remote set-url origin %s", shQuote(url)), dest)
	}

	return Repository{
		Name:   repoName,
		Path:   dest,
		Branch: c.currentBranch(ctx, dest),
	}, nil
}

// ListFeatures parses `git worktree list --porcelain` for repoPath and
// augments it with any directory under <base>/worktrees/<repo> the
// source control tool has lost track of.
func (c *Coordinator) ListFeatures(ctx context.Context, repoPath string) ([]Feature, error) {
	repoName := filepath.Base(repoPath)
	canonicalRepo := canonicalize(repoPath)

	result := shellrun.Run(ctx, "git worktree list --porcelain", repoPath)
	var features []Feature
	if result.Success() {
		features = parseWorktreePorcelain(result.Stdout, repoName, canonicalRepo)
	}

	seen := make(map[string]bool, len(features))
	for _, f := range features {
		seen[f.WorktreePath] = true
	}

	repoWorktrees := filepath.Join(c.WorktreesDir, repoName)
	entries, err := os.ReadDir(repoWorktrees)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(repoWorktrees, entry.Name())
			if seen[path] {
				continue
			}
			features = append(features, Feature{
				Name:         entry.Name(),
				WorktreePath: path,
				Branch:       c.currentBranch(ctx, path),
			})
		}
	}

	return features, nil
}

// parseWorktreePorcelain parses `git worktree list --porcelain` output
// into Features, deciding is_main by canonical-path equality against
// the repository root.
func parseWorktreePorcelain(output, repoName, canonicalRepo string) []Feature {
	var features []Feature
	var curPath, curBranch string
	haveEntry := false

	flush := func() {
		if !haveEntry {
			return
		}
		branch := strings.TrimPrefix(curBranch, "refs/heads/")
		isMain := canonicalize(curPath) == canonicalRepo
		name := filepath.Base(curPath)
		if isMain {
			if branch != "" {
				name = branch
			} else {
				name = repoName
			}
		}
		features = append(features, Feature{
			Name:         name,
			WorktreePath: curPath,
			Branch:       branch,
			IsMain:       isMain,
		})
		curPath, curBranch, haveEntry = "", "", false
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			curPath = strings.TrimPrefix(line, "worktree ")
			haveEntry = true
		case strings.HasPrefix(line, "branch "):
			curBranch = strings.TrimPrefix(line, "branch ")
		}
	}
	flush()

	return features
}

// ListBranches returns local and remote branches not already checked
// out in a worktree, plus the repository's default branch.
func (c *Coordinator) ListBranches(ctx context.Context, repoPath string) ([]BranchInfo, string, error) {
	shellrun.Run(ctx, "git fetch --all", repoPath) // best-effort, failures swallowed

	features, err := c.ListFeatures(ctx, repoPath)
	if err != nil {
		return nil, "", err
	}
	checkedOut := make(map[string]bool, len(features))
	for _, f := range features {
		checkedOut[f.Branch] = true
	}

	var branches []BranchInfo

	local := shellrun.Run(ctx, `git for-each-ref --format="%(refname:short)" refs/heads/`, repoPath)
	if local.Success() {
		for _, name := range nonEmptyLines(local.Stdout) {
			if !checkedOut[name] {
				branches = append(branches, BranchInfo{Name: name})
			}
		}
	}

	remote := shellrun.Run(ctx, `git for-each-ref --format="%(refname:short)" refs/remotes/`, repoPath)
	if remote.Success() {
		for _, full := range nonEmptyLines(remote.Stdout) {
			parts := strings.SplitN(full, "/", 2)
			if len(parts) != 2 || parts[1] == "HEAD" {
				continue
			}
			remoteName, name := parts[0], parts[1]
			if checkedOut[name] {
				continue
			}
			rn := remoteName
			branches = append(branches, BranchInfo{Name: name, IsRemote: true, RemoteName: &rn})
		}
	}

	return branches, c.DefaultBranch(ctx, repoPath), nil
}

// AttachBranch checks out branchName into a new worktree, deriving the
// worktree directory name from branchName's last path segment and
// resolving collisions with a numeric suffix.
func (c *Coordinator) AttachBranch(ctx context.Context, repoPath, branchName string) (string, string, error) {
	repoName := filepath.Base(repoPath)
	repoWorktrees := filepath.Join(c.WorktreesDir, repoName)
	if err := os.MkdirAll(repoWorktrees, 0o755); err != nil {
		return "", "", nomaderr.Wrap(nomaderr.Io, "create worktrees dir", err)
	}

	dirName := DeriveWorktreeName(branchName, repoWorktrees)
	worktreePath := filepath.Join(repoWorktrees, dirName)

	result := shellrun.Run(ctx, fmt.Sprintf("git worktree add %s %s", shQuote(worktreePath), shQuote(branchName)), repoPath)
	if !result.Success() {
		result = shellrun.Run(ctx, fmt.Sprintf("git worktree add -b %s %s %s",
			shQuote(branchName), shQuote(worktreePath), shQuote("origin/"+branchName)), repoPath)
		if !result.Success() {
			return "", "", nomaderr.NewCommandFailed(fmt.Sprintf("failed to attach branch: %s", result.Stderr))
		}
	}

	return worktreePath, branchName, nil
}

// DeriveWorktreeName derives a worktree directory name from a branch
// name's last path segment, sanitized, resolving collisions within dir
// by appending -2, -3, ... It is injective within a single dir.
func DeriveWorktreeName(branchName, dir string) string {
	segments := strings.Split(branchName, "/")
	base := SanitizeName(segments[len(segments)-1])

	name := base
	for i := 2; pathExists(filepath.Join(dir, name)); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return name
}

// CreateFeature creates (or idempotently returns) a worktree for
// branchName, trying base-branch variants in strict order until one
// succeeds.
func (c *Coordinator) CreateFeature(ctx context.Context, repoPath, branchName, baseBranch string) (string, string, error) {
	repoName := filepath.Base(repoPath)

	base := baseBranch
	if base == "" {
		base = c.DefaultBranch(ctx, repoPath)
	}

	repoWorktrees := filepath.Join(c.WorktreesDir, repoName)
	if err := os.MkdirAll(repoWorktrees, 0o755); err != nil {
		return "", "", nomaderr.Wrap(nomaderr.Io, "create worktrees dir", err)
	}

	segments := strings.Split(branchName, "/")
	dirName := SanitizeName(segments[len(segments)-1])
	worktreePath := filepath.Join(repoWorktrees, dirName)

	if pathExists(worktreePath) {
		return worktreePath, branchName, nil
	}

	shellrun.Run(ctx, "git fetch --all", repoPath) // best-effort

	variants := []string{
		fmt.Sprintf("git worktree add -b %s %s %s", shQuote(branchName), shQuote(worktreePath), shQuote(base)),
		fmt.Sprintf("git worktree add %s %s", shQuote(worktreePath), shQuote(branchName)),
		fmt.Sprintf("git worktree add -b %s %s %s", shQuote(branchName), shQuote(worktreePath), shQuote("origin/"+base)),
		fmt.Sprintf("git worktree add -b %s %s HEAD", shQuote(branchName), shQuote(worktreePath)),
	}

	var last shellrun.Result
	for _, cmd := range variants {
		last = shellrun.Run(ctx, cmd, repoPath)
		if last.Success() {
			return worktreePath, branchName, nil
		}
	}

	return "", "", nomaderr.NewCommandFailed(fmt.Sprintf("failed to create worktree: %s", last.Stderr))
}

// DeleteFeature removes the worktree for featureName and, per the
// legacy convention, the local branch feature/<featureName> — see
// SPEC_FULL.md §13 for why this does not generalize to arbitrary
// branch names.
func (c *Coordinator) DeleteFeature(ctx context.Context, repoPath, featureName string) (bool, error) {
	repoName := filepath.Base(repoPath)
	worktreePath := filepath.Join(c.WorktreesDir, repoName, featureName)

	result := shellrun.Run(ctx, fmt.Sprintf("git worktree remove %s --force", shQuote(worktreePath)), repoPath)
	if !result.Success() {
		shellrun.Run(ctx, "git worktree prune", repoPath)
		if pathExists(worktreePath) {
			os.RemoveAll(worktreePath)
		}
	}

	branchName := "feature/" + featureName
	shellrun.Run(ctx, fmt.Sprintf("git branch -D %s", shQuote(branchName)), repoPath)

	return true, nil
}

// DefaultBranch resolves origin's symbolic HEAD, falling back to the
// first of main|master|develop|dev that exists, then the current
// branch, then the literal "main".
func (c *Coordinator) DefaultBranch(ctx context.Context, repoPath string) string {
	result := shellrun.Run(ctx, "git symbolic-ref refs/remotes/origin/HEAD", repoPath)
	if result.Success() {
		branch := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(result.Stdout), "refs/remotes/origin/"))
		if branch != "" {
			return branch
		}
	}

	for _, candidate := range defaultBranchCandidates {
		if shellrun.Run(ctx, fmt.Sprintf("git rev-parse --verify %s", shQuote(candidate)), repoPath).Success() {
			return candidate
		}
	}

	if branch := c.currentBranch(ctx, repoPath); branch != "" && branch != "unknown" {
		return branch
	}
	return "main"
}

func (c *Coordinator) currentBranch(ctx context.Context, path string) string {
	result := shellrun.Run(ctx, "git rev-parse --abbrev-ref HEAD", path)
	if result.Success() {
		return strings.TrimSpace(result.Stdout)
	}
	return "unknown"
}

// SanitizeName keeps alphanumerics, '.', '_', '-' and replaces every
// other character with '-'. It is idempotent.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isAlphanumeric(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func injectToken(url, token string) string {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return "https://oauth2:" + token + "@" + rest
	}
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		return "http://oauth2:" + token + "@" + rest
	}
	return url
}

func canonicalize(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return path
		}
		return abs
	}
	return resolved
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// shQuote wraps s in single quotes for safe inclusion in a `sh -c`
// command line, escaping any embedded single quote.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
