// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worktree is the worktree/session coordinator: it maps
// (repository, branch) pairs onto on-disk working copies and
// multiplexer windows, reconstructing everything from the source
// control tool and the multiplexer rather than keeping its own state.
package worktree

// Repository is a directory under <base>/repos containing source
// control metadata.
type Repository struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

// Feature is a worktree: an additional working copy checked out on a
// distinct branch, or the repository's own main working copy.
type Feature struct {
	Name         string `json:"name"`
	WorktreePath string `json:"worktreePath"`
	Branch       string `json:"branch"`
	IsActive     bool   `json:"isActive"`
	IsMain       bool   `json:"isMain"`
}

// BranchInfo describes a branch not currently checked out in any
// worktree.
type BranchInfo struct {
	Name       string  `json:"name"`
	IsRemote   bool    `json:"isRemote"`
	RemoteName *string `json:"remoteName,omitempty"`
}

// defaultBranchCandidates is tried in order when a repository has no
// resolvable remote HEAD.
var defaultBranchCandidates = []string{"main", "master", "develop", "dev"}
