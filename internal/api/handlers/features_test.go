// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nomadflowcode/nomadflow/internal/shellrun"
	"github.com/nomadflowcode/nomadflow/internal/terminal"
	"github.com/nomadflowcode/nomadflow/internal/worktree"
	"github.com/stretchr/testify/require"
)

// newFeatureTestHarness sets up a coordinator over a freshly initialized
// git repo and a multiplexer over a throwaway tmux session, skipping the
// test if either binary is unavailable.
func newFeatureTestHarness(t *testing.T) (*FeatureHandler, string) {
	t.Helper()
	ctx := context.Background()

	if !shellrun.CommandExists(ctx, "git") {
		t.Skip("git not available")
	}
	if !shellrun.CommandExists(ctx, "tmux") {
		t.Skip("tmux not available")
	}

	dir := t.TempDir()
	reposDir := filepath.Join(dir, "repos")
	worktreesDir := filepath.Join(dir, "worktrees")
	require.NoError(t, os.MkdirAll(reposDir, 0o755))

	repoPath := filepath.Join(reposDir, "demo")
	initGitRepo(t, repoPath)

	coordinator := worktree.New(reposDir, worktreesDir)

	session := fmt.Sprintf("nomadflow-test-%d", time.Now().UnixNano())
	mux := terminal.New(session)
	require.NoError(t, mux.EnsureSession(ctx))
	t.Cleanup(func() {
		shellrun.Run(context.Background(), "tmux kill-session -t "+session, "")
	})

	return NewFeatureHandler(coordinator, mux), repoPath
}

// initGitRepo creates a minimal git repository with one commit on its
// default branch at path.
func initGitRepo(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(path, 0o755))
	run := func(cmd string) {
		t.Helper()
		result := shellrun.Run(ctx, cmd, path)
		require.True(t, result.Success(), "%s: %s", cmd, result.Stderr)
	}
	run("git init -q -b main")
	run(`git config user.email "test@example.com"`)
	run(`git config user.name "test"`)
	require.NoError(t, os.WriteFile(filepath.Join(path, "README.md"), []byte("demo\n"), 0o644))
	run("git add README.md")
	run(`git commit -q -m init`)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// TestCreateThenSwitchFeature covers a create followed immediately by
// a switch to the same feature.
func TestCreateThenSwitchFeature(t *testing.T) {
	h, repoPath := newFeatureTestHarness(t)

	createRec := postJSON(t, h.CreateFeature, createFeatureRequest{
		RepoPath:   repoPath,
		BranchName: "feature/login",
	})
	require.Equal(t, http.StatusOK, createRec.Code)

	var created struct {
		WorktreePath string `json:"worktreePath"`
		Branch       string `json:"branch"`
		TmuxWindow   string `json:"tmuxWindow"`
	}
	require.NoError(t, json.NewDecoder(createRec.Body).Decode(&created))
	require.Equal(t, "feature/login", created.Branch)
	require.Equal(t, "demo:login", created.TmuxWindow)

	switchRec := postJSON(t, h.SwitchFeature, featureNameRequest{
		RepoPath:    repoPath,
		FeatureName: "login",
	})
	require.Equal(t, http.StatusOK, switchRec.Code)

	var switched struct {
		Switched          bool   `json:"switched"`
		WorktreePath      string `json:"worktreePath"`
		TmuxWindow        string `json:"tmuxWindow"`
		HasRunningProcess bool   `json:"hasRunningProcess"`
	}
	require.NoError(t, json.NewDecoder(switchRec.Body).Decode(&switched))
	require.True(t, switched.Switched)
	require.Equal(t, created.WorktreePath, switched.WorktreePath)
	require.Equal(t, "demo:login", switched.TmuxWindow)
	require.False(t, switched.HasRunningProcess)
}

// TestSwitchFeatureWithNoPriorWindow switches to a feature that has
// never been created (no prior create-feature call, so no tmux window
// exists yet). switch-feature creates the feature on first use and
// must still report success.
func TestSwitchFeatureWithNoPriorWindow(t *testing.T) {
	h, repoPath := newFeatureTestHarness(t)

	rec := postJSON(t, h.SwitchFeature, featureNameRequest{
		RepoPath:    repoPath,
		FeatureName: "brand-new",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Switched     bool   `json:"switched"`
		WorktreePath string `json:"worktreePath"`
		TmuxWindow   string `json:"tmuxWindow"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Switched, "a successful first-time switch must report switched:true")
	require.DirExists(t, resp.WorktreePath)
	require.Equal(t, "demo:brand-new", resp.TmuxWindow)
}

// TestCreateFeatureIdempotent repeats a create-feature call and
// expects the same worktree and branch back, without error.
func TestCreateFeatureIdempotent(t *testing.T) {
	h, repoPath := newFeatureTestHarness(t)

	req := createFeatureRequest{RepoPath: repoPath, BranchName: "feature/login"}

	first := postJSON(t, h.CreateFeature, req)
	require.Equal(t, http.StatusOK, first.Code)
	var firstBody struct {
		WorktreePath string `json:"worktreePath"`
		Branch       string `json:"branch"`
	}
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstBody))

	second := postJSON(t, h.CreateFeature, req)
	require.Equal(t, http.StatusOK, second.Code)
	var secondBody struct {
		WorktreePath string `json:"worktreePath"`
		Branch       string `json:"branch"`
	}
	require.NoError(t, json.NewDecoder(second.Body).Decode(&secondBody))

	require.Equal(t, firstBody.WorktreePath, secondBody.WorktreePath)
	require.Equal(t, firstBody.Branch, secondBody.Branch)
}

// TestDeleteFeatureProtectsMain confirms the main worktree cannot be
// deleted through the feature-deletion endpoint.
func TestDeleteFeatureProtectsMain(t *testing.T) {
	h, repoPath := newFeatureTestHarness(t)

	rec := postJSON(t, h.DeleteFeature, featureNameRequest{
		RepoPath:    repoPath,
		FeatureName: "main",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "Cannot delete the main repository branch", body.Detail)
}

func TestBranchNameRequestAlias(t *testing.T) {
	req := createFeatureRequest{FeatureName: "legacy-name"}
	require.Equal(t, "legacy-name", req.branchName())

	req = createFeatureRequest{BranchName: "branchName-wins", FeatureName: "ignored"}
	require.Equal(t, "branchName-wins", req.branchName())
}
