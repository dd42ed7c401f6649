// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strings"

	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
	"github.com/nomadflowcode/nomadflow/internal/terminal"
	"github.com/nomadflowcode/nomadflow/internal/worktree"
)

// FeatureHandler serves the feature (worktree) and branch endpoints.
type FeatureHandler struct {
	coordinator *worktree.Coordinator
	mux         *terminal.Multiplexer
}

func NewFeatureHandler(c *worktree.Coordinator, m *terminal.Multiplexer) *FeatureHandler {
	return &FeatureHandler{coordinator: c, mux: m}
}

type repoPathRequest struct {
	RepoPath string `json:"repoPath"`
}

// ListFeatures handles POST /api/list-features.
func (h *FeatureHandler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	var req repoPathRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	features, err := h.coordinator.ListFeatures(r.Context(), req.RepoPath)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"features": features})
}

type createFeatureRequest struct {
	RepoPath   string `json:"repoPath"`
	BranchName string `json:"branchName"`
	// FeatureName is the legacy request-field alias for BranchName.
	FeatureName string `json:"featureName"`
	BaseBranch  string `json:"baseBranch"`
}

func (req createFeatureRequest) branchName() string {
	if req.BranchName != "" {
		return req.BranchName
	}
	return req.FeatureName
}

// CreateFeature handles POST /api/create-feature.
func (h *FeatureHandler) CreateFeature(w http.ResponseWriter, r *http.Request) {
	var req createFeatureRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	branchName := req.branchName()
	if req.RepoPath == "" || branchName == "" {
		WriteDetail(w, http.StatusBadRequest, "repoPath and branchName are required")
		return
	}

	worktreePath, branch, err := h.coordinator.CreateFeature(r.Context(), req.RepoPath, branchName, req.BaseBranch)
	if err != nil {
		WriteError(w, err)
		return
	}

	window := terminal.WindowName(req.RepoPath, featureNameOf(branch))
	if err := h.mux.EnsureWindow(r.Context(), window, worktreePath); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"worktreePath": worktreePath,
		"branch":       branch,
		"tmuxWindow":   window,
	})
}

type featureNameRequest struct {
	RepoPath    string `json:"repoPath"`
	FeatureName string `json:"featureName"`
}

// DeleteFeature handles POST /api/delete-feature.
func (h *FeatureHandler) DeleteFeature(w http.ResponseWriter, r *http.Request) {
	var req featureNameRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.RepoPath == "" || req.FeatureName == "" {
		WriteDetail(w, http.StatusBadRequest, "repoPath and featureName are required")
		return
	}

	features, err := h.coordinator.ListFeatures(r.Context(), req.RepoPath)
	if err != nil {
		WriteError(w, err)
		return
	}
	for _, f := range features {
		if f.Name == req.FeatureName && f.IsMain {
			WriteDetail(w, http.StatusBadRequest, "Cannot delete the main repository branch")
			return
		}
	}

	window := terminal.WindowName(req.RepoPath, req.FeatureName)
	h.mux.KillWindow(r.Context(), window) // best-effort

	deleted, err := h.coordinator.DeleteFeature(r.Context(), req.RepoPath, req.FeatureName)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// SwitchFeature handles POST /api/switch-feature.
func (h *FeatureHandler) SwitchFeature(w http.ResponseWriter, r *http.Request) {
	var req featureNameRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.RepoPath == "" || req.FeatureName == "" {
		WriteDetail(w, http.StatusBadRequest, "repoPath and featureName are required")
		return
	}

	worktreePath, _, err := h.coordinator.CreateFeature(r.Context(), req.RepoPath, "feature/"+req.FeatureName, "")
	if err != nil {
		WriteError(w, err)
		return
	}

	window := terminal.WindowName(req.RepoPath, req.FeatureName)
	switched, hasRunningProcess, err := h.mux.SwitchToWindow(r.Context(), window, worktreePath)
	if err != nil {
		WriteError(w, nomaderr.Wrap(nomaderr.Other, "switch window", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"switched":          switched,
		"worktreePath":      worktreePath,
		"tmuxWindow":        window,
		"hasRunningProcess": hasRunningProcess,
	})
}

// ListBranches handles POST /api/list-branches.
func (h *FeatureHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	var req repoPathRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	branches, defaultBranch, err := h.coordinator.ListBranches(r.Context(), req.RepoPath)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"branches":      branches,
		"defaultBranch": defaultBranch,
	})
}

type attachBranchRequest struct {
	RepoPath   string `json:"repoPath"`
	BranchName string `json:"branchName"`
}

// AttachBranch handles POST /api/attach-branch.
func (h *FeatureHandler) AttachBranch(w http.ResponseWriter, r *http.Request) {
	var req attachBranchRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.RepoPath == "" || req.BranchName == "" {
		WriteDetail(w, http.StatusBadRequest, "repoPath and branchName are required")
		return
	}

	worktreePath, branch, err := h.coordinator.AttachBranch(r.Context(), req.RepoPath, req.BranchName)
	if err != nil {
		WriteError(w, err)
		return
	}

	window := terminal.WindowName(req.RepoPath, featureNameOf(branch))
	if err := h.mux.EnsureWindow(r.Context(), window, worktreePath); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"worktreePath": worktreePath,
		"branch":       branch,
		"tmuxWindow":   window,
	})
}

// featureNameOf derives the window-facing feature name from a branch
// name: its final path segment.
func featureNameOf(branch string) string {
	segments := strings.Split(branch, "/")
	return segments[len(segments)-1]
}
