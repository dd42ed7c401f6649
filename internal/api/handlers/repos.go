// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/nomadflowcode/nomadflow/internal/worktree"
)

// RepoHandler serves the repository endpoints of the coordinator API.
type RepoHandler struct {
	coordinator *worktree.Coordinator
}

func NewRepoHandler(c *worktree.Coordinator) *RepoHandler {
	return &RepoHandler{coordinator: c}
}

// ListRepos handles POST /api/list-repos.
func (h *RepoHandler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.coordinator.ListRepositories(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"repos": repos})
}

type cloneRepoRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// CloneRepo handles POST /api/clone-repo.
func (h *RepoHandler) CloneRepo(w http.ResponseWriter, r *http.Request) {
	var req cloneRepoRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.URL == "" {
		WriteDetail(w, http.StatusBadRequest, "url is required")
		return
	}

	repo, err := h.coordinator.CloneRepository(r.Context(), req.URL, req.Token, req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":   repo.Name,
		"path":   repo.Path,
		"branch": repo.Branch,
	})
}
