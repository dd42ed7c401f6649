// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package terminal

// WindowInfo describes a single tmux window.
type WindowInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}
