// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "errors"

var (
	errShapeNilMatrix = errors.New("models: adapter matrix is nil")
	errShapeMismatch  = errors.New("models: adapter matrix shape does not match declared rank/input_dim")
)
