// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the default backends, namely "fusing" and "fake".
//
// To use it simply include:
//
//	import _ "github.com/gomlx/fusegraph/backends/default"
package _default

import (
	_ "github.com/gomlx/fusegraph/backends/fake"
	_ "github.com/gomlx/fusegraph/backends/fusing"
)
