//go:build tools
// +build tools

// Package tools tracks the code generators used by go:generate so
// go.mod and go.sum stay in sync with them.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
