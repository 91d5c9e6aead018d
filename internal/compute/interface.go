// Package compute holds the registry of built-in compute kinds. A kind turns
// the params of an asset declared in a project file into an
// asset.ComputeFunc.
package compute

import (
	"sidas/internal/asset"
)

type Kind interface {
	Name() string
	Title() string
	Description() string
	Options() []Option

	// Build validates params and returns the compute function. Upstreams are
	// the asset's declared upstream names, sorted.
	Build(params map[string]any, upstreams []string, env Env) (asset.ComputeFunc, error)
}

type Option struct {
	Name        string
	Description string
	Default     string
	Required    bool
}

// Env carries project-level context to kinds.
type Env struct {
	// BaseDir resolves relative paths; it is the project file's directory.
	BaseDir string
}
