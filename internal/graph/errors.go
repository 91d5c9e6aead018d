package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGraph classifies every error returned by Build.
	ErrGraph = errors.New("invalid asset graph")

	// ErrUnknownAsset is returned for queries naming an asset not in the graph.
	ErrUnknownAsset = errors.New("unknown asset")
)

// CycleError names every asset on one cycle. Path starts and ends with the
// same asset and follows upstream-to-downstream edges.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Is(target error) bool { return target == ErrGraph }

// UnknownUpstreamError reports an upstream reference to an unregistered asset.
type UnknownUpstreamError struct {
	Asset    string
	Upstream string
}

func (e *UnknownUpstreamError) Error() string {
	return fmt.Sprintf("asset %q depends on unknown asset %q", e.Asset, e.Upstream)
}

func (e *UnknownUpstreamError) Is(target error) bool { return target == ErrGraph }

type DuplicateAssetError struct {
	Asset string
}

func (e *DuplicateAssetError) Error() string {
	return fmt.Sprintf("asset %q is declared more than once", e.Asset)
}

func (e *DuplicateAssetError) Is(target error) bool { return target == ErrGraph }
