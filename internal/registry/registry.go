// Package registry installs the atlas builder binary from an OCI image.
//
// The image carries the builder either in the binary-root layout
// (atlasbuilder/<platform>/<arch>/atlasbuilder[.exe]) or as a bare
// atlasbuilder[.exe] at the image root; multi-arch images are resolved to
// the running platform.
package registry

import (
	"context"
	"errors"
)

// Sentinel errors for registry operations.
var (
	// ErrImageNotFound is returned when the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRef is returned when the image reference is malformed.
	ErrInvalidRef = errors.New("invalid image reference")

	// ErrBinaryNotInImage is returned when no layer contains the builder.
	ErrBinaryNotInImage = errors.New("atlas builder binary not found in image")
)

// InstallResult describes an installed builder binary.
type InstallResult struct {
	// Path is where the binary was written.
	Path string

	// Digest is the installed image's content-addressable digest.
	Digest string

	// Size is the binary size in bytes.
	Size int64
}

// ClientConfig configures the registry client.
type ClientConfig struct {
	// Insecure allows HTTP (non-TLS) connections to registries.
	Insecure bool
}

// Client installs the builder binary from OCI registries.
type Client interface {
	// Install pulls ref for the running platform and writes the builder
	// binary under destRoot at its host path.
	Install(ctx context.Context, ref, destRoot string) (*InstallResult, error)
}
