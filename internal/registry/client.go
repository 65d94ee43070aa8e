package registry

import (
	"archive/tar"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/jmgilman/atlaspack/internal/binary"
)

// client implements the Client interface using go-containerregistry.
type client struct {
	config ClientConfig
}

// NewClient creates a new registry client with the given configuration.
func NewClient(cfg ClientConfig) Client {
	return &client{config: cfg}
}

// Install pulls the image and extracts the builder for the host platform.
func (c *client) Install(ctx context.Context, ref, destRoot string) (*InstallResult, error) {
	img, err := c.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to get image digest: %w", err)
	}

	dest := binary.HostPath(destRoot)
	size, err := extractBinary(img, dest, candidates(runtime.GOOS, runtime.GOARCH))
	if err != nil {
		return nil, err
	}

	return &InstallResult{
		Path:   dest,
		Digest: digest.String(),
		Size:   size,
	}, nil
}

func (c *client) fetch(ctx context.Context, ref string) (v1.Image, error) {
	var nameOpts []name.Option
	if c.config.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}

	parsedRef, err := name.ParseReference(ref, nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRef, err)
	}

	opts := []remote.Option{
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithContext(ctx),
		// Builders are native executables; pick the host's variant of
		// multi-arch images.
		remote.WithPlatform(v1.Platform{
			Architecture: runtime.GOARCH,
			OS:           runtime.GOOS,
		}),
	}

	if c.config.Insecure {
		// Clone http.DefaultTransport to preserve proxy, keep-alive, and timeout settings.
		var insecureTransport *http.Transport
		if defaultTransport, ok := http.DefaultTransport.(*http.Transport); ok {
			insecureTransport = defaultTransport.Clone()
		} else {
			insecureTransport = &http.Transport{}
		}
		insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // intentional for insecure mode
		opts = append(opts, remote.WithTransport(insecureTransport))
	}

	img, err := remote.Image(parsedRef, opts...)
	if err != nil {
		return nil, c.mapError(err)
	}
	return img, nil
}

// candidates lists the in-image paths that may hold the builder, in
// preference order.
func candidates(goos, goarch string) []string {
	return []string{
		filepath.ToSlash(binary.RelPath(goos, goarch)),
		binary.FileName(goos),
	}
}

// extractBinary scans the flattened image filesystem for the first matching
// candidate and writes it to dest atomically.
func extractBinary(img v1.Image, dest string, want []string) (int64, error) {
	rank := make(map[string]int, len(want))
	for i, p := range want {
		rank[p] = i
	}

	rc := mutate.Extract(img)
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create binary directory: %w", err)
	}

	// A later, better-ranked match replaces an earlier one.
	best := len(want)
	var tmpPath string
	var size int64
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read image filesystem: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		r, ok := rank[path.Clean(strings.TrimPrefix(hdr.Name, "/"))]
		if !ok || r >= best {
			continue
		}

		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
		tmpPath, size, err = writeTemp(filepath.Dir(dest), tr)
		if err != nil {
			return 0, err
		}
		best = r
	}

	if tmpPath == "" {
		return 0, fmt.Errorf("%w: looked for %s", ErrBinaryNotInImage, strings.Join(want, ", "))
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("install binary: %w", err)
	}
	tmpPath = ""
	return size, nil
}

func writeTemp(dir string, r io.Reader) (string, int64, error) {
	f, err := os.CreateTemp(dir, ".atlasbuilder-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp binary: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write binary: %w", err)
	}
	if err := f.Chmod(0o755); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("chmod binary: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("close binary: %w", err)
	}
	return f.Name(), n, nil
}

// mapError converts go-containerregistry errors to sentinel errors.
func (c *client) mapError(err error) error {
	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		for _, diagnostic := range transportErr.Errors {
			switch diagnostic.Code {
			case transport.UnauthorizedErrorCode:
				return fmt.Errorf("%w: %s", ErrUnauthorized, err)
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode:
				return fmt.Errorf("%w: %s", ErrImageNotFound, err)
			}
		}
		switch transportErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrImageNotFound, err)
		}
	}

	return fmt.Errorf("registry error: %w", err)
}
