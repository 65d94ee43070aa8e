package registry

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/atlaspack/internal/binary"
)

// layer builds an image layer holding files (path -> content).
func layer(t *testing.T, files map[string]string) v1.Layer {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for p, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     p,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	data := buf.Bytes()
	l, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
	require.NoError(t, err)
	return l
}

// pushImage starts an in-memory registry, pushes an image made of layers,
// and returns its reference.
func pushImage(t *testing.T, layers ...v1.Layer) string {
	t.Helper()

	server := httptest.NewServer(registry.New())
	t.Cleanup(server.Close)

	img, err := mutate.AppendLayers(empty.Image, layers...)
	require.NoError(t, err)

	regHost := strings.TrimPrefix(server.URL, "http://")
	refStr := regHost + "/tools/atlasbuilder:latest"
	ref, err := name.ParseReference(refStr)
	require.NoError(t, err)
	require.NoError(t, remote.Write(ref, img))

	return refStr
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{})
	require.NotNil(t, client)
}

func TestClient_Install(t *testing.T) {
	ctx := context.Background()
	hostRel := filepath.ToSlash(binary.RelPath(runtime.GOOS, runtime.GOARCH))

	t.Run("installs binary from binary-root layout", func(t *testing.T) {
		ref := pushImage(t, layer(t, map[string]string{
			hostRel:                       "native builder",
			"atlasbuilder/other/x/readme": "ignored",
		}))
		dest := t.TempDir()

		result, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, ref, dest)

		require.NoError(t, err)
		assert.Equal(t, binary.HostPath(dest), result.Path)
		assert.True(t, strings.HasPrefix(result.Digest, "sha256:"))
		assert.Equal(t, int64(len("native builder")), result.Size)

		//nolint:gosec // G304: path is inside the test temp directory
		data, err := os.ReadFile(result.Path)
		require.NoError(t, err)
		assert.Equal(t, "native builder", string(data))

		if runtime.GOOS != "windows" {
			info, err := os.Stat(result.Path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		}
		_, err = binary.Locate(dest)
		assert.NoError(t, err)
	})

	t.Run("accepts bare binary at image root", func(t *testing.T) {
		ref := pushImage(t, layer(t, map[string]string{
			"./" + binary.FileName(runtime.GOOS): "bare builder",
		}))
		dest := t.TempDir()

		result, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, ref, dest)

		require.NoError(t, err)
		//nolint:gosec // G304: path is inside the test temp directory
		data, err := os.ReadFile(result.Path)
		require.NoError(t, err)
		assert.Equal(t, "bare builder", string(data))
	})

	t.Run("prefers layout path over bare binary", func(t *testing.T) {
		ref := pushImage(t,
			layer(t, map[string]string{hostRel: "layout builder"}),
			layer(t, map[string]string{binary.FileName(runtime.GOOS): "bare builder"}),
		)
		dest := t.TempDir()

		result, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, ref, dest)

		require.NoError(t, err)
		//nolint:gosec // G304: path is inside the test temp directory
		data, err := os.ReadFile(result.Path)
		require.NoError(t, err)
		assert.Equal(t, "layout builder", string(data))
	})

	t.Run("overwrites an existing binary", func(t *testing.T) {
		ref := pushImage(t, layer(t, map[string]string{hostRel: "new builder"}))
		dest := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Dir(binary.HostPath(dest)), 0o755))
		require.NoError(t, os.WriteFile(binary.HostPath(dest), []byte("old"), 0o755))

		_, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, ref, dest)

		require.NoError(t, err)
		//nolint:gosec // G304: path is inside the test temp directory
		data, err := os.ReadFile(binary.HostPath(dest))
		require.NoError(t, err)
		assert.Equal(t, "new builder", string(data))
	})

	t.Run("returns ErrBinaryNotInImage when no layer has it", func(t *testing.T) {
		ref := pushImage(t, layer(t, map[string]string{"etc/motd": "hello"}))
		dest := t.TempDir()

		_, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, ref, dest)

		require.ErrorIs(t, err, ErrBinaryNotInImage)
		assert.NoFileExists(t, binary.HostPath(dest))
	})

	t.Run("returns ErrInvalidRef for malformed reference", func(t *testing.T) {
		_, err := NewClient(ClientConfig{}).Install(ctx, ":::invalid:::reference", t.TempDir())

		assert.ErrorIs(t, err, ErrInvalidRef)
	})

	t.Run("returns ErrImageNotFound for missing image", func(t *testing.T) {
		server := httptest.NewServer(registry.New())
		defer server.Close()

		regHost := strings.TrimPrefix(server.URL, "http://")
		_, err := NewClient(ClientConfig{Insecure: true}).Install(ctx, regHost+"/nonexistent/image:latest", t.TempDir())

		assert.ErrorIs(t, err, ErrImageNotFound)
	})
}

func TestClient_mapError(t *testing.T) {
	c := &client{}

	tests := []struct {
		name string
		err  *transport.Error
		want error
	}{
		{
			name: "UNAUTHORIZED code",
			err: &transport.Error{
				StatusCode: http.StatusUnauthorized,
				Errors:     []transport.Diagnostic{{Code: transport.UnauthorizedErrorCode}},
			},
			want: ErrUnauthorized,
		},
		{name: "401 status", err: &transport.Error{StatusCode: http.StatusUnauthorized}, want: ErrUnauthorized},
		{name: "403 status", err: &transport.Error{StatusCode: http.StatusForbidden}, want: ErrUnauthorized},
		{
			name: "MANIFEST_UNKNOWN code",
			err: &transport.Error{
				StatusCode: http.StatusNotFound,
				Errors:     []transport.Diagnostic{{Code: transport.ManifestUnknownErrorCode}},
			},
			want: ErrImageNotFound,
		},
		{
			name: "NAME_UNKNOWN code",
			err: &transport.Error{
				StatusCode: http.StatusNotFound,
				Errors:     []transport.Diagnostic{{Code: transport.NameUnknownErrorCode}},
			},
			want: ErrImageNotFound,
		},
		{name: "404 status", err: &transport.Error{StatusCode: http.StatusNotFound}, want: ErrImageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.mapError(tt.err), tt.want)
		})
	}

	t.Run("wraps unknown errors", func(t *testing.T) {
		unknownErr := errors.New("some unknown error")
		result := c.mapError(unknownErr)

		assert.Contains(t, result.Error(), "registry error")
		assert.ErrorIs(t, result, unknownErr)
	})
}
