package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelModule(t *testing.T) {
	tests := []struct {
		name    string
		module  string
		channel string
		want    string
		wantErr bool
	}{
		{
			name:    "oss passes through",
			module:  "github.com/sqlc-dev/sqlc",
			channel: "oss",
			want:    "github.com/sqlc-dev/sqlc",
		},
		{
			name:    "empty channel passes through",
			module:  "github.com/xo/xo",
			channel: "",
			want:    "github.com/xo/xo",
		},
		{
			name:    "trial rewrites last element",
			module:  "github.com/sqlc-dev/sqlc",
			channel: "trial",
			want:    "github.com/sqlc-dev/sqlc-trial",
		},
		{
			name:    "enterprise keeps major version suffix",
			module:  "github.com/go-jet/jet/v2",
			channel: "enterprise",
			want:    "github.com/go-jet/jet-enterprise/v2",
		},
		{
			name:    "unknown channel",
			module:  "github.com/xo/xo",
			channel: "premium",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChannelModule(tt.module, tt.channel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupModule(t *testing.T) {
	t.Run("builtin tool", func(t *testing.T) {
		got, err := LookupModule("sqlc", "", "oss")
		require.NoError(t, err)
		assert.Equal(t, "github.com/sqlc-dev/sqlc", got)
	})

	t.Run("override skips table but keeps channel rewrite", func(t *testing.T) {
		got, err := LookupModule("mygen", "example.com/acme/mygen", "trial")
		require.NoError(t, err)
		assert.Equal(t, "example.com/acme/mygen-trial", got)
	})

	t.Run("unknown tool without override", func(t *testing.T) {
		_, err := LookupModule("mygen", "", "oss")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set tool.module")
	})

	t.Run("invalid module path", func(t *testing.T) {
		_, err := LookupModule("mygen", "not a module path", "oss")
		require.Error(t, err)
	})
}

func TestInstallPath(t *testing.T) {
	assert.Equal(t, "github.com/sqlc-dev/sqlc/cmd/sqlc", InstallPath("sqlc", "github.com/sqlc-dev/sqlc"))
	// Tools without a cmd path install the module root
	assert.Equal(t, "github.com/xo/xo", InstallPath("xo", "github.com/xo/xo"))
	// Unknown tools install the module root
	assert.Equal(t, "example.com/acme/mygen", InstallPath("mygen", "example.com/acme/mygen"))
}

func TestPinnedArtifacts_ShareVersion(t *testing.T) {
	coords := PinnedArtifacts("sqlc", "github.com/sqlc-dev/sqlc", "1.27.0",
		[]string{"cmd/sqlc-lint", "cmd/sqlc-lint"})

	require.Len(t, coords, 2, "duplicate companions collapse")
	assert.Equal(t, "github.com/sqlc-dev/sqlc/cmd/sqlc", coords[0].Module,
		"the tool's own command comes first")
	assert.Equal(t, "github.com/sqlc-dev/sqlc/cmd/sqlc-lint", coords[1].Module)
	for _, c := range coords {
		assert.Equal(t, "1.27.0", c.Version)
	}
}

func TestCoordinate_String(t *testing.T) {
	c := Coordinate{Module: "github.com/xo/xo", Version: "1.0.0"}
	assert.Equal(t, "github.com/xo/xo@v1.0.0", c.String())

	c.Version = ""
	assert.Equal(t, "github.com/xo/xo", c.String())
}

func TestResolver_ResolveVersion_ExactPin(t *testing.T) {
	// The lister must not be consulted for an exact pin
	r := NewResolver(func(_ context.Context, _ string) ([]string, error) {
		t.Fatal("lister should not be called for exact pins")
		return nil, nil
	}, nil)

	got, err := r.ResolveVersion(context.Background(), "github.com/xo/xo", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", got)

	got, err = r.ResolveVersion(context.Background(), "github.com/xo/xo", "v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", got)
}

func TestResolver_ResolveVersion_Constraint(t *testing.T) {
	lister := func(_ context.Context, _ string) ([]string, error) {
		return []string{"v2.9.0", "v2.10.1", "v2.11.0", "v3.0.0", "not-a-version"}, nil
	}
	r := NewResolver(lister, nil)

	got, err := r.ResolveVersion(context.Background(), "github.com/go-jet/jet/v2", ">=2.10 <3")
	require.NoError(t, err)
	assert.Equal(t, "2.11.0", got)
}

func TestResolver_ResolveVersion_NoMatch(t *testing.T) {
	lister := func(_ context.Context, _ string) ([]string, error) {
		return []string{"v1.0.0"}, nil
	}
	r := NewResolver(lister, nil)

	_, err := r.ResolveVersion(context.Background(), "github.com/xo/xo", ">=2.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "satisfies constraint")
}

func TestResolver_ResolveVersion_Errors(t *testing.T) {
	r := NewResolver(func(_ context.Context, _ string) ([]string, error) {
		return nil, fmt.Errorf("proxy unreachable")
	}, nil)

	_, err := r.ResolveVersion(context.Background(), "github.com/xo/xo", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no version pinned")

	_, err = r.ResolveVersion(context.Background(), "github.com/xo/xo", ">=2.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy unreachable")
}

func TestInstaller_EnsureTool_InstallsAndCaches(t *testing.T) {
	cache := t.TempDir()
	inst := NewInstaller(cache, nil)

	binName := "mygen"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}

	var installs int
	inst.runGoInstall = func(_ context.Context, gobin, pkg string) error {
		installs++
		assert.Equal(t, "example.com/acme/mygen@v1.0.0", pkg)
		return os.WriteFile(filepath.Join(gobin, binName), []byte("#!/bin/true"), 0o755)
	}

	coords := []Coordinate{{Module: "example.com/acme/mygen", Version: "1.0.0"}}

	path, err := inst.EnsureTool(context.Background(), "mygen", coords)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "mygen@1.0.0", binName), path)
	assert.Equal(t, 1, installs)

	// Second call hits the cache
	_, err = inst.EnsureTool(context.Background(), "mygen", coords)
	require.NoError(t, err)
	assert.Equal(t, 1, installs)
}

func TestInstaller_EnsureTool_InstallsCompanions(t *testing.T) {
	cache := t.TempDir()
	inst := NewInstaller(cache, nil)

	binName := "mygen"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}

	var pkgs []string
	inst.runGoInstall = func(_ context.Context, gobin, pkg string) error {
		pkgs = append(pkgs, pkg)
		return os.WriteFile(filepath.Join(gobin, binName), []byte("#!/bin/true"), 0o755)
	}

	coords := PinnedArtifacts("mygen", "example.com/acme/mygen", "1.0.0",
		[]string{"cmd/mygen-introspect"})

	_, err := inst.EnsureTool(context.Background(), "mygen", coords)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"example.com/acme/mygen@v1.0.0",
		"example.com/acme/mygen/cmd/mygen-introspect@v1.0.0",
	}, pkgs, "every companion installs at the pinned version")
}

func TestInstaller_EnsureTool_InstallProducesNothing(t *testing.T) {
	inst := NewInstaller(t.TempDir(), nil)
	inst.runGoInstall = func(_ context.Context, _, _ string) error { return nil }

	_, err := inst.EnsureTool(context.Background(), "mygen", []Coordinate{{Module: "example.com/acme/mygen", Version: "1.0.0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no binary")
}

func TestInstaller_EnsureTool_UnpinnedUsesPATH(t *testing.T) {
	dir := t.TempDir()
	binName := "fakegen"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, binName), []byte("#!/bin/true"), 0o755))
	t.Setenv("PATH", dir)

	inst := NewInstaller(t.TempDir(), nil)
	path, err := inst.EnsureTool(context.Background(), "fakegen", []Coordinate{{Module: "example.com/fakegen"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, binName), path)
}
