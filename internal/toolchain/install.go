package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Installer materializes pinned generator binaries in the tool cache.
// Layout: <cacheDir>/<name>@<version>/<name>[.exe]
type Installer struct {
	cacheDir string
	logger   *slog.Logger

	// runGoInstall is swappable for tests
	runGoInstall func(ctx context.Context, gobin, pkg string) error
}

// NewInstaller creates an installer rooted at cacheDir. An empty cacheDir
// defaults to ~/.cache/schemagen/tools.
func NewInstaller(cacheDir string, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Installer{
		cacheDir:     cacheDir,
		logger:       logger,
		runGoInstall: goInstall,
	}
}

// CacheDir returns the effective tool cache directory.
func (i *Installer) CacheDir() (string, error) {
	if i.cacheDir != "" {
		return i.cacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return filepath.Join(base, "schemagen", "tools"), nil
}

// BinaryPath returns the cache location of a pinned tool binary.
func (i *Installer) BinaryPath(name, version string) (string, error) {
	cache, err := i.CacheDir()
	if err != nil {
		return "", err
	}
	bin := name
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	return filepath.Join(cache, fmt.Sprintf("%s@%s", name, version), bin), nil
}

// EnsureTool returns the path to the pinned tool binary, installing every
// listed coordinate into the cache slot when the binary is absent. The first
// coordinate is the tool's own command; the rest are companion commands
// pinned to the same version. When no version is pinned the binary is looked
// up on PATH instead.
func (i *Installer) EnsureTool(ctx context.Context, name string, coords []Coordinate) (string, error) {
	if len(coords) == 0 {
		return "", fmt.Errorf("no coordinates for tool %q", name)
	}

	if coords[0].Version == "" {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("tool %q not found on PATH and no version pinned: %w", name, err)
		}
		return path, nil
	}

	binPath, err := i.BinaryPath(name, coords[0].Version)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(binPath); err == nil {
		i.logger.Debug("tool cached", slog.String("tool", name), slog.String("path", binPath))
		return binPath, nil
	}

	gobin := filepath.Dir(binPath)
	if err := os.MkdirAll(gobin, 0o750); err != nil {
		return "", fmt.Errorf("failed to create tool cache directory: %w", err)
	}

	for _, coord := range coords {
		pkg := coord.Module + "@v" + strings.TrimPrefix(coord.Version, "v")
		i.logger.Info("installing tool", slog.String("tool", name), slog.String("package", pkg))

		if err := i.runGoInstall(ctx, gobin, pkg); err != nil {
			return "", fmt.Errorf("failed to install %s: %w", pkg, err)
		}
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf("install of %s produced no binary at %s", coords[0], binPath)
	}

	return binPath, nil
}

// goInstall runs `go install <pkg>` with GOBIN pointed at the cache slot.
func goInstall(ctx context.Context, gobin, pkg string) error {
	cmd := exec.CommandContext(ctx, "go", "install", pkg)
	cmd.Env = append(os.Environ(), "GOBIN="+gobin)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
