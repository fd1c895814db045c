package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionLister returns the available versions of a module, newest last.
// The default implementation shells out to the Go module proxy machinery.
type VersionLister func(ctx context.Context, modulePath string) ([]string, error)

// Resolver pins tool versions. An exact version passes through; a semver
// constraint resolves to the highest available version satisfying it.
type Resolver struct {
	list   VersionLister
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil lister uses go list against the
// module proxy; a nil logger discards.
func NewResolver(list VersionLister, logger *slog.Logger) *Resolver {
	if list == nil {
		list = goListVersions
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{list: list, logger: logger}
}

// ResolveVersion pins a version expression against a module.
// An exact semver version is returned as-is without consulting the proxy.
func (r *Resolver) ResolveVersion(ctx context.Context, modulePath, expr string) (string, error) {
	if expr == "" {
		return "", fmt.Errorf("no version pinned for %s: set tool.version", modulePath)
	}

	// Exact pin: nothing to resolve
	if v, err := semver.StrictNewVersion(strings.TrimPrefix(expr, "v")); err == nil {
		return v.String(), nil
	}

	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %q: %w", expr, err)
	}

	available, err := r.list(ctx, modulePath)
	if err != nil {
		return "", fmt.Errorf("failed to list versions of %s: %w", modulePath, err)
	}

	var best *semver.Version
	for _, raw := range available {
		v, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
		if err != nil {
			// Skip non-semver tags
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}

	if best == nil {
		return "", fmt.Errorf("no version of %s satisfies constraint %q (%d available)",
			modulePath, expr, len(available))
	}

	r.logger.Debug("pinned tool version",
		slog.String("module", modulePath),
		slog.String("constraint", expr),
		slog.String("version", best.String()))

	return best.String(), nil
}

// goListVersions queries the module proxy via `go list -m -versions`.
// Output format: "<module> v1.0.0 v1.1.0 ...".
func goListVersions(ctx context.Context, modulePath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-m", "-versions", modulePath)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("go list failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("go list failed: %w", err)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 {
		return nil, fmt.Errorf("no published versions for %s", modulePath)
	}
	return fields[1:], nil
}
