// Package runner invokes external processes for the build lifecycle: the
// schema code generator itself and the compile step. The generator's
// configuration payload is serialized and handed over verbatim; this package
// never inspects what the generator does with it.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// stderrTailLimit bounds how much generator stderr is kept for error reporting.
const stderrTailLimit = 4096

// Invocation describes one generator process launch.
type Invocation struct {
	// Binary is the resolved generator executable path
	Binary string

	// Name is the generator block name, used for temp file naming and logs
	Name string

	// Spec is the opaque configuration payload passed through to the generator
	Spec map[string]any

	// OutputDir is passed to the generator as its destination
	OutputDir string

	// Args appends extra arguments after the standard ones
	Args []string

	// Env adds environment variables on top of the inherited environment
	Env map[string]string

	// Dir is the working directory (the project root)
	Dir string

	// Timeout bounds the process; zero means no extra bound beyond ctx
	Timeout time.Duration
}

// Runner launches lifecycle processes.
type Runner struct {
	logger *slog.Logger
}

// New creates a runner. A nil logger discards.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger}
}

// Generate runs the generator for one invocation. The spec payload is written
// to a temporary YAML file and passed via --config; the file is removed when
// the process exits.
func (r *Runner) Generate(ctx context.Context, inv Invocation) error {
	specFile, err := writeSpecFile(inv.Name, inv.Spec)
	if err != nil {
		return err
	}
	defer os.Remove(specFile)

	if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	args := []string{"--config", specFile, "--out", inv.OutputDir}
	args = append(args, inv.Args...)

	r.logger.Debug("invoking generator",
		slog.String("generator", inv.Name),
		slog.String("binary", inv.Binary),
		slog.String("config", specFile))

	cmd := exec.CommandContext(ctx, inv.Binary, args...)
	cmd.Dir = inv.Dir
	cmd.Env = processEnv(inv.Env)

	// Generator output goes to schemagen's stderr line by line with the
	// block name in front, so interleaved parallel runs stay attributable.
	stdout := &prefixWriter{w: os.Stderr, prefix: "[" + inv.Name + "] "}
	stderr := &prefixWriter{w: os.Stderr, prefix: "[" + inv.Name + "] "}
	tail := &tailWriter{limit: stderrTailLimit}
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	stdout.flush()
	stderr.flush()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("generator %q timed out after %s", inv.Name, elapsed.Round(time.Millisecond))
		}
		if ee, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("generator %q failed with exit code %d: %s",
				inv.Name, ee.ExitCode(), tail.String())
		}
		return fmt.Errorf("generator %q failed to start: %w", inv.Name, err)
	}

	r.logger.Debug("generator finished",
		slog.String("generator", inv.Name),
		slog.Duration("elapsed", elapsed))

	return nil
}

// RunCommand runs an arbitrary lifecycle command (the compile step) in dir.
func (r *Runner) RunCommand(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	r.logger.Debug("running command", slog.Any("argv", argv), slog.String("dir", dir))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s failed with exit code %d", argv[0], ee.ExitCode())
		}
		return fmt.Errorf("%s failed to start: %w", argv[0], err)
	}
	return nil
}

// processEnv returns the inherited environment minus schemagen's own
// SCHEMAGEN_* variables, extended by the block's entries.
func processEnv(extra map[string]string) []string {
	environ := os.Environ()
	env := make([]string, 0, len(environ)+len(extra))
	for _, kv := range environ {
		if strings.HasPrefix(kv, "SCHEMAGEN_") {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// writeSpecFile serializes the opaque spec payload to a temp YAML file.
func writeSpecFile(name string, spec map[string]any) (string, error) {
	if spec == nil {
		spec = map[string]any{}
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to serialize generator config: %w", err)
	}

	f, err := os.CreateTemp("", fmt.Sprintf("schemagen-%s-*.yaml", name))
	if err != nil {
		return "", fmt.Errorf("failed to create generator config file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write generator config file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close generator config file: %w", err)
	}

	return filepath.Clean(f.Name()), nil
}

// prefixWriter re-emits process output one line at a time with a fixed
// prefix. Partial lines stay buffered until flush.
type prefixWriter struct {
	w      io.Writer
	prefix string
	buf    bytes.Buffer
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write
			w.buf.WriteString(line)
			break
		}
		fmt.Fprintf(w.w, "%s%s", w.prefix, line)
	}
	return len(p), nil
}

func (w *prefixWriter) flush() {
	if w.buf.Len() > 0 {
		fmt.Fprintf(w.w, "%s%s\n", w.prefix, w.buf.String())
		w.buf.Reset()
	}
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		trimmed := w.buf.Bytes()[w.buf.Len()-w.limit:]
		var nb bytes.Buffer
		nb.Write(trimmed)
		w.buf = nb
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	s := bytes.TrimSpace(w.buf.Bytes())
	if len(s) == 0 {
		return "(no stderr output)"
	}
	return string(s)
}

