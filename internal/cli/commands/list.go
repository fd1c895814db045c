package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/cli/output"
	"github.com/leapstack-labs/schemagen/internal/task"
	"github.com/leapstack-labs/schemagen/pkg/core"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured generators and their status",
		Long: `List every configured generator block with its output directory,
dependencies, and the status of its last run.

Output adapts to environment:
  - Terminal: table output
  - Piped/Scripted: markdown format

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all generators
  schemagen list

  # List generators as JSON
  schemagen list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

// generatorInfo is the JSON shape of one listed generator.
type generatorInfo struct {
	Name      string   `json:"name"`
	OutputDir string   `json:"output_dir"`
	DependsOn []string `json:"depends_on,omitempty"`
	Version   string   `json:"version,omitempty"`
	LastRun   string   `json:"last_run,omitempty"`
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer
	store := cmdCtx.Engine.Store()

	var infos []generatorInfo
	for _, name := range cfg.GeneratorNames() {
		gen := cfg.Generators[name]
		info := generatorInfo{
			Name:      name,
			OutputDir: gen.OutputDir,
			DependsOn: gen.DependsOn,
			Version:   gen.Version,
		}
		if last, err := store.GetLatestTaskRun(task.GenerateID(name)); err == nil && last != nil {
			info.LastRun = string(last.Status)
		}
		infos = append(infos, info)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(r, cfg.Tool.Name, cfg.Tool.Version, infos)
	case output.ModeMarkdown:
		return listMarkdown(r, cfg.Tool.Name, cfg.Tool.Version, infos)
	default:
		return listText(r, cfg.Tool.Name, cfg.Tool.Version, infos)
	}
}

func listText(r *output.Renderer, tool, version string, infos []generatorInfo) error {
	r.Printf("Generators (%d total), tool: %s\n", len(infos), describeTool(tool, version))

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			lastRunOrDash(info.LastRun),
			info.OutputDir,
			strings.Join(info.DependsOn, ", "),
		})
	}
	r.RenderTable([]string{"Name", "Last Run", "Output", "Depends On"}, rows)
	return nil
}

func listMarkdown(r *output.Renderer, tool, version string, infos []generatorInfo) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Generators (%d total)", len(infos))))
	r.Println("")
	r.Println(output.FormatKeyValue("Tool", describeTool(tool, version)))
	r.Println("")

	for _, info := range infos {
		r.Println(output.FormatHeader(2, info.Name))
		r.Println("")
		r.Println(output.FormatKeyValue("Output", info.OutputDir))
		if len(info.DependsOn) > 0 {
			r.Println(output.FormatKeyValue("Depends on", strings.Join(info.DependsOn, ", ")))
		}
		if info.Version != "" {
			r.Println(output.FormatKeyValue("Version override", info.Version))
		}
		r.Println(output.FormatKeyValue("Last run", lastRunOrDash(info.LastRun)))
		r.Println("")
	}
	return nil
}

func listJSON(r *output.Renderer, tool, version string, infos []generatorInfo) error {
	payload := struct {
		Tool       string          `json:"tool"`
		Version    string          `json:"version,omitempty"`
		Generators []generatorInfo `json:"generators"`
	}{Tool: tool, Version: version, Generators: infos}

	enc := json.NewEncoder(r.Out())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func describeTool(name, version string) string {
	if name == "" {
		return "(none configured)"
	}
	if version == "" {
		return name + " (unpinned, from PATH)"
	}
	return name + "@" + version
}

func lastRunOrDash(status string) string {
	if status == "" {
		return string(core.TaskRunStatusPending)
	}
	return status
}
