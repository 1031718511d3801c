// Package agentconfig loads runctl.Options from a YAML file, for callers
// that prefer a config file over constructing Options in code (§6
// configuration table). This is an additive convenience; runctl.Controller
// and stream.Controller never read it themselves.
package agentconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/runctl"
)

// File is the on-disk shape of a config file. Duration fields are plain
// strings so the YAML stays human-writable ("30s", "5m") rather than raw
// nanosecond integers.
type File struct {
	MaxIterations     int     `yaml:"max_iterations"`
	ParallelToolCalls bool    `yaml:"parallel_tool_calls"`
	PerToolTimeout    string  `yaml:"per_tool_timeout"`
	OverallTimeout    string  `yaml:"overall_timeout"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	SystemInstruction string  `yaml:"system_instruction"`
	// ToolChoice is one of "auto", "required", "none", or a tool name,
	// matching modelclient.ToolChoice. Empty defaults to "auto".
	ToolChoice string `yaml:"tool_choice"`
	Verbose    bool   `yaml:"verbose"`
}

// Load reads a YAML file at path and converts it to runctl.Options.
func Load(path string) (runctl.Options, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is caller-supplied configuration, not untrusted input
	if err != nil {
		return runctl.Options{}, fmt.Errorf("agentconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse converts raw YAML bytes to runctl.Options.
func Parse(data []byte) (runctl.Options, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return runctl.Options{}, fmt.Errorf("agentconfig: parse: %w", err)
	}
	return f.toOptions()
}

func (f File) toOptions() (runctl.Options, error) {
	perTool, err := parseDuration(f.PerToolTimeout)
	if err != nil {
		return runctl.Options{}, fmt.Errorf("agentconfig: per_tool_timeout: %w", err)
	}
	overall, err := parseDuration(f.OverallTimeout)
	if err != nil {
		return runctl.Options{}, fmt.Errorf("agentconfig: overall_timeout: %w", err)
	}
	return runctl.Options{
		MaxIterations:     f.MaxIterations,
		ParallelToolCalls: f.ParallelToolCalls,
		PerToolTimeout:    perTool,
		OverallTimeout:    overall,
		Model:             f.Model,
		Temperature:       f.Temperature,
		MaxTokens:         f.MaxTokens,
		SystemInstruction: f.SystemInstruction,
		ToolChoice:        modelclient.ToolChoice(f.ToolChoice),
		Verbose:           f.Verbose,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
