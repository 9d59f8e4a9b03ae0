package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// bannerOut receives the verbose banners; a variable so tests can capture it.
var bannerOut io.Writer = os.Stderr

const (
	rule     = "========================================"
	thinRule = "----------------------------------------"
)

// PrintPreExecution describes the process about to start.
func PrintPreExecution(fullCommand string, config *Config) {
	w := bannerOut
	title := "Process"
	if config.DryRun {
		title = "Process (DRY RUN)"
	}
	fmt.Fprintf(w, "%s\n%s\n%s\n", rule, title, rule)

	fields := [][2]string{
		{"Command", fullCommand},
		{"Dir", config.Dir},
		{"Input", config.InputFile},
		{"Output", config.OutputFile},
		{"Stderr", config.StderrFile},
	}
	if len(config.Env) > 0 {
		names := make([]string, 0, len(config.Env))
		for _, kv := range config.Env {
			name, _, _ := strings.Cut(kv, "=")
			names = append(names, name)
		}
		fields = append(fields, [2]string{"Env", strings.Join(names, ", ")})
	}
	if config.Timeout > 0 {
		fields = append(fields, [2]string{"Timeout", config.Timeout.String()})
	}
	for _, f := range fields {
		if f[1] != "" {
			fmt.Fprintf(w, "%-8s %s\n", f[0]+":", f[1])
		}
	}
	fmt.Fprintln(w, thinRule)

	if config.DryRun {
		fmt.Fprintln(w, "[DRY RUN] not started")
	} else {
		fmt.Fprintln(w, "Output:")
	}
	fmt.Fprintln(w, thinRule)
}

// PrintPostExecution reports how the process ended.
func PrintPostExecution(status Status, exitCode int, executionTime int64, dryRun bool) {
	w := bannerOut
	fmt.Fprintln(w, thinRule)
	if dryRun {
		fmt.Fprintln(w, "Result (DRY RUN, simulated):")
	} else {
		fmt.Fprintln(w, "Result:")
	}
	fmt.Fprintf(w, "  status     %s\n", status)
	fmt.Fprintf(w, "  exit code  %d\n", exitCode)
	fmt.Fprintf(w, "  time       %d ms\n", executionTime)
	fmt.Fprintln(w, rule)
}
