package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zinc-sig/otterbox/internal/runner"
)

func TestResolveBaseImage(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		image  string
		want   BaseImage
	}{
		{name: "grader image", marker: "ucbdsinfo/otter-grader", want: Provisioned},
		{name: "unset marker", marker: "", want: Foreign},
		{name: "other image", marker: "ubuntu:22.04", want: Foreign},
		{name: "custom grader image", marker: "registry/grader", image: "registry/grader", want: Provisioned},
		{name: "default image against custom", marker: "ucbdsinfo/otter-grader", image: "registry/grader", want: Foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string {
				if key != MarkerVar {
					t.Errorf("unexpected variable lookup %q", key)
				}
				return tt.marker
			}
			if got := ResolveBaseImage(getenv, tt.image); got != tt.want {
				t.Errorf("ResolveBaseImage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPlanBranchesAreExclusive(t *testing.T) {
	opts := DefaultOptions()
	foreign := NewPlan(Foreign, opts)
	provisioned := NewPlan(Provisioned, opts)

	for _, k := range []StepKind{KindOSPackages, KindDownload, KindInstaller} {
		if !foreign.HasKind(k) {
			t.Errorf("foreign plan missing %s step", k)
		}
		if provisioned.HasKind(k) {
			t.Errorf("provisioned plan must not contain %s step", k)
		}
	}
	for _, k := range []StepKind{KindEnvironment, KindShellInit} {
		if !foreign.HasKind(k) || !provisioned.HasKind(k) {
			t.Errorf("both plans must contain %s step", k)
		}
	}

	downloads := 0
	for _, s := range foreign.Steps {
		if s.Kind == KindDownload {
			downloads++
		}
	}
	if downloads != 2 {
		t.Errorf("foreign plan has %d downloads, want 2", downloads)
	}

	if got, want := foreign.Steps[len(foreign.Steps)-1].Kind, KindShellInit; got != want {
		t.Errorf("last step = %s, want %s", got, want)
	}
}

func TestRenderSetupBranchesOnce(t *testing.T) {
	script, err := RenderSetup(DefaultOptions())
	if err != nil {
		t.Fatalf("RenderSetup() error = %v", err)
	}
	s := string(script)

	if n := strings.Count(s, `"${BASE_IMAGE}"`); n != 1 {
		t.Errorf("marker tested %d times, want 1", n)
	}
	if !strings.HasPrefix(s, "#!/usr/bin/env bash\n") {
		t.Errorf("missing shebang:\n%s", s)
	}

	fi := strings.Index(s, "\nfi\n")
	apt := strings.Index(s, "apt-get install -y wget")
	env := strings.Index(s, "mamba env create")
	if fi < 0 || apt < 0 || env < 0 {
		t.Fatalf("script missing expected sections:\n%s", s)
	}
	if apt > fi {
		t.Error("OS package install must be inside the marker branch")
	}
	if env < fi {
		t.Error("environment creation must follow the marker branch")
	}
}

func TestRenderRunAutograder(t *testing.T) {
	tests := []struct {
		engine  Engine
		handOff string
	}{
		{engine: EngineOtter, handOff: "python /autograder/source/run_otter.py"},
		{engine: EngineOtterbox, handOff: "otterbox run /autograder"},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Engine = tt.engine
			script, err := RenderRunAutograder(opts)
			if err != nil {
				t.Fatalf("RenderRunAutograder() error = %v", err)
			}
			s := string(script)
			for _, want := range []string{
				`if [ "${BASE_IMAGE}" != "ucbdsinfo/otter-grader" ]; then`,
				"source /root/mambaforge/etc/profile.d/conda.sh",
				"source /opt/conda/etc/profile.d/conda.sh",
				"mamba activate otter-env\n" + tt.handOff + "\n",
			} {
				if !strings.Contains(s, want) {
					t.Errorf("run_autograder missing %q:\n%s", want, s)
				}
			}
		})
	}
}

func TestRenderMatchesSampleBundle(t *testing.T) {
	renders := map[string]func(Options) ([]byte, error){
		"setup.sh":       RenderSetup,
		"run_autograder": RenderRunAutograder,
		"run_otter.py":   RenderEntryScript,
	}
	for name, render := range renders {
		got, err := render(DefaultOptions())
		if err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
		want, err := os.ReadFile(filepath.Join("..", "..", "testdata", "bundle", name))
		if err != nil {
			t.Fatalf("read sample %s: %v", name, err)
		}
		if string(got) != string(want) {
			t.Errorf("%s differs from sample bundle\ngot:\n%s\nwant:\n%s", name, got, want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.EnvName = ""
	if _, err := RenderSetup(opts); err == nil {
		t.Error("expected error for missing environment name")
	}

	opts = DefaultOptions()
	opts.Engine = "docker"
	if err := opts.Validate(); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestExecutorStopsAtFirstFailure(t *testing.T) {
	var ran []string
	fake := func(ctx context.Context, config *runner.Config) (*runner.Result, error) {
		ran = append(ran, config.Args[1])
		code := 0
		status := runner.StatusSuccess
		if strings.Contains(config.Args[1], "wkhtmltopdf") {
			code, status = 100, runner.StatusFailed
		}
		return &runner.Result{ExitCode: code, Status: status}, nil
	}

	e := NewExecutor(nil)
	e.Exec = fake
	err := e.Run(context.Background(), NewPlan(Foreign, DefaultOptions()))
	if !errors.Is(err, ErrStepFailed) {
		t.Fatalf("Run() error = %v, want ErrStepFailed", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran %d steps, want 2 (packages, then the failing download)", len(ran))
	}
	for _, script := range ran {
		if !strings.HasPrefix(script, "set -e\n") {
			t.Errorf("step script should stop on first error: %q", script)
		}
	}
}

// writeStub installs a fake executable that records its invocation.
func writeStub(t *testing.T, dir, name, body string) {
	t.Helper()
	script := "#!/bin/sh\necho \"" + name + " $*\" >> \"$STUB_LOG\"\n" + body
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestSetupScriptAgainstStubs(t *testing.T) {
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}

	root := t.TempDir()
	stubs := filepath.Join(root, "bin")
	if err := os.MkdirAll(stubs, 0755); err != nil {
		t.Fatal(err)
	}
	writeStub(t, stubs, "apt-get", "")
	writeStub(t, stubs, "mamba", "")
	writeStub(t, stubs, "wget", `while [ $# -gt 0 ]; do
  if [ "$1" = "-O" ]; then : > "$2"; fi
  shift
done
`)

	opts := DefaultOptions()
	opts.AutograderDir = filepath.Join(root, "autograder")
	opts.CondaPrefix = filepath.Join(root, "conda")
	if err := os.MkdirAll(filepath.Join(opts.AutograderDir, "source"), 0755); err != nil {
		t.Fatal(err)
	}
	script, err := RenderSetup(opts)
	if err != nil {
		t.Fatal(err)
	}
	scriptPath := filepath.Join(root, "setup.sh")
	if err := os.WriteFile(scriptPath, script, 0755); err != nil {
		t.Fatal(err)
	}

	run := func(marker string) string {
		t.Helper()
		logPath := filepath.Join(root, "stub-"+strings.ReplaceAll(marker, "/", "_")+".log")
		_ = os.Remove(logPath)
		result, err := runner.Execute(context.Background(), &runner.Config{
			Command: bash,
			Args:    []string{scriptPath},
			Env: []string{
				"PATH=" + stubs + ":" + os.Getenv("PATH"),
				"HOME=" + root,
				"STUB_LOG=" + logPath,
				MarkerVar + "=" + marker,
			},
		})
		if err != nil {
			t.Fatalf("setup.sh error = %v", err)
		}
		if result.ExitCode != 0 {
			t.Fatalf("setup.sh exit code = %d", result.ExitCode)
		}
		log, _ := os.ReadFile(logPath)
		return string(log)
	}

	foreign := run("ubuntu:22.04")
	if !strings.Contains(foreign, "apt-get install -y wget") {
		t.Errorf("foreign run did not install OS packages:\n%s", foreign)
	}
	if !strings.Contains(foreign, "mamba env create") {
		t.Errorf("foreign run did not create environment:\n%s", foreign)
	}

	provisioned := run(DefaultGraderImage)
	if strings.Contains(provisioned, "apt-get") || strings.Contains(provisioned, "wget") {
		t.Errorf("provisioned run must skip OS installation:\n%s", provisioned)
	}
	if !strings.Contains(provisioned, "mamba env create") {
		t.Errorf("provisioned run did not create environment:\n%s", provisioned)
	}

	// A second foreign run must succeed and leave one PATH line in .bashrc.
	run("ubuntu:22.04")
	bashrc, _ := os.ReadFile(filepath.Join(root, ".bashrc"))
	if n := strings.Count(string(bashrc), "export PATH="+opts.CondaPrefix); n != 1 {
		t.Errorf(".bashrc has %d PATH lines, want 1:\n%s", n, bashrc)
	}
}

func TestExecutorFindsInstalledDistribution(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	root := t.TempDir()
	stubs := filepath.Join(root, "bin")
	opts := DefaultOptions()
	opts.AutograderDir = filepath.Join(root, "autograder")
	opts.CondaPrefix = filepath.Join(root, "conda")
	opts.ProvisionedPrefix = filepath.Join(root, "opt")
	for _, dir := range []string{stubs, filepath.Join(opts.CondaPrefix, "bin"), filepath.Join(opts.ProvisionedPrefix, "bin")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeStub(t, stubs, "apt-get", "")
	writeStub(t, stubs, "wget", `while [ $# -gt 0 ]; do
  if [ "$1" = "-O" ]; then : > "$2"; fi
  shift
done
`)
	// mamba exists only inside the distributions, never on the inherited PATH.
	writeStub(t, filepath.Join(opts.CondaPrefix, "bin"), "mamba", "")
	writeStub(t, filepath.Join(opts.ProvisionedPrefix, "bin"), "mamba", "")

	t.Setenv("PATH", stubs+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("HOME", root)

	tests := []struct {
		name  string
		image BaseImage
	}{
		{"foreign", Foreign},
		{"provisioned", Provisioned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logPath := filepath.Join(root, tt.name+".log")
			t.Setenv("STUB_LOG", logPath)

			e := NewExecutor(nil)
			e.Dir = root
			if err := e.Run(context.Background(), NewPlan(tt.image, opts)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			log, _ := os.ReadFile(logPath)
			if !strings.Contains(string(log), "mamba env create") || !strings.Contains(string(log), "mamba init --all") {
				t.Errorf("environment steps did not reach mamba:\n%s", log)
			}
		})
	}
}

func TestExecutorPathOnlyAfterInstaller(t *testing.T) {
	var envs [][]string
	fake := func(ctx context.Context, config *runner.Config) (*runner.Result, error) {
		envs = append(envs, config.Env)
		return &runner.Result{Status: runner.StatusSuccess}, nil
	}
	opts := DefaultOptions()
	plan := NewPlan(Foreign, opts)

	e := NewExecutor(nil)
	e.Exec = fake
	if err := e.Run(context.Background(), plan); err != nil {
		t.Fatal(err)
	}
	for i, step := range plan.Steps {
		hasPath := len(envs[i]) == 1 && strings.HasPrefix(envs[i][0], "PATH="+opts.CondaPrefix+"/bin")
		after := step.Kind == KindEnvironment || step.Kind == KindShellInit
		if hasPath != after {
			t.Errorf("step %q: PATH carried = %v, want %v", step.Name, hasPath, after)
		}
	}
}
