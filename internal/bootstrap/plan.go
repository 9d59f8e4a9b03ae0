package bootstrap

import (
	"fmt"
	"path"
	"strings"
)

// StepKind classifies a provisioning step.
type StepKind string

const (
	KindOSPackages  StepKind = "os-packages"
	KindDownload    StepKind = "download"
	KindInstaller   StepKind = "installer"
	KindEnvironment StepKind = "environment"
	KindShellInit   StepKind = "shell-init"
)

// Step is a named group of shell commands run in order.
type Step struct {
	Name     string
	Kind     StepKind
	Commands []string
}

// Plan is the ordered provisioning work for one base image.
type Plan struct {
	Image BaseImage
	Steps []Step
	// BinDir holds the distribution's executables. It goes on PATH for every
	// step after the installer, or for all steps when there is no installer.
	BinDir string
}

// Download is an external package fetched and installed on foreign images.
type Download struct {
	Name string
	URL  string
}

// Engine selects what run_autograder hands off to.
type Engine string

const (
	// EngineOtter runs the Python entry script shipped in the bundle.
	EngineOtter Engine = "otter"
	// EngineOtterbox runs this tool's own grading pipeline.
	EngineOtterbox Engine = "otterbox"
)

// Options parameterize both the plan and the rendered scripts.
type Options struct {
	AutograderDir string
	EnvName       string
	GraderImage   string
	OSPackages    []string
	PDFTool       Download
	FontSet       Download
	InstallerURL  string
	// CondaPrefix is where the installer puts the distribution on foreign images.
	CondaPrefix string
	// ProvisionedPrefix is where the distribution lives on the grader image.
	ProvisionedPrefix string
	Engine            Engine
}

// DefaultOptions matches the layout grading hosts expect.
func DefaultOptions() Options {
	return Options{
		AutograderDir: "/autograder",
		EnvName:       "otter-env",
		GraderImage:   DefaultGraderImage,
		OSPackages: []string{
			"wget",
			"texlive-xetex",
			"texlive-fonts-recommended",
			"texlive-plain-generic",
			"build-essential",
			"libcurl4-gnutls-dev",
			"libxml2-dev",
			"libssl-dev",
		},
		PDFTool: Download{
			Name: "wkhtmltopdf",
			URL:  "https://github.com/wkhtmltopdf/packaging/releases/download/0.12.6.1-2/wkhtmltox_0.12.6.1-2.jammy_amd64.deb",
		},
		FontSet: Download{
			Name: "mscorefonts",
			URL:  "http://ftp.us.debian.org/debian/pool/contrib/m/msttcorefonts/ttf-mscorefonts-installer_3.8.1_all.deb",
		},
		InstallerURL:      "https://github.com/conda-forge/miniforge/releases/latest/download/Mambaforge-Linux-x86_64.sh",
		CondaPrefix:       "/root/mambaforge",
		ProvisionedPrefix: "/opt/conda",
		Engine:            EngineOtter,
	}
}

// Validate checks the options a script cannot work without.
func (o Options) Validate() error {
	var missing []string
	if o.AutograderDir == "" {
		missing = append(missing, "autograder dir")
	}
	if o.EnvName == "" {
		missing = append(missing, "environment name")
	}
	if o.InstallerURL == "" {
		missing = append(missing, "installer URL")
	}
	if o.CondaPrefix == "" || o.ProvisionedPrefix == "" {
		missing = append(missing, "distribution prefix")
	}
	if o.PDFTool.URL == "" || o.FontSet.URL == "" {
		missing = append(missing, "tooling download")
	}
	if len(missing) > 0 {
		return fmt.Errorf("bootstrap options missing: %s", strings.Join(missing, ", "))
	}
	switch o.Engine {
	case EngineOtter, EngineOtterbox:
	default:
		return fmt.Errorf("unknown engine %q", o.Engine)
	}
	return nil
}

func (o Options) sourceDir() string {
	return path.Join(o.AutograderDir, "source")
}

// NewPlan returns the steps for image. The foreign-only steps and the shared
// steps never overlap: a provisioned image runs exactly the shared tail.
func NewPlan(image BaseImage, opts Options) Plan {
	steps := []Step{}
	binDir := path.Join(opts.ProvisionedPrefix, "bin")
	if image == Foreign {
		steps = append(steps, foreignSteps(opts)...)
		binDir = path.Join(opts.CondaPrefix, "bin")
	}
	steps = append(steps, commonSteps(opts)...)
	return Plan{Image: image, Steps: steps, BinDir: binDir}
}

func foreignSteps(o Options) []Step {
	src := o.sourceDir()
	installer := path.Join(src, "mambaforge.sh")
	pathLine := fmt.Sprintf(`export PATH=%s/bin:$PATH`, o.CondaPrefix)

	return []Step{
		{
			Name: "install OS packages",
			Kind: KindOSPackages,
			Commands: []string{
				"apt-get clean",
				"apt-get update",
				"apt-get install -y " + strings.Join(o.OSPackages, " "),
			},
		},
		downloadStep(o.PDFTool),
		downloadStep(o.FontSet),
		{
			Name: "install Python distribution",
			Kind: KindInstaller,
			Commands: []string{
				fmt.Sprintf(`if [ ! -d "%s" ]; then`, o.CondaPrefix),
				fmt.Sprintf(`    wget -nv -O "%s" "%s"`, installer, o.InstallerURL),
				fmt.Sprintf(`    chmod +x "%s"`, installer),
				fmt.Sprintf(`    bash "%s" -b -p "%s"`, installer, o.CondaPrefix),
				"fi",
				fmt.Sprintf(`grep -qxF '%s' "$HOME/.bashrc" 2>/dev/null || echo '%s' >> "$HOME/.bashrc"`, pathLine, pathLine),
				pathLine,
			},
		},
	}
}

func downloadStep(d Download) Step {
	deb := fmt.Sprintf("/tmp/%s.deb", d.Name)
	return Step{
		Name: "install " + d.Name,
		Kind: KindDownload,
		Commands: []string{
			fmt.Sprintf(`wget -nv -O "%s" "%s"`, deb, d.URL),
			fmt.Sprintf(`apt-get install -y "%s"`, deb),
		},
	}
}

func commonSteps(o Options) []Step {
	envFile := path.Join(o.sourceDir(), "environment.yml")
	return []Step{
		{
			Name: "create environment",
			Kind: KindEnvironment,
			Commands: []string{
				fmt.Sprintf(`mamba env create -f "%s" || mamba env update -n %s -f "%s"`, envFile, o.EnvName, envFile),
			},
		},
		{
			Name:     "initialize shell",
			Kind:     KindShellInit,
			Commands: []string{"mamba init --all"},
		},
	}
}

// HasKind reports whether the plan contains a step of kind k.
func (p Plan) HasKind(k StepKind) bool {
	for _, s := range p.Steps {
		if s.Kind == k {
			return true
		}
	}
	return false
}
