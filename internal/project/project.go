// Package project reads otterbox.hcl, the authoring-side description of an
// assignment: where its bundle tree lives, how the bootstrap scripts are
// rendered and which config, upload and submission settings apply.
//
//	assignment "hw1" {
//	  source = "autograder"
//	  output = "dist/hw1-autograder.zip"
//
//	  bootstrap {
//	    env_name = "otter-env"
//	    engine   = "otterbox"
//	  }
//
//	  config {
//	    seed        = 42
//	    show_hidden = false
//	  }
//
//	  upload {
//	    provider   = "minio"
//	    endpoint   = env.MINIO_ENDPOINT
//	    access_key = env.MINIO_ACCESS_KEY
//	    secret_key = env.MINIO_SECRET_KEY
//	    bucket     = "autograders"
//	  }
//	}
//
// Expressions can read the process environment through the env object and
// call lower, upper, coalesce and lookup.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/zinc-sig/otterbox/internal/bootstrap"
	"github.com/zinc-sig/otterbox/internal/submit"
)

// FileName is the project file looked up in the working directory.
const FileName = "otterbox.hcl"

// ErrNotFound is returned by Find when no project file exists.
var ErrNotFound = errors.New("project file not found")

// Project is a decoded project file with defaults applied and paths made
// absolute.
type Project struct {
	Path string
	Name string
	// Source is the bundle tree; Output is where the built zip goes.
	Source string
	Output string
	Strict bool

	Bootstrap bootstrap.Options
	// Config overrides otter_config.json keys when the bundle is built.
	Config map[string]any

	UploadProvider string
	Upload         map[string]any

	// Submit is nil when the file has no submit block.
	Submit *submit.Config
}

type fileSchema struct {
	Assignment *assignmentBlock `hcl:"assignment,block"`
}

type assignmentBlock struct {
	Name      string           `hcl:"name,label"`
	Source    *string          `hcl:"source,optional"`
	Output    *string          `hcl:"output,optional"`
	Strict    *bool            `hcl:"strict,optional"`
	Bootstrap *bootstrapBlock  `hcl:"bootstrap,block"`
	Config    *attributesBlock `hcl:"config,block"`
	Upload    *attributesBlock `hcl:"upload,block"`
	Submit    *submitBlock     `hcl:"submit,block"`
}

type bootstrapBlock struct {
	AutograderDir *string  `hcl:"autograder_dir,optional"`
	EnvName       *string  `hcl:"env_name,optional"`
	GraderImage   *string  `hcl:"grader_image,optional"`
	OSPackages    []string `hcl:"os_packages,optional"`
	InstallerURL  *string  `hcl:"installer_url,optional"`
	Engine        *string  `hcl:"engine,optional"`
}

// attributesBlock holds free-form key/value attributes.
type attributesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type submitBlock struct {
	URL          string            `hcl:"url"`
	Token        string            `hcl:"token"`
	CourseID     string            `hcl:"course_id"`
	AssignmentID string            `hcl:"assignment_id"`
	Headers      map[string]string `hcl:"headers,optional"`
	Timeout      *string           `hcl:"timeout,optional"`
}

// Find returns the path of the project file in dir, or ErrNotFound.
func Find(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrNotFound, dir)
		}
		return "", err
	}
	return path, nil
}

// Load reads the project file at path with the process environment.
func Load(path string) (*Project, error) {
	return LoadWithEnv(path, os.Environ())
}

// LoadWithEnv reads the project file at path; environ ("KEY=value" entries)
// backs the env object.
func LoadWithEnv(path string, environ []string) (*Project, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src, path, environ)
}

// Parse decodes project source. filename is used in diagnostics and to
// resolve relative paths.
func Parse(src []byte, filename string, environ []string) (*Project, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}

	ctx := evalContext(environ)
	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, ctx, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, diags)
	}
	if schema.Assignment == nil {
		return nil, fmt.Errorf("%s: missing assignment block", filename)
	}

	base, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return nil, err
	}
	return schema.Assignment.project(filename, base, ctx)
}

func (a *assignmentBlock) project(path, base string, ctx *hcl.EvalContext) (*Project, error) {
	p := &Project{
		Path:      path,
		Name:      a.Name,
		Source:    filepath.Join(base, "autograder"),
		Output:    filepath.Join(base, "dist", a.Name+"-autograder.zip"),
		Strict:    true,
		Bootstrap: bootstrap.DefaultOptions(),
	}
	if a.Source != nil {
		p.Source = resolve(base, *a.Source)
	}
	if a.Output != nil {
		p.Output = resolve(base, *a.Output)
	}
	if a.Strict != nil {
		p.Strict = *a.Strict
	}
	if a.Bootstrap != nil {
		a.Bootstrap.apply(&p.Bootstrap)
		if err := p.Bootstrap.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var err error
	if a.Config != nil {
		if p.Config, err = attributes(a.Config.Body, ctx); err != nil {
			return nil, fmt.Errorf("%s: config: %w", path, err)
		}
	}
	if a.Upload != nil {
		if p.Upload, err = attributes(a.Upload.Body, ctx); err != nil {
			return nil, fmt.Errorf("%s: upload: %w", path, err)
		}
		provider, _ := p.Upload["provider"].(string)
		if provider == "" {
			return nil, fmt.Errorf("%s: upload: provider is required", path)
		}
		p.UploadProvider = provider
		delete(p.Upload, "provider")
	}
	if a.Submit != nil {
		if p.Submit, err = a.Submit.config(); err != nil {
			return nil, fmt.Errorf("%s: submit: %w", path, err)
		}
	}
	return p, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (b *bootstrapBlock) apply(o *bootstrap.Options) {
	if b.AutograderDir != nil {
		o.AutograderDir = *b.AutograderDir
	}
	if b.EnvName != nil {
		o.EnvName = *b.EnvName
	}
	if b.GraderImage != nil {
		o.GraderImage = *b.GraderImage
	}
	if b.OSPackages != nil {
		o.OSPackages = b.OSPackages
	}
	if b.InstallerURL != nil {
		o.InstallerURL = *b.InstallerURL
	}
	if b.Engine != nil {
		o.Engine = bootstrap.Engine(*b.Engine)
	}
}

func (b *submitBlock) config() (*submit.Config, error) {
	c := &submit.Config{
		BaseURL:      b.URL,
		Token:        b.Token,
		CourseID:     b.CourseID,
		AssignmentID: b.AssignmentID,
		Headers:      b.Headers,
	}
	if b.Timeout != nil {
		d, err := time.ParseDuration(*b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		c.Timeout = d
	}
	return c, nil
}

func evalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envVal,
		},
		Functions: map[string]function.Function{
			"lower":    stdlib.LowerFunc,
			"upper":    stdlib.UpperFunc,
			"coalesce": stdlib.CoalesceFunc,
			"lookup":   stdlib.LookupFunc,
		},
	}
}
