// Package bootstrap decides how a grading host is provisioned and renders the
// shell scripts that do it. The decision hangs on a single marker variable
// naming the base image the host was started from.
package bootstrap

import "fmt"

const (
	// MarkerVar is the environment variable naming the host's base image.
	MarkerVar = "BASE_IMAGE"

	// DefaultGraderImage is the image that already carries the system
	// packages and the Python distribution.
	DefaultGraderImage = "ucbdsinfo/otter-grader"
)

// BaseImage is resolved once at startup from MarkerVar.
type BaseImage int

const (
	// Foreign images need OS packages, tooling and a Python distribution
	// installed before the environment can be created.
	Foreign BaseImage = iota
	// Provisioned images only need the environment created.
	Provisioned
)

func (b BaseImage) String() string {
	switch b {
	case Provisioned:
		return "provisioned"
	case Foreign:
		return "foreign"
	default:
		return fmt.Sprintf("BaseImage(%d)", int(b))
	}
}

// ResolveBaseImage reads the marker through getenv. Any value other than
// graderImage, including an unset marker, is Foreign.
func ResolveBaseImage(getenv func(string) string, graderImage string) BaseImage {
	if graderImage == "" {
		graderImage = DefaultGraderImage
	}
	if getenv(MarkerVar) == graderImage {
		return Provisioned
	}
	return Foreign
}

// MarkerValue is the marker value that selects b.
func MarkerValue(b BaseImage, graderImage string) string {
	if graderImage == "" {
		graderImage = DefaultGraderImage
	}
	if b == Provisioned {
		return graderImage
	}
	return ""
}
