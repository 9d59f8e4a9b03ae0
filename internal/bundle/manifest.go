package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zinc-sig/otterbox/internal/logging"
)

// ManifestVersion is bumped when the manifest shape changes.
const ManifestVersion = 1

// Entry is one file of a bundle.
type Entry struct {
	Path   string      `json:"path"`
	Kind   Kind        `json:"kind"`
	Size   int64       `json:"size"`
	SHA256 string      `json:"sha256"`
	Mode   fs.FileMode `json:"mode"`
}

// Manifest lists a bundle's entries sorted by path.
type Manifest struct {
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Files       []Entry   `json:"files"`
	ContentHash string    `json:"content_hash"`
}

// ErrUnknownEntry marks a file outside the recognized layout.
var ErrUnknownEntry = errors.New("file outside bundle layout")

func newManifest(entries []Entry) *Manifest {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return &Manifest{
		Version:     ManifestVersion,
		GeneratedAt: time.Now().UTC(),
		Files:       entries,
		ContentHash: ContentHash(entries),
	}
}

// ContentHash digests the sorted path and content hash of every entry, so two
// trees with the same files hash the same regardless of walk order or mtimes.
func ContentHash(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Path + "\x00" + e.SHA256 + "\n"
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		_, _ = io.WriteString(h, l)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Paths returns the entry paths in manifest order.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Files))
	for i, e := range m.Files {
		out[i] = e.Path
	}
	return out
}

// Find returns the entry at rel.
func (m *Manifest) Find(rel string) (Entry, bool) {
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Path >= rel })
	if i < len(m.Files) && m.Files[i].Path == rel {
		return m.Files[i], true
	}
	return Entry{}, false
}

// Count returns the number of entries of kind k.
func (m *Manifest) Count(k Kind) int {
	n := 0
	for _, e := range m.Files {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// ScanOptions control how files outside the layout are treated.
type ScanOptions struct {
	// Strict turns unknown files into an error instead of a warning.
	Strict bool
	// Exclude lists files left out of the scan, such as an archive being
	// written inside the tree.
	Exclude []string
	Logger  *logging.Logger
}

// Scan walks dir and describes every regular file in it.
func Scan(dir string, opts ScanOptions) (*Manifest, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			excluded[abs] = true
		}
	}

	var entries []Entry
	var unknown []error
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(excluded) > 0 {
			if abs, err := filepath.Abs(p); err == nil && excluded[abs] {
				return nil
			}
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s: not a regular file", rel)
		}
		if err := CheckPath(rel); err != nil {
			return err
		}

		kind := Classify(rel)
		if kind == KindUnknown {
			if opts.Strict {
				unknown = append(unknown, fmt.Errorf("%w: %s", ErrUnknownEntry, rel))
				return nil
			}
			log.Warn("file outside bundle layout", "path", rel)
		}

		size, sum, err := hashFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Kind: kind, Size: size, SHA256: sum, Mode: kind.Mode()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}
	return newManifest(entries), nil
}

func hashFile(p string) (int64, string, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	return hashReader(f)
}

func hashReader(r io.Reader) (int64, string, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Validate reports every required layout entry that is missing and every
// entry with an unsafe path, joined into one error.
func Validate(m *Manifest) error {
	var errs []error
	for _, k := range requiredKinds {
		if m.Count(k) > 0 {
			continue
		}
		if k == KindTest {
			errs = append(errs, fmt.Errorf("no test case files under %s/", TestsDir))
			continue
		}
		errs = append(errs, fmt.Errorf("missing %s", requiredPath(k)))
	}
	for _, e := range m.Files {
		if err := CheckPath(e.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func requiredPath(k Kind) string {
	switch k {
	case KindSetup:
		return SetupScript
	case KindEntry:
		return EntryScript
	case KindRequirements:
		return Requirements
	case KindEnvironment:
		return Environment
	case KindRunAutograder:
		return RunAutograder
	case KindConfig:
		return ConfigFile
	}
	return string(k)
}

// String renders the manifest as an aligned listing.
func (m *Manifest) String() string {
	var b strings.Builder
	for _, e := range m.Files {
		fmt.Fprintf(&b, "%s  %-14s %8d  %s\n", e.Mode, e.Kind, e.Size, e.Path)
	}
	fmt.Fprintf(&b, "%d files, content hash %s\n", len(m.Files), m.ContentHash)
	return b.String()
}
