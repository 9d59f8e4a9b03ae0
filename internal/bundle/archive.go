package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// archiveTime is stamped on every entry so identical trees give identical zips.
var archiveTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrUnsafePath is returned when an archive entry would land outside the
// extraction root.
var ErrUnsafePath = errors.New("unsafe archive path")

// BuildOptions configure Build.
type BuildOptions struct {
	ScanOptions
	// SkipValidate archives the tree even when required entries are missing.
	SkipValidate bool
	// Overlay replaces (or adds) entries by relative path without touching
	// the tree on disk.
	Overlay map[string][]byte
}

// Build scans dir, validates the layout and writes the bundle zip to w.
func Build(ctx context.Context, dir string, w io.Writer, opts BuildOptions) (*Manifest, error) {
	m, err := Scan(dir, opts.ScanOptions)
	if err != nil {
		return nil, err
	}
	if len(opts.Overlay) > 0 {
		if m, err = applyOverlay(m, opts.Overlay); err != nil {
			return nil, err
		}
	}
	if !opts.SkipValidate {
		if err := Validate(m); err != nil {
			return nil, fmt.Errorf("invalid bundle: %w", err)
		}
	}

	zw := zip.NewWriter(w)
	for _, e := range m.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if data, ok := opts.Overlay[e.Path]; ok {
			err = addEntry(zw, e, func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			})
		} else {
			err = addEntry(zw, e, func() (io.ReadCloser, error) {
				return os.Open(filepath.Join(dir, filepath.FromSlash(e.Path)))
			})
		}
		if err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return m, nil
}

func applyOverlay(m *Manifest, overlay map[string][]byte) (*Manifest, error) {
	entries := make([]Entry, 0, len(m.Files)+len(overlay))
	for _, e := range m.Files {
		if _, ok := overlay[e.Path]; !ok {
			entries = append(entries, e)
		}
	}
	for rel, data := range overlay {
		if err := CheckPath(rel); err != nil {
			return nil, err
		}
		size, sum, err := hashReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		kind := Classify(rel)
		entries = append(entries, Entry{Path: rel, Kind: kind, Size: size, SHA256: sum, Mode: kind.Mode()})
	}
	return newManifest(entries), nil
}

func addEntry(zw *zip.Writer, e Entry, open func() (io.ReadCloser, error)) error {
	hdr := &zip.FileHeader{
		Name:     e.Path,
		Method:   zip.Deflate,
		Modified: archiveTime,
	}
	hdr.SetMode(e.Mode)

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Path, err)
	}
	src, err := open()
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Path, err)
	}
	return nil
}

// BuildFile writes the bundle for dir to the file at out. An out inside dir
// is never archived into itself.
func BuildFile(ctx context.Context, dir, out string, opts BuildOptions) (*Manifest, error) {
	opts.Exclude = append(append([]string(nil), opts.Exclude...), out)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", out, err)
	}
	m, err := Build(ctx, dir, f, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return nil, err
	}
	return m, nil
}

// Extract writes every entry of the zip in r to dest and returns the manifest
// of what was written. Entries with absolute paths or ".." segments are
// refused before anything is written.
func Extract(ctx context.Context, r io.ReaderAt, size int64, dest string) (*Manifest, error) {
	zr, err := openZip(r, size)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(filepath.Join(dest, filepath.FromSlash(f.Name)), 0755); err != nil {
				return nil, err
			}
			continue
		}
		e, err := extractFile(f, dest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return newManifest(entries), nil
}

func openZip(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	if err := checkArchive(zr); err != nil {
		return nil, err
	}
	return zr, nil
}

func checkArchive(zr *zip.Reader) error {
	for _, f := range zr.File {
		if err := CheckPath(f.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsafePath, err)
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is a symlink", ErrUnsafePath, f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) (Entry, error) {
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return Entry{}, err
	}

	kind := Classify(f.Name)
	mode := kind.Mode()
	if f.Mode().Perm()&0111 != 0 {
		mode = 0755
	}

	src, err := f.Open()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return Entry{}, err
	}
	size, sum, err := hashReader(io.TeeReader(src, dst))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	// OpenFile's mode is filtered by the umask.
	if err := os.Chmod(target, mode); err != nil {
		return Entry{}, err
	}
	return Entry{Path: f.Name, Kind: kind, Size: size, SHA256: sum, Mode: mode}, nil
}

// ExtractFile extracts the zip at path into dest.
func ExtractFile(ctx context.Context, path, dest string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Extract(ctx, f, st.Size(), dest)
}

// ReadManifest describes the entries of the zip in r without extracting it.
func ReadManifest(r io.ReaderAt, size int64) (*Manifest, error) {
	zr, err := openZip(r, size)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		size, sum, err := hashReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		kind := Classify(f.Name)
		mode := kind.Mode()
		if f.Mode().Perm()&0111 != 0 {
			mode = 0755
		}
		entries = append(entries, Entry{Path: f.Name, Kind: kind, Size: size, SHA256: sum, Mode: mode})
	}
	return newManifest(entries), nil
}

// Open returns the manifest of the bundle zip at path.
func Open(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ReadManifest(f, st.Size())
}
