package bundle

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/eafmerge/core/cas"
	"github.com/FocuswithJustin/eafmerge/internal/fileutil"
)

// Extension is the bundle file extension.
const Extension = ".tar.xz"

var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
)

// Entry is one file to pack. Name is its path inside the bundle.
type Entry struct {
	Name string
	Path string
}

// Write packs the manifest followed by entries into a .tar.xz at dst. The
// archive is written atomically.
func Write(dst string, m *Manifest, entries []Entry) error {
	manifestData, err := m.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	return fileutil.WriteAtomic(dst, 0644, func(w io.Writer) error {
		xw, err := xzNewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
		tw := tar.NewWriter(xw)

		mtime := timeNow().UTC().Truncate(time.Second)
		if err := writeToTar(tw, ManifestName, manifestData, mtime); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		for _, e := range entries {
			data, err := os.ReadFile(e.Path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", e.Path, err)
			}
			if err := writeToTar(tw, e.Name, data, mtime); err != nil {
				return fmt.Errorf("failed to write %s: %w", e.Name, err)
			}
		}

		if err := tw.Close(); err != nil {
			return fmt.Errorf("failed to finalize tar: %w", err)
		}
		if err := xw.Close(); err != nil {
			return fmt.Errorf("failed to finalize xz: %w", err)
		}
		return nil
	})
}

func writeToTar(tw *tar.Writer, name string, data []byte, mtime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: mtime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// Visitor is called for each bundle entry. Return true to stop.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks the entries of the bundle at src.
func Iterate(src string, visit Visitor) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	xr, err := xzNewReader(f)
	if err != nil {
		return fmt.Errorf("xz reader: %w", err)
	}
	tr := tar.NewReader(xr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		stop, err := visit(header, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// ReadManifest returns the manifest of the bundle at src.
func ReadManifest(src string) (*Manifest, error) {
	var m *Manifest
	err := Iterate(src, func(h *tar.Header, r io.Reader) (bool, error) {
		if h.Name != ManifestName {
			return false, nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return false, err
		}
		m, err = ParseManifest(data)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("bundle %s has no %s", src, ManifestName)
	}
	return m, nil
}

// Verify checks every file in the bundle at src against the digests in its
// manifest, and that no recorded file is missing.
func Verify(src string) (*Manifest, error) {
	m, err := ReadManifest(src)
	if err != nil {
		return nil, err
	}
	want := m.Records()
	seen := make(map[string]bool, len(want))

	err = Iterate(src, func(h *tar.Header, r io.Reader) (bool, error) {
		if h.Name == ManifestName {
			return false, nil
		}
		name := path.Clean(h.Name)
		if strings.HasPrefix(name, "..") {
			return false, fmt.Errorf("bundle entry %q escapes the bundle", h.Name)
		}
		d, ok := want[name]
		if !ok {
			return false, fmt.Errorf("bundle entry %s is not in the manifest", name)
		}
		got, err := cas.SumReader(r)
		if err != nil {
			return false, err
		}
		if got != d {
			return false, fmt.Errorf("bundle entry %s: digest mismatch", name)
		}
		seen[name] = true
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	for name := range want {
		if !seen[name] {
			return nil, fmt.Errorf("bundle is missing %s", name)
		}
	}
	return m, nil
}
