package ipameta

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrNoAppBundle is returned when an archive has no .app directory
var ErrNoAppBundle = errors.New("no .app bundle found in archive")

const bundleSuffix = ".app/"

// Archive is an IPA (ZIP) file opened for reading
type Archive struct {
	r     *zip.ReadCloser
	files map[string]*zip.File
}

// OpenArchive opens an IPA file and indexes its entries
func OpenArchive(path string) (*Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IPA: %w", err)
	}

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if _, dup := files[f.Name]; !dup {
			files[f.Name] = f
		}
	}

	return &Archive{r: r, files: files}, nil
}

// Close releases the underlying file
func (a *Archive) Close() error {
	return a.r.Close()
}

// Names returns all entry names in listing order
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.r.File))
	for _, f := range a.r.File {
		names = append(names, f.Name)
	}
	return names
}

// BundleDir returns the archive's application bundle directory
func (a *Archive) BundleDir() (string, error) {
	return FindBundleDir(a.Names())
}

// ReadFile returns the contents of a single entry
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// FindBundleDir returns the first .app directory in listing order, with a
// trailing slash. Entries nested below a bundle also identify it, so archives
// written without directory records still resolve.
//
// The first match wins. An archive carrying more than one top-level bundle
// resolves to whichever is listed first.
func FindBundleDir(names []string) (string, error) {
	for _, name := range names {
		if i := strings.Index(name, bundleSuffix); i >= 0 {
			return name[:i+len(bundleSuffix)], nil
		}
	}
	return "", ErrNoAppBundle
}

// copyFile copies a single file from src to dst with the given mode using streaming I/O
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}
