// Package plistrename renames OTA manifest plists after the numeric id in
// the download URL they point at.
package plistrename

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"howett.net/plist"
)

const (
	DefaultURLPrefix  = "https://res.lengshanyun.top/apps/"
	DefaultNamePrefix = "lengshan"
	DefaultLogName    = "extract_and_rename.log"
)

var (
	// ErrNoURL is returned when no string value contains the URL prefix
	ErrNoURL = errors.New("no matching URL found")
	// ErrNoNumber is returned when the matching URL has no digits after the prefix
	ErrNoNumber = errors.New("no number found in URL")
	// ErrTargetExists is returned instead of overwriting an existing file
	ErrTargetExists = errors.New("target file already exists")
)

// Renamer renames plist files in place
type Renamer struct {
	URLPrefix  string
	NamePrefix string
	Logger     *slog.Logger
}

// Summary counts the outcomes of a Run
type Summary struct {
	Renamed int
	Skipped int
	Failed  int
}

// New creates a Renamer; empty arguments fall back to the defaults
func New(urlPrefix, namePrefix string, logger *slog.Logger) *Renamer {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if namePrefix == "" {
		namePrefix = DefaultNamePrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renamer{URLPrefix: urlPrefix, NamePrefix: namePrefix, Logger: logger}
}

// OpenLog opens (appending) a log file and returns a logger writing to it and
// to mirror, if not nil. The caller closes the returned file.
func OpenLog(path string, mirror io.Writer) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}
	return slog.New(slog.NewTextHandler(w, nil)), f, nil
}

// Run strips and renames every *.plist directly inside dir, in name order.
// Per-file failures are logged and counted; only an unreadable dir is an error.
func (r *Renamer) Run(dir string) (Summary, error) {
	var sum Summary

	entries, err := os.ReadDir(dir)
	if err != nil {
		return sum, fmt.Errorf("failed to read directory: %w", err)
	}

	log := r.Logger.With("run", uuid.NewString())
	log.Info("scanning directory", "dir", dir)

	// ReadDir already sorts by name
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".plist") {
			continue
		}
		p := filepath.Join(dir, entry.Name())

		if err := StripWhitespace(p); err != nil {
			log.Error("failed to strip whitespace", "file", entry.Name(), "error", err)
			sum.Failed++
			continue
		}

		target, err := r.renameFile(p, log)
		switch {
		case err == nil && target == p:
			sum.Skipped++
		case err == nil:
			sum.Renamed++
		case errors.Is(err, ErrTargetExists):
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	log.Info("done", "renamed", sum.Renamed, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// RenameFile renames path to <dir>/<NamePrefix><number>.plist, where number
// follows URLPrefix in the first matching string value. Existing files are
// never overwritten. Returns the new path.
func (r *Renamer) RenameFile(path string) (string, error) {
	return r.renameFile(path, r.Logger)
}

func (r *Renamer) renameFile(path string, log *slog.Logger) (string, error) {
	name := filepath.Base(path)

	target, err := r.Target(path)
	if err != nil {
		log.Error("no rename target", "file", name, "error", err)
		return "", err
	}

	if target == path {
		log.Info("file already named", "file", name)
		return target, nil
	}

	if _, err := os.Lstat(target); err == nil {
		log.Error("target already exists, not renaming", "file", name, "target", filepath.Base(target))
		return "", fmt.Errorf("%s: %w", filepath.Base(target), ErrTargetExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Error("failed to check target", "file", name, "error", err)
		return "", err
	}

	if err := os.Rename(path, target); err != nil {
		log.Error("rename failed", "file", name, "error", err)
		return "", fmt.Errorf("failed to rename: %w", err)
	}

	log.Info("file renamed", "file", name, "target", filepath.Base(target))
	return target, nil
}

// Target computes the new path for a plist file without renaming it
func (r *Renamer) Target(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	url, err := FindURL(data, r.URLPrefix)
	if err != nil {
		return "", err
	}

	number, ok := ExtractNumber(url, r.URLPrefix)
	if !ok {
		return "", fmt.Errorf("%s: %w", url, ErrNoNumber)
	}

	return filepath.Join(filepath.Dir(path), r.NamePrefix+number+".plist"), nil
}

// StripWhitespace trims leading and trailing whitespace from every line of an
// XML plist, drops blank lines and rewrites the file when it changed.
// Binary plists are left untouched.
func StripWhitespace(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if bytes.HasPrefix(data, []byte("bplist")) {
		return nil
	}

	stripped := stripLines(data)
	if bytes.Equal(stripped, data) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, stripped, info.Mode().Perm())
}

func stripLines(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimFunc(line, unicode.IsSpace)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return []byte(strings.Join(kept, "\n"))
}

// FindURL decodes a plist and returns the first string value containing
// prefix. Arrays are walked in order and dictionary keys in sorted order, so
// the result is deterministic even though plist dictionaries are unordered.
func FindURL(data []byte, prefix string) (string, error) {
	var root interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("failed to parse plist: %w", err)
	}

	if s, ok := findString(root, prefix); ok {
		return s, nil
	}
	return "", ErrNoURL
}

func findString(v interface{}, prefix string) (string, bool) {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, prefix) {
			return val, true
		}
	case []interface{}:
		for _, item := range val {
			if s, ok := findString(item, prefix); ok {
				return s, true
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := findString(val[k], prefix); ok {
				return s, true
			}
		}
	}
	return "", false
}

// ExtractNumber returns the first run of ASCII digits after prefix in url
func ExtractNumber(url, prefix string) (string, bool) {
	i := strings.Index(url, prefix)
	if i < 0 {
		return "", false
	}
	rest := url[i+len(prefix):]

	start := strings.IndexFunc(rest, isDigit)
	if start < 0 {
		return "", false
	}
	end := start
	for end < len(rest) && isDigit(rune(rest[end])) {
		end++
	}
	return rest[start:end], true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
