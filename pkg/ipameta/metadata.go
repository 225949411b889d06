package ipameta

import (
	"errors"
	"fmt"
	"io/fs"

	"howett.net/plist"
)

// NotFound is reported for Info.plist keys that are absent
const NotFound = "Not Found"

// Info.plist keys read by the extractor
const (
	KeyBundleIdentifier = "CFBundleIdentifier"
	KeyShortVersion     = "CFBundleShortVersionString"
	KeyMinimumOSVersion = "MinimumOSVersion"
	KeyExecutable       = "CFBundleExecutable"
)

// ErrInfoPlistMissing is returned when the bundle has no Info.plist
var ErrInfoPlistMissing = errors.New("Info.plist not found in bundle")

// AppMetadata holds a decoded Info.plist
type AppMetadata struct {
	Info map[string]interface{}
}

// ParseInfoPlist decodes an XML or binary Info.plist
func ParseInfoPlist(data []byte) (*AppMetadata, error) {
	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse Info.plist: %w", err)
	}
	if info == nil {
		info = make(map[string]interface{})
	}
	return &AppMetadata{Info: info}, nil
}

// ReadMetadata reads <bundleDir>/Info.plist from the archive
func ReadMetadata(a *Archive, bundleDir string) (*AppMetadata, error) {
	data, err := a.ReadFile(bundleDir + "Info.plist")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrInfoPlistMissing
		}
		return nil, err
	}
	return ParseInfoPlist(data)
}

// Get returns the value for key as text, or NotFound.
// A nil receiver behaves like an empty Info.plist.
func (m *AppMetadata) Get(key string) string {
	if m == nil {
		return NotFound
	}
	v, ok := m.Info[key]
	if !ok || v == nil {
		return NotFound
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (m *AppMetadata) BundleIdentifier() string { return m.Get(KeyBundleIdentifier) }
func (m *AppMetadata) Version() string          { return m.Get(KeyShortVersion) }
func (m *AppMetadata) MinimumOSVersion() string { return m.Get(KeyMinimumOSVersion) }
func (m *AppMetadata) Executable() string       { return m.Get(KeyExecutable) }
