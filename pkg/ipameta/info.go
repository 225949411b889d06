package ipameta

import (
	"errors"
	"fmt"
	"io/fs"
)

// Summary is a read-only description of an IPA, used by the info command
type Summary struct {
	Path       string
	BundleDir  string
	Metadata   *AppMetadata
	Executable string
	Binary     BinaryInfo
	BinaryErr  error
	Profile    *ProvisioningProfile
	Icons      []string
}

// Describe reads an IPA without writing anything. Bundle and Info.plist
// problems are returned as errors; executable problems land in BinaryErr.
func Describe(ipaPath string) (*Summary, error) {
	a, err := OpenArchive(ipaPath)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	bundleDir, err := a.BundleDir()
	if err != nil {
		return nil, err
	}

	md, err := ReadMetadata(a, bundleDir)
	if err != nil {
		return nil, err
	}

	s := &Summary{Path: ipaPath, BundleDir: bundleDir, Metadata: md}

	names := a.Names()
	s.Executable = FindExecutable(names, bundleDir, executableName(md, bundleDir))
	if s.Executable == "" {
		s.BinaryErr = fmt.Errorf("executable %s not found", executableName(md, bundleDir))
	} else if data, err := a.ReadFile(s.Executable); err != nil {
		s.BinaryErr = err
	} else {
		s.Binary, s.BinaryErr = InspectBinary(data)
	}

	profile, err := ReadProvisioningProfile(a, bundleDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	s.Profile = profile

	for _, name := range names {
		if IsAppIcon(name, bundleDir) {
			s.Icons = append(s.Icons, name)
		}
	}

	return s, nil
}
