package ipameta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IconDirName is the subdirectory of the output directory holding icons
const IconDirName = "icon"

// Extractor copies IPAs into an output directory under sequence-numbered
// names and writes one report per item
type Extractor struct {
	OutputDir string
	IconDir   string
	// Out receives progress and error lines
	Out io.Writer
}

// Result describes one processed IPA
type Result struct {
	ID          int
	Source      string
	ArchivePath string
	ReportPath  string
	BundleDir   string
	Metadata    *AppMetadata
	Binary      BinaryInfo
	Profile     *ProvisioningProfile
	Icons       []string
	Errors      []error
}

// Failed reports whether any stage of the item failed
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// NewExtractor creates the output and icon directories
func NewExtractor(outputDir string, out io.Writer) (*Extractor, error) {
	if out == nil {
		out = io.Discard
	}

	iconDir := filepath.Join(outputDir, IconDirName)
	if err := os.MkdirAll(iconDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Extractor{OutputDir: outputDir, IconDir: iconDir, Out: out}, nil
}

// Run processes paths in order starting at id start and returns the results
// together with the next unused id. Each path consumes exactly one id.
func (x *Extractor) Run(paths []string, start int) ([]*Result, int) {
	results := make([]*Result, 0, len(paths))
	next := start
	for _, p := range paths {
		var res *Result
		res, next = x.Process(p, next)
		results = append(results, res)
	}
	return results, next
}

// Process handles a single IPA under the given id and returns id+1,
// whatever failed along the way.
//
// Work happens in two stages with separate error boundaries. The primary
// stage copies the archive and reads Info.plist; the secondary stage
// inspects the executable and extracts icons. The secondary stage runs even
// when the primary one failed after the copy; a failed copy ends the item.
func (x *Extractor) Process(ipaPath string, id int) (*Result, int) {
	stem := strings.TrimSuffix(filepath.Base(ipaPath), filepath.Ext(ipaPath))
	res := &Result{
		ID:          id,
		Source:      ipaPath,
		ArchivePath: filepath.Join(x.OutputDir, fmt.Sprintf("%s_%d.ipa", stem, id)),
		ReportPath:  filepath.Join(x.OutputDir, fmt.Sprintf("%d_info.txt", id)),
	}

	var report bytes.Buffer

	copied, err := x.primary(res, &report)
	if err != nil {
		res.Errors = append(res.Errors, err)
		fmt.Fprintf(x.Out, "Error processing %s: %v\n", stem, err)
	}

	if copied {
		if err := x.secondary(res, &report); err != nil {
			res.Errors = append(res.Errors, err)
			fmt.Fprintf(x.Out, "Error processing %s: %v\n", stem, err)
		}
	}

	if report.Len() > 0 {
		if err := os.WriteFile(res.ReportPath, report.Bytes(), 0644); err != nil {
			err = fmt.Errorf("failed to write report: %w", err)
			res.Errors = append(res.Errors, err)
			fmt.Fprintf(x.Out, "Error processing %s: %v\n", stem, err)
		}
	}

	if !res.Failed() {
		fmt.Fprintf(x.Out, "Processed %s as %s, info written to %s\n",
			stem, filepath.Base(res.ArchivePath), filepath.Base(res.ReportPath))
	}

	return res, id + 1
}

// primary reports whether the copy under ArchivePath is this run's own
func (x *Extractor) primary(res *Result, report *bytes.Buffer) (bool, error) {
	if err := copyFile(res.Source, res.ArchivePath, 0644); err != nil {
		return false, fmt.Errorf("failed to copy IPA: %w", err)
	}

	a, err := OpenArchive(res.ArchivePath)
	if err != nil {
		return true, err
	}
	defer a.Close()

	bundleDir, err := a.BundleDir()
	if err != nil {
		return true, err
	}
	res.BundleDir = bundleDir

	md, err := ReadMetadata(a, bundleDir)
	if err != nil {
		return true, err
	}
	res.Metadata = md

	WriteMetadataReport(report, md)
	return true, nil
}

func (x *Extractor) secondary(res *Result, report *bytes.Buffer) error {
	a, err := OpenArchive(res.ArchivePath)
	if err != nil {
		return err
	}
	defer a.Close()

	bundleDir, err := a.BundleDir()
	if err != nil {
		return err
	}

	execName := executableName(res.Metadata, bundleDir)
	if entry := FindExecutable(a.Names(), bundleDir, execName); entry != "" {
		res.Binary = x.inspect(a, entry)
		sectionBreak(report)
		WriteBinaryReport(report, res.Binary)
	} else {
		fmt.Fprintf(x.Out, "Executable %s not found in %s\n", execName, bundleDir)
	}

	profile, err := ReadProvisioningProfile(a, bundleDir)
	switch {
	case err == nil:
		res.Profile = profile
		sectionBreak(report)
		WriteProfileReport(report, profile)
	case !errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(x.Out, "Failed to read provisioning profile: %v\n", err)
	}

	icons, err := ExtractIcons(a, bundleDir, x.IconDir, res.ID)
	res.Icons = icons
	return err
}

// sectionBreak separates a report section from the one before it, if any
func sectionBreak(report *bytes.Buffer) {
	if report.Len() > 0 {
		report.WriteByte('\n')
	}
}

// inspect never fails: parse errors are printed and yield an empty result
func (x *Extractor) inspect(a *Archive, entry string) BinaryInfo {
	data, err := a.ReadFile(entry)
	if err != nil {
		fmt.Fprintf(x.Out, "Failed to read executable: %v\n", err)
		return BinaryInfo{}
	}

	info, err := InspectBinary(data)
	if err != nil {
		fmt.Fprintf(x.Out, "Failed to parse Mach-O: %v\n", err)
		return BinaryInfo{}
	}
	return info
}

// executableName prefers CFBundleExecutable and falls back to the bundle
// stem, which is what Xcode names the main executable by default
func executableName(md *AppMetadata, bundleDir string) string {
	if name := md.Executable(); name != NotFound && name != "" {
		return name
	}
	return strings.TrimSuffix(path.Base(bundleDir), ".app")
}
