package ipameta

import (
	"fmt"
	"io"
)

// WriteMetadataReport writes the Info.plist section of an item report
func WriteMetadataReport(w io.Writer, md *AppMetadata) {
	fmt.Fprintf(w, "Bundle ID: %s\n", md.BundleIdentifier())
	fmt.Fprintf(w, "Version: %s\n", md.Version())
	fmt.Fprintf(w, "Minimum iOS: %s\n", md.MinimumOSVersion())
	fmt.Fprintf(w, "Executable: %s\n", md.Executable())
}

// WriteBinaryReport writes the executable section of an item report
func WriteBinaryReport(w io.Writer, info BinaryInfo) {
	fmt.Fprintf(w, "Architecture: %s\n", info.Arch)
	fmt.Fprintf(w, "Encrypted: %s\n", yesNo(info.Encrypted))
}

// WriteProfileReport writes the embedded provisioning profile section.
// Only fields that do not change between runs are included.
func WriteProfileReport(w io.Writer, p *ProvisioningProfile) {
	fmt.Fprintf(w, "Profile: %s\n", p.Name)
	fmt.Fprintf(w, "Team ID: %s\n", p.TeamID())
	fmt.Fprintf(w, "App ID: %s\n", p.AppID())
	fmt.Fprintf(w, "Distribution: %s\n", p.Distribution())
	fmt.Fprintf(w, "Expires: %s\n", p.ExpirationDate.Format("2006-01-02"))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
