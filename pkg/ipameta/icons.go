package ipameta

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IsAppIcon reports whether an entry inside the bundle is an app icon image
func IsAppIcon(name, bundleDir string) bool {
	return strings.HasPrefix(name, bundleDir) &&
		strings.Contains(name, "AppIcon") &&
		strings.HasSuffix(name, ".png")
}

// ExtractIcons copies every AppIcon*.png inside the bundle to iconDir as
// "<id>_<basename>". The bytes are written unchanged. Returns the paths
// written so far, also on error.
func ExtractIcons(a *Archive, bundleDir, iconDir string, id int) ([]string, error) {
	var written []string
	for _, name := range a.Names() {
		if !IsAppIcon(name, bundleDir) {
			continue
		}

		data, err := a.ReadFile(name)
		if err != nil {
			return written, err
		}

		dst := filepath.Join(iconDir, fmt.Sprintf("%d_%s", id, path.Base(name)))
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write icon: %w", err)
		}
		written = append(written, dst)
	}
	return written, nil
}
