package ipameta

import (
	"fmt"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// ProvisioningProfile represents a parsed .mobileprovision file
type ProvisioningProfile struct {
	Name                        string                 `plist:"Name"`
	TeamName                    string                 `plist:"TeamName"`
	TeamIdentifier              []string               `plist:"TeamIdentifier"`
	AppIDName                   string                 `plist:"AppIDName"`
	ApplicationIdentifierPrefix []string               `plist:"ApplicationIdentifierPrefix"`
	Entitlements                map[string]interface{} `plist:"Entitlements"`
	ProvisionedDevices          []string               `plist:"ProvisionedDevices"`
	ProvisionsAllDevices        bool                   `plist:"ProvisionsAllDevices"`
	CreationDate                time.Time              `plist:"CreationDate"`
	ExpirationDate              time.Time              `plist:"ExpirationDate"`
	UUID                        string                 `plist:"UUID"`
}

// ParseProvisioningProfile parses a .mobileprovision file
// The file is a CMS (PKCS#7) signed container with a plist payload
func ParseProvisioningProfile(data []byte) (*ProvisioningProfile, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	var profile ProvisioningProfile
	if _, err := plist.Unmarshal(p7.Content, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning profile plist: %w", err)
	}

	return &profile, nil
}

// ReadProvisioningProfile reads <bundleDir>/embedded.mobileprovision.
// The returned error wraps fs.ErrNotExist when the bundle has none.
func ReadProvisioningProfile(a *Archive, bundleDir string) (*ProvisioningProfile, error) {
	data, err := a.ReadFile(bundleDir + "embedded.mobileprovision")
	if err != nil {
		return nil, err
	}
	return ParseProvisioningProfile(data)
}

// TeamID returns the signing team. Older profiles only carry it as the
// prefix of the application identifier.
func (p *ProvisioningProfile) TeamID() string {
	switch {
	case len(p.TeamIdentifier) > 0:
		return p.TeamIdentifier[0]
	case len(p.ApplicationIdentifierPrefix) > 0:
		return p.ApplicationIdentifierPrefix[0]
	}
	if team, _, ok := strings.Cut(p.AppID(), "."); ok {
		return team
	}
	return ""
}

// AppID returns the "<team>.<bundle id>" the profile is issued for
func (p *ProvisioningProfile) AppID() string {
	appID, _ := p.Entitlements["application-identifier"].(string)
	return appID
}

// ExpiredAt reports whether the profile is no longer valid at t. A profile
// without an expiration date never expires.
func (p *ProvisioningProfile) ExpiredAt(t time.Time) bool {
	return !p.ExpirationDate.IsZero() && t.After(p.ExpirationDate)
}

// Distribution names the kind of profile from its device list
func (p *ProvisioningProfile) Distribution() string {
	switch {
	case p.ProvisionsAllDevices:
		return "enterprise"
	case len(p.ProvisionedDevices) > 0:
		return fmt.Sprintf("ad-hoc/development (%d devices)", len(p.ProvisionedDevices))
	default:
		return "app store"
	}
}
