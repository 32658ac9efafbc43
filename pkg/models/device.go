package models

import "strings"

// Platform identifies the operating system family of a managed router.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformIOSXE   Platform = "ios-xe"
	PlatformIOSXR   Platform = "ios-xr"
	PlatformUnknown Platform = "unknown"
)

// DeviceRecord is one inventory entry. Records are loaded once per run and
// treated as read-only by everything downstream.
type DeviceRecord struct {
	Hostname       string   `json:"hostname" yaml:"hostname"`
	Address        string   `json:"address" yaml:"address"`
	Port           int      `json:"port,omitempty" yaml:"port,omitempty"`
	Platform       Platform `json:"platform,omitempty" yaml:"platform,omitempty"`
	DeviceType     string   `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Username       string   `json:"username" yaml:"username"`
	Password       string   `json:"password" yaml:"password"`
	EnablePassword string   `json:"enable_password,omitempty" yaml:"enable_password,omitempty"`
	Groups         []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// SSHPort returns the device SSH port, defaulting to 22.
func (d *DeviceRecord) SSHPort() int {
	if d.Port > 0 {
		return d.Port
	}
	return 22
}

// EffectivePlatform returns the explicit platform if set, otherwise the
// platform detected from the device-type tag.
func (d *DeviceRecord) EffectivePlatform() Platform {
	if d.Platform != "" && d.Platform != PlatformUnknown {
		return d.Platform
	}
	return DetectPlatform(d.DeviceType)
}

// InGroup reports whether the device carries the given group tag
// (case-insensitive).
func (d *DeviceRecord) InGroup(group string) bool {
	for _, g := range d.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// ParsePlatform converts a config/inventory string into a Platform.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios":
		return PlatformIOS
	case "ios-xe", "iosxe", "xe":
		return PlatformIOSXE
	case "ios-xr", "iosxr", "xr":
		return PlatformIOSXR
	default:
		return PlatformUnknown
	}
}

// DetectPlatform infers the platform family from a free-form device-type tag
// (e.g. "ASR9010", "ASR-920", "CISCO2911"). Specific patterns are checked
// before generic ones: ASR903/ASR920 are IOS-XE even though they share the
// ASR9 prefix with the IOS-XR ASR9000 series.
func DetectPlatform(deviceType string) Platform {
	dt := strings.ToUpper(strings.TrimSpace(deviceType))
	if dt == "" {
		return PlatformUnknown
	}

	for _, p := range []string{"ASR903", "ASR-903", "ASR920", "ASR-920"} {
		if strings.Contains(dt, p) {
			return PlatformIOSXE
		}
	}

	for _, p := range []string{"ASR9K", "ASR-9K", "ASR90", "ASR91", "ASR99", "XRV", "IOS-XR", "IOSXR", "NCS", "CRS"} {
		if strings.Contains(dt, p) {
			return PlatformIOSXR
		}
	}

	for _, p := range []string{"ASR1", "ASR-1", "ISR", "CSR", "IOS-XE", "IOSXE", "C8", "C11", "C12"} {
		if strings.Contains(dt, p) {
			return PlatformIOSXE
		}
	}

	for _, p := range []string{"IOS", "C29", "C39", "7200", "2911", "3725", "3745"} {
		if strings.Contains(dt, p) {
			return PlatformIOS
		}
	}

	return PlatformUnknown
}
