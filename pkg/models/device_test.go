package models

import "testing"

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		deviceType string
		want       Platform
	}{
		// ASR903/920 are IOS-XE and must win over the ASR9xx IOS-XR match.
		{"ASR903", PlatformIOSXE},
		{"ASR-903", PlatformIOSXE},
		{"ASR920", PlatformIOSXE},
		{"asr-920", PlatformIOSXE},
		{"ASR9010", PlatformIOSXR},
		{"ASR9K", PlatformIOSXR},
		{"ASR9906", PlatformIOSXR},
		{"XRV9000", PlatformIOSXR},
		{"NCS-5500", PlatformIOSXR},
		{"ASR1001", PlatformIOSXE},
		{"ISR4451", PlatformIOSXE},
		{"CSR1000V", PlatformIOSXE},
		{"CISCO2911", PlatformIOS},
		{"7200", PlatformIOS},
		{"C3945", PlatformIOS},
		{"", PlatformUnknown},
		{"juniper-mx", PlatformUnknown},
	}

	for _, tt := range tests {
		if got := DetectPlatform(tt.deviceType); got != tt.want {
			t.Errorf("DetectPlatform(%q) = %v, want %v", tt.deviceType, got, tt.want)
		}
	}
}

func TestEffectivePlatform_ExplicitWins(t *testing.T) {
	d := &DeviceRecord{DeviceType: "ASR9010", Platform: PlatformIOS}
	if got := d.EffectivePlatform(); got != PlatformIOS {
		t.Errorf("EffectivePlatform() = %v, want explicit %v", got, PlatformIOS)
	}

	d = &DeviceRecord{DeviceType: "ASR9010"}
	if got := d.EffectivePlatform(); got != PlatformIOSXR {
		t.Errorf("EffectivePlatform() = %v, want detected %v", got, PlatformIOSXR)
	}
}

func TestSSHPortDefault(t *testing.T) {
	d := &DeviceRecord{}
	if got := d.SSHPort(); got != 22 {
		t.Errorf("SSHPort() = %d, want 22", got)
	}
	d.Port = 2222
	if got := d.SSHPort(); got != 2222 {
		t.Errorf("SSHPort() = %d, want 2222", got)
	}
}

func TestInGroup(t *testing.T) {
	d := &DeviceRecord{Groups: []string{"core", "Edge-PE"}}
	if !d.InGroup("CORE") {
		t.Error("InGroup should match case-insensitively")
	}
	if d.InGroup("access") {
		t.Error("InGroup matched a group the device does not carry")
	}
}
