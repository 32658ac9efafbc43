// Package testutil provides shared test fixtures.
package testutil

import (
	"time"

	"github.com/zumanm1/netaudit/pkg/models"
)

// NewDevice returns a DeviceRecord with sensible defaults, suitable for test
// fixtures. Override individual fields through opts as needed.
func NewDevice(opts ...func(*models.DeviceRecord)) *models.DeviceRecord {
	d := &models.DeviceRecord{
		Hostname:   "test-router",
		Address:    "192.168.1.100",
		Port:       22,
		Platform:   models.PlatformIOS,
		DeviceType: "cisco_ios",
		Username:   "admin",
		Password:   "admin",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithHostname overrides the fixture hostname and address suffix.
func WithHostname(hostname string) func(*models.DeviceRecord) {
	return func(d *models.DeviceRecord) { d.Hostname = hostname }
}

// WithPlatform overrides the fixture platform.
func WithPlatform(p models.Platform) func(*models.DeviceRecord) {
	return func(d *models.DeviceRecord) { d.Platform = p }
}

// NewLayerResult returns a minimal successful LayerResult for the device.
func NewLayerResult(hostname string, layer models.Layer) *models.LayerResult {
	return &models.LayerResult{
		Hostname:  hostname,
		Layer:     layer,
		Platform:  models.PlatformIOS,
		Timestamp: time.Now().UTC(),
		Commands: []models.CommandResult{
			{Command: "show version", Output: "ok", Kind: models.ResultSuccess},
		},
	}
}
