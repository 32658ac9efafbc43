// Package inventory loads device records from CSV or YAML inventory files
// and applies device/group selection filters.
package inventory

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zumanm1/netaudit/pkg/models"
)

// Load reads an inventory file, dispatching on the file extension.
// Supported formats: .csv and .yaml/.yml.
func Load(path string, logger *zap.Logger) ([]*models.DeviceRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".csv":
		return loadCSV(path, logger)
	default:
		return loadCSV(path, logger)
	}
}

// loadCSV parses the CSV inventory layout:
//
//	hostname,address,device_type,username,password,enable_password,port,groups
//
// The first row is a header. Groups are semicolon-separated. Rows missing a
// hostname or address are skipped with a warning rather than failing the
// whole load.
func loadCSV(path string, logger *zap.Logger) ([]*models.DeviceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse inventory %q: %w", path, err)
	}

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var devices []*models.DeviceRecord
	for i, row := range records {
		if i == 0 {
			continue // header
		}

		d := &models.DeviceRecord{
			Hostname:       field(row, 0),
			Address:        field(row, 1),
			DeviceType:     field(row, 2),
			Username:       field(row, 3),
			Password:       field(row, 4),
			EnablePassword: field(row, 5),
		}
		if d.Hostname == "" || d.Address == "" {
			logger.Warn("skipping inventory row without hostname/address",
				zap.Int("row", i+1))
			continue
		}
		if p := field(row, 6); p != "" {
			port, convErr := strconv.Atoi(p)
			if convErr != nil || port < 1 || port > 65535 {
				logger.Warn("skipping inventory row with invalid port",
					zap.Int("row", i+1), zap.String("port", p))
				continue
			}
			d.Port = port
		}
		if g := field(row, 7); g != "" {
			for _, group := range strings.Split(g, ";") {
				if group = strings.TrimSpace(group); group != "" {
					d.Groups = append(d.Groups, group)
				}
			}
		}
		d.Platform = d.EffectivePlatform()

		devices = append(devices, d)
	}

	return devices, nil
}

// yamlInventory is the top-level YAML inventory document.
type yamlInventory struct {
	Devices []*models.DeviceRecord `yaml:"devices"`
}

func loadYAML(path string) ([]*models.DeviceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory %q: %w", path, err)
	}

	var doc yamlInventory
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse inventory %q: %w", path, err)
	}

	var devices []*models.DeviceRecord
	for _, d := range doc.Devices {
		if d == nil || d.Hostname == "" || d.Address == "" {
			continue
		}
		d.Platform = d.EffectivePlatform()
		devices = append(devices, d)
	}
	return devices, nil
}

// Filter applies device and group allow-lists. An empty list means no
// restriction. Hostname matching is case-insensitive; group filters match
// devices carrying any listed group.
func Filter(devices []*models.DeviceRecord, names, groups []string) []*models.DeviceRecord {
	if len(names) == 0 && len(groups) == 0 {
		return devices
	}

	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var out []*models.DeviceRecord
	for _, d := range devices {
		if len(nameSet) > 0 && !nameSet[strings.ToLower(d.Hostname)] {
			continue
		}
		if len(groups) > 0 && !inAnyGroup(d, groups) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func inAnyGroup(d *models.DeviceRecord, groups []string) bool {
	for _, g := range groups {
		if d.InGroup(strings.TrimSpace(g)) {
			return true
		}
	}
	return false
}
