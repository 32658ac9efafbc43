package collect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zumanm1/netaudit/pkg/models"
)

// Console line coordinates are slot/subslot/port triples. The supported
// platforms bound them to slot and subslot in [0,1] and port in [0,22].
const (
	maxLineSlot    = 1
	maxLineSubslot = 1
	maxLinePort    = 22
)

var coordPattern = regexp.MustCompile(`^(\d+)/(\d+)/(\d+)$`)

// LineCoordinate identifies one async console line.
type LineCoordinate struct {
	Slot    int
	Subslot int
	Port    int
}

func (c LineCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Slot, c.Subslot, c.Port)
}

// ConsoleCollector implements the two-phase console-line protocol: discover
// the line inventory from the device's line report, then fetch each line's
// configuration independently. One line's fetch failure never invalidates
// the others.
type ConsoleCollector struct{}

// NewConsoleCollector creates the console-line collector.
func NewConsoleCollector() *ConsoleCollector { return &ConsoleCollector{} }

func (c *ConsoleCollector) Layer() models.Layer { return models.LayerConsoleLines }

// Commands returns the discovery command; per-line fetch commands are
// derived from discovery output at run time.
func (c *ConsoleCollector) Commands(platform models.Platform) []string {
	return []string{discoveryCommand(platform)}
}

func discoveryCommand(models.Platform) string {
	// All supported platforms report async lines via "show line".
	return "show line"
}

// fetchCommand returns the platform-specific per-line configuration
// retrieval command.
func fetchCommand(platform models.Platform, coord LineCoordinate) string {
	switch platform {
	case models.PlatformIOSXR:
		return fmt.Sprintf("show running-config line aux %s", coord)
	default:
		return fmt.Sprintf("show running-config | section line %s", coord)
	}
}

func (c *ConsoleCollector) Collect(ctx context.Context, r Runner, device *models.DeviceRecord) (*models.LayerResult, error) {
	platform := device.EffectivePlatform()
	result := &models.LayerResult{
		Hostname:  device.Hostname,
		Layer:     models.LayerConsoleLines,
		Platform:  platform,
		Timestamp: time.Now().UTC(),
	}

	// Phase 1: discovery.
	discovery, err := runCommand(ctx, r, discoveryCommand(platform))
	result.Commands = append(result.Commands, discovery)
	if err != nil {
		return result, err
	}

	var coords []LineCoordinate
	if discovery.Kind == models.ResultSuccess {
		coords = ParseLineReport(discovery.Output)
	}

	// Phase 2: one fetch per discovered line; failures are recorded
	// per line and never abort the remaining fetches.
	var fetched, failed int
	var lines []string
	for _, coord := range coords {
		cr, runErr := runCommand(ctx, r, fetchCommand(platform, coord))
		result.Commands = append(result.Commands, cr)
		if runErr != nil {
			// Session gone: everything after this point is unreachable.
			result.Summary = consoleSummary(len(coords), fetched, failed+1, lines)
			return result, runErr
		}
		if cr.Kind == models.ResultError {
			failed++
			continue
		}
		fetched++
		lines = append(lines, coord.String())
	}

	result.Summary = consoleSummary(len(coords), fetched, failed, lines)
	return result, nil
}

func consoleSummary(discovered, fetched, failed int, lines []string) map[string]string {
	return map[string]string{
		"lines_discovered": strconv.Itoa(discovered),
		"lines_fetched":    strconv.Itoa(fetched),
		"lines_failed":     strconv.Itoa(failed),
		"lines":            strings.Join(lines, ","),
	}
}

// ParseLineReport extracts line coordinates from a tabular "show line"
// report. The coordinate must be the row's first column (optionally marked
// active with a leading '*') and in range; rows that do not match the
// expected layout or fall outside the platform bounds are silently
// discarded.
func ParseLineReport(output string) []LineCoordinate {
	var coords []LineCoordinate
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		first := strings.TrimPrefix(fields[0], "*")
		m := coordPattern.FindStringSubmatch(first)
		if m == nil {
			continue
		}

		slot, _ := strconv.Atoi(m[1])
		subslot, _ := strconv.Atoi(m[2])
		port, _ := strconv.Atoi(m[3])
		if slot > maxLineSlot || subslot > maxLineSubslot || port > maxLinePort {
			continue
		}

		coords = append(coords, LineCoordinate{Slot: slot, Subslot: subslot, Port: port})
	}
	return coords
}
