// Package collect implements the per-layer collectors that issue
// platform-specific commands over a ready device session and classify the
// results.
package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/zumanm1/netaudit/pkg/models"
)

// Runner executes one CLI command on a ready device session and returns its
// output. Defined where consumed; *connect.Session satisfies it.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// Collector gathers one data layer from a device.
type Collector interface {
	// Layer identifies the data layer this collector produces.
	Layer() models.Layer
	// Commands returns the ordered command list for a platform.
	Commands(platform models.Platform) []string
	// Collect runs the layer's protocol against the session. The returned
	// result always carries every transcript gathered so far, even when err
	// is non-nil.
	Collect(ctx context.Context, r Runner, device *models.DeviceRecord) (*models.LayerResult, error)
}

// For returns the collector for a layer.
func For(layer models.Layer) (Collector, error) {
	switch layer {
	case models.LayerHealth:
		return &commandCollector{layer: layer, commands: healthCommands, summarize: summarizeHealth}, nil
	case models.LayerInterfaces:
		return &commandCollector{layer: layer, commands: interfaceCommands, summarize: summarizeInterfaces}, nil
	case models.LayerIGP:
		return &commandCollector{layer: layer, commands: igpCommands, summarize: summarizeIGP}, nil
	case models.LayerBGP:
		return &commandCollector{layer: layer, commands: bgpCommands, summarize: summarizeBGP}, nil
	case models.LayerMPLS:
		return &commandCollector{layer: layer, commands: mplsCommands, summarize: summarizeMPLS}, nil
	case models.LayerVPN:
		return &commandCollector{layer: layer, commands: vpnCommands, summarize: summarizeVPN}, nil
	case models.LayerStaticRoutes:
		return &commandCollector{layer: layer, commands: staticCommands, summarize: summarizeStatic}, nil
	case models.LayerConsoleLines:
		return NewConsoleCollector(), nil
	default:
		return nil, fmt.Errorf("no collector for layer %q", layer)
	}
}

// commandCollector executes a fixed ordered command list and classifies each
// transcript. Most layers are instances of this with their own capability
// table and summary function.
type commandCollector struct {
	layer     models.Layer
	commands  map[models.Platform][]string
	summarize func(results []models.CommandResult) map[string]string
}

func (c *commandCollector) Layer() models.Layer { return c.layer }

func (c *commandCollector) Commands(platform models.Platform) []string {
	if cmds, ok := c.commands[platform]; ok {
		return cmds
	}
	// Unknown platforms get the classic IOS set, the least exotic syntax.
	return c.commands[models.PlatformIOS]
}

func (c *commandCollector) Collect(ctx context.Context, r Runner, device *models.DeviceRecord) (*models.LayerResult, error) {
	platform := device.EffectivePlatform()
	result := &models.LayerResult{
		Hostname:  device.Hostname,
		Layer:     c.layer,
		Platform:  platform,
		Timestamp: time.Now().UTC(),
	}

	for _, cmd := range c.Commands(platform) {
		cr, err := runCommand(ctx, r, cmd)
		result.Commands = append(result.Commands, cr)
		if err != nil {
			// Session-level failure (timeout, channel gone): the remaining
			// commands cannot run. Return what we have; the job may retry.
			return result, err
		}
	}

	if c.summarize != nil {
		result.Summary = c.summarize(result.Commands)
	}
	return result, nil
}

// runCommand executes one command and classifies its output. The error
// return is reserved for session-level failures; a device rejecting the
// command is recorded in the result kind instead.
func runCommand(ctx context.Context, r Runner, cmd string) (models.CommandResult, error) {
	start := time.Now()
	out, err := r.Run(ctx, cmd)
	cr := models.CommandResult{
		Command:  cmd,
		Output:   out,
		Duration: time.Since(start),
	}
	if err != nil {
		cr.Kind = models.ResultError
		cr.Err = err.Error()
		return cr, err
	}
	cr.Kind = Classify(out)
	return cr, nil
}
