package models

import (
	"fmt"
	"strings"
)

// Layer is one category of operational data collected from a device via a
// fixed command set.
type Layer string

const (
	LayerHealth       Layer = "health"
	LayerInterfaces   Layer = "interfaces"
	LayerIGP          Layer = "igp"
	LayerBGP          Layer = "bgp"
	LayerMPLS         Layer = "mpls"
	LayerVPN          Layer = "vpn"
	LayerStaticRoutes Layer = "static"
	LayerConsoleLines Layer = "console"
)

// AllLayers returns every collectable layer in canonical order.
func AllLayers() []Layer {
	return []Layer{
		LayerHealth,
		LayerInterfaces,
		LayerIGP,
		LayerBGP,
		LayerMPLS,
		LayerVPN,
		LayerStaticRoutes,
		LayerConsoleLines,
	}
}

// ParseLayer converts a user-supplied layer name into a Layer.
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "health":
		return LayerHealth, nil
	case "interfaces", "interface", "int":
		return LayerInterfaces, nil
	case "igp", "ospf":
		return LayerIGP, nil
	case "bgp":
		return LayerBGP, nil
	case "mpls", "ldp":
		return LayerMPLS, nil
	case "vpn", "vrf":
		return LayerVPN, nil
	case "static", "static-routes", "statics":
		return LayerStaticRoutes, nil
	case "console", "console-lines", "lines":
		return LayerConsoleLines, nil
	default:
		return "", fmt.Errorf("unknown layer %q", s)
	}
}

// ParseLayers converts a comma-separated layer list. An empty input selects
// all layers.
func ParseLayers(s string) ([]Layer, error) {
	if strings.TrimSpace(s) == "" {
		return AllLayers(), nil
	}
	var layers []Layer
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		l, err := ParseLayer(part)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}
