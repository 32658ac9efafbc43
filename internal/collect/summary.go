package collect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zumanm1/netaudit/pkg/models"
)

var ipv4Pattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

// Summary extractors distill a few headline counters from the raw
// transcripts. They are intentionally tolerant: a transcript that does not
// match simply contributes nothing.

func summarizeHealth(results []models.CommandResult) map[string]string {
	summary := map[string]string{}
	for i := range results {
		if !strings.Contains(results[i].Command, "show version") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			if idx := strings.Index(line, "uptime is"); idx >= 0 {
				summary["uptime"] = strings.TrimSpace(line[idx+len("uptime is"):])
			}
			if strings.Contains(line, "Version") && (strings.Contains(line, "IOS") || strings.Contains(line, "Cisco")) {
				if _, ok := summary["version"]; !ok {
					summary["version"] = strings.TrimSpace(line)
				}
			}
		}
	}
	return summary
}

func summarizeInterfaces(results []models.CommandResult) map[string]string {
	var up, down, adminDown int
	for i := range results {
		if !strings.Contains(results[i].Command, "interface brief") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			lower := strings.ToLower(line)
			switch {
			case strings.Contains(lower, "administratively down"):
				adminDown++
			case strings.Contains(lower, " up") && strings.HasSuffix(strings.TrimSpace(lower), "up"):
				up++
			case strings.Contains(lower, "down"):
				down++
			}
		}
	}
	return map[string]string{
		"interfaces_up":         strconv.Itoa(up),
		"interfaces_down":       strconv.Itoa(down),
		"interfaces_admin_down": strconv.Itoa(adminDown),
	}
}

func summarizeIGP(results []models.CommandResult) map[string]string {
	var total, full int
	for i := range results {
		if !strings.Contains(results[i].Command, "ospf neighbor") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			if !ipv4Pattern.MatchString(line) {
				continue
			}
			total++
			if strings.Contains(strings.ToUpper(line), "FULL") {
				full++
			}
		}
	}
	return map[string]string{
		"ospf_neighbors":      strconv.Itoa(total),
		"ospf_neighbors_full": strconv.Itoa(full),
	}
}

func summarizeBGP(results []models.CommandResult) map[string]string {
	var total, established int
	for i := range results {
		if !strings.Contains(results[i].Command, "summary") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 3 || !ipv4Pattern.MatchString(fields[0]) {
				continue
			}
			total++
			// An established peer reports a numeric prefix count in the
			// State/PfxRcd column; a state name means it is down.
			if _, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
				established++
			}
		}
	}
	return map[string]string{
		"bgp_neighbors":             strconv.Itoa(total),
		"bgp_neighbors_established": strconv.Itoa(established),
	}
}

func summarizeMPLS(results []models.CommandResult) map[string]string {
	var neighbors int
	for i := range results {
		if !strings.Contains(results[i].Command, "ldp neighbor") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			if strings.Contains(line, "Peer LDP Ident") || strings.HasPrefix(strings.TrimSpace(line), "Peer ") {
				neighbors++
			} else if ipv4Pattern.MatchString(line) && strings.Contains(line, ":0") {
				neighbors++
			}
		}
	}
	return map[string]string{"ldp_neighbors": strconv.Itoa(neighbors)}
}

func summarizeVPN(results []models.CommandResult) map[string]string {
	var vrfs int
	for i := range results {
		if !strings.HasPrefix(results[i].Command, "show vrf") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "Name") || strings.HasPrefix(trimmed, "VRF") || strings.Contains(trimmed, "----") {
				continue
			}
			vrfs++
		}
	}
	return map[string]string{"vrf_count": strconv.Itoa(vrfs)}
}

func summarizeStatic(results []models.CommandResult) map[string]string {
	var routes int
	for i := range results {
		if !strings.Contains(results[i].Command, "route") || strings.Contains(results[i].Command, "running-config") {
			continue
		}
		for _, line := range strings.Split(results[i].Output, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "S ") || strings.HasPrefix(trimmed, "S* ") {
				routes++
			}
		}
	}
	return map[string]string{"static_routes": strconv.Itoa(routes)}
}
