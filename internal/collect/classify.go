package collect

import (
	"strings"

	"github.com/zumanm1/netaudit/pkg/models"
)

// errorPhrases are device rejections of the command itself.
var errorPhrases = []string{
	"% invalid input detected",
	"% incomplete command",
	"% ambiguous command",
	"% bad ip address",
	"% unknown command",
	"command authorization failed",
	"% authorization failed",
}

// notConfiguredPhrases are the platform-specific "feature absent" responses.
// Matching output is a successful result with an empty data payload, never a
// failure.
var notConfiguredPhrases = []string{
	"% bgp not active",
	"bgp instance 'default' not active",
	"bgp is not running",
	"% ospf not enabled",
	"no ospf processes running",
	"% ipv4 routing not enabled",
	"% mpls forwarding is not enabled",
	"no mpls interfaces",
	"ldp is not enabled",
	"mpls ldp is not running",
	"% no vrfs configured",
	"% vrf table is empty",
	"% no matching routes found",
	"no lines configured",
}

// Classify buckets a command transcript. Empty output (e.g. a section filter
// with no matches) counts as NotConfigured.
func Classify(output string) models.ResultKind {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return models.ResultNotConfigured
	}

	lower := strings.ToLower(trimmed)
	for _, p := range errorPhrases {
		if strings.Contains(lower, p) {
			return models.ResultError
		}
	}
	for _, p := range notConfiguredPhrases {
		if strings.Contains(lower, p) {
			return models.ResultNotConfigured
		}
	}
	return models.ResultSuccess
}
