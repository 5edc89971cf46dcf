package domain

import (
	"fmt"
	"strings"
)

// AudienceMode selects how a question is phrased before it is sent.
type AudienceMode string

const (
	AudienceBusiness AudienceMode = "business"
	AudienceStudent  AudienceMode = "student"
)

// DefaultAudience is the mode selected on a fresh page.
const DefaultAudience = AudienceBusiness

// ParseAudienceMode accepts the two mode names case-insensitively. An empty
// string yields the default mode.
func ParseAudienceMode(s string) (AudienceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultAudience, nil
	case string(AudienceBusiness):
		return AudienceBusiness, nil
	case string(AudienceStudent):
		return AudienceStudent, nil
	default:
		return "", fmt.Errorf("domain: unknown audience mode %q", s)
	}
}
