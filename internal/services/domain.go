package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

// domainPattern accepts bare hostnames: dot separated labels ending in an
// alphabetic TLD of two or more letters. ':' and '/' are outside the label
// class, so URLs with a scheme or a path never match.
var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)

// maxControlValue is Slack's limit on a select option or button value.
const maxControlValue = 150

// MaxDomainLength is the longest domain whose encoded tokens still fit a
// control value once bound to a review message.
var MaxDomainLength = maxDomainLength()

func maxDomainLength() int {
	// same shape as a Slack message ts
	const ts = "0000000000.000000"
	overhead := len(token.Encode(token.ReportToken{ReviewMessageID: ts}))
	for _, c := range token.Classifications {
		n := len(token.Encode(token.ReportToken{ReviewMessageID: ts, Classification: c}))
		overhead = max(overhead, n)
	}
	return maxControlValue - overhead
}

// ValidationError is returned for a report whose domain is not a bare hostname.
type ValidationError struct {
	Domain string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Domain, e.Reason)
}

// ValidateDomain checks the shape of a reported domain.
func ValidateDomain(domain string) error {
	switch {
	case domain == "":
		return &ValidationError{Domain: domain, Reason: "domain is required"}
	case strings.HasPrefix(domain, "http://"), strings.HasPrefix(domain, "https://"):
		return &ValidationError{Domain: domain, Reason: "scheme not allowed"}
	case !domainPattern.MatchString(domain):
		return &ValidationError{Domain: domain, Reason: "not a bare hostname"}
	case len(domain) > MaxDomainLength:
		return &ValidationError{Domain: domain, Reason: fmt.Sprintf("longer than %d characters", MaxDomainLength)}
	}
	return nil
}
