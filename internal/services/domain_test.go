package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		domain string
		valid  bool
	}{
		{"google.com", true},
		{"sub.example.co", true},
		{"phish-test.com", true},
		{"xn--80ak6aa92e.com", true},
		{"http://google.com", false},
		{"https://google.com", false},
		{"google.com/page", false},
		{"www google.com", false},
		{"", false},
		{"localhost", false},
		{"google.c", false},
		{"google.com.", false},
		{"1.2.3.4", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

// longDomain builds a valid hostname of exactly n characters.
func longDomain(n int) string {
	const tld = ".com"
	var b strings.Builder
	for b.Len() < n-len(tld) {
		if b.Len() > 0 && b.Len()%60 == 0 {
			b.WriteByte('.')
			continue
		}
		b.WriteByte('a')
	}
	return b.String() + tld
}

func TestValidateDomain_LengthFitsControlValues(t *testing.T) {
	require.Greater(t, MaxDomainLength, 60)

	fits := longDomain(MaxDomainLength)
	require.Len(t, fits, MaxDomainLength)
	require.NoError(t, ValidateDomain(fits))
	for _, v := range controlValues(reviewBlocks(fits, "1718000000.123456")) {
		assert.LessOrEqual(t, len(v), maxControlValue, v)
		_, err := token.Decode(v, token.FieldReviewMessageID)
		assert.NoError(t, err)
	}

	tooLong := longDomain(MaxDomainLength + 1)
	err := ValidateDomain(tooLong)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "longer than")

	assert.Error(t, ValidateDomain(longDomain(131)))
}
