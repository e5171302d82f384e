package tenant

import "strings"

// RuleConfig is the typed form of a tenant's endorsement rules. It is
// parsed once at the configuration boundary from the comma-joined text
// stored on the tenant row.
type RuleConfig struct {
	// IgnoredRepresentatives holds representative codes whose documents
	// are skipped.
	IgnoredRepresentatives []string

	// Exception, when present, re-admits one exact (representative,
	// document type) combination despite the ignore list.
	Exception *RuleException
}

// RuleException is the single configured override pair
type RuleException struct {
	Representative string
	DocType        string
}

// ParseRuleConfig builds a RuleConfig from the stored text fields.
// Empty entries in the comma-joined list are dropped; an exception is
// only present when both halves of the pair are configured.
func ParseRuleConfig(ignoredCSV, excRepresentative, excDocType string) RuleConfig {
	cfg := RuleConfig{}

	for _, part := range strings.Split(ignoredCSV, ",") {
		code := strings.TrimSpace(part)
		if code != "" {
			cfg.IgnoredRepresentatives = append(cfg.IgnoredRepresentatives, code)
		}
	}

	excRepresentative = strings.TrimSpace(excRepresentative)
	excDocType = strings.TrimSpace(excDocType)
	if excRepresentative != "" && excDocType != "" {
		cfg.Exception = &RuleException{
			Representative: excRepresentative,
			DocType:        excDocType,
		}
	}

	return cfg
}

// IgnoresRepresentative reports whether the representative code is on
// the ignore list.
func (c RuleConfig) IgnoresRepresentative(code string) bool {
	for _, ignored := range c.IgnoredRepresentatives {
		if ignored == code {
			return true
		}
	}
	return false
}

// ExceptionMatches reports whether the (representative, document type)
// pair matches the configured exception exactly.
func (c RuleConfig) ExceptionMatches(representative, docType string) bool {
	if c.Exception == nil {
		return false
	}
	return c.Exception.Representative == representative && c.Exception.DocType == docType
}
