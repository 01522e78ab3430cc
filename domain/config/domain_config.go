package config

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Visibility
	HideThreshold float64

	// Graph expansion
	DefaultExpandDepth int
	MaxExpandDepth     int
	DefaultDirection   string

	// Paper constraints
	MaxTitleLength    int
	MaxAbstractLength int
	MaxAuthors        int
	MaxKeywords       int

	// Query limits
	MaxSearchQueryLength int
	MaxSearchResults     int
	MaxBatchSize         int

	// Validation settings
	AllowSelfCitations bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		HideThreshold: -0.5,

		DefaultExpandDepth: 1,
		MaxExpandDepth:     5,
		DefaultDirection:   "both",

		MaxTitleLength:    500,
		MaxAbstractLength: 20000,
		MaxAuthors:        100,
		MaxKeywords:       50,

		MaxSearchQueryLength: 200,
		MaxSearchResults:     100,
		MaxBatchSize:         100,

		AllowSelfCitations: false,
	}
}
