package extract

import (
	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
)

// Defaults for extraction thresholds.
const (
	DefaultReviewThreshold     = 0.60
	DefaultCandidateFloor      = 0.35
	DefaultSimilarityThreshold = 0.82
	DefaultDateKeywordWindow   = 3
)

// DefaultFieldWeights drive record-level confidence. Coverage of the
// primary kinds contributes the remaining 0.10.
var DefaultFieldWeights = map[constants.FieldKind]float64{
	constants.FieldName:         0.30,
	constants.FieldExpiryDate:   0.20,
	constants.FieldDosage:       0.15,
	constants.FieldBatchNumber:  0.10,
	constants.FieldManufacturer: 0.10,
	constants.FieldForm:         0.05,
}

const coverageWeight = 0.10

// Config holds thresholds and behavior flags for extraction.
type Config struct {
	ReviewThreshold     float64
	CandidateFloor      float64
	SimilarityThreshold float64
	DateKeywordWindow   int
	ExpiryKeywords      []string
	MfgKeywords         []string
	FieldWeights        map[constants.FieldKind]float64
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ReviewThreshold:     DefaultReviewThreshold,
		CandidateFloor:      DefaultCandidateFloor,
		SimilarityThreshold: DefaultSimilarityThreshold,
		DateKeywordWindow:   DefaultDateKeywordWindow,
		ExpiryKeywords:      defaultExpiryKeywords,
		MfgKeywords:         defaultMfgKeywords,
		FieldWeights:        DefaultFieldWeights,
	}
}

// FromAppConfig maps the environment-backed app config onto an extraction
// Config, filling gaps with defaults.
func FromAppConfig(ac common.ExtractConfig) Config {
	cfg := Config{
		ReviewThreshold:     ac.ReviewThreshold,
		CandidateFloor:      ac.CandidateFloor,
		SimilarityThreshold: ac.SimilarityThreshold,
		DateKeywordWindow:   ac.DateKeywordWindow,
		ExpiryKeywords:      ac.ExpiryKeywords,
		MfgKeywords:         ac.MfgKeywords,
	}
	cfg.applyDefaults()
	return cfg
}

// Default role keywords. Multi-word entries match consecutive tokens.
var defaultExpiryKeywords = []string{
	"exp", "exp.", "expiry", "expires", "expire", "expdate",
	"exp date", "use by", "use before", "best before",
}

var defaultMfgKeywords = []string{
	"mfg", "mfg.", "mfd", "mfd.", "manufactured", "manufacture",
	"mfg date", "packed", "pkd", "pkd.",
}

func (c *Config) applyDefaults() {
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = DefaultReviewThreshold
	}
	if c.CandidateFloor <= 0 {
		c.CandidateFloor = DefaultCandidateFloor
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.DateKeywordWindow <= 0 {
		c.DateKeywordWindow = DefaultDateKeywordWindow
	}
	if len(c.ExpiryKeywords) == 0 {
		c.ExpiryKeywords = defaultExpiryKeywords
	}
	if len(c.MfgKeywords) == 0 {
		c.MfgKeywords = defaultMfgKeywords
	}
	if len(c.FieldWeights) == 0 {
		c.FieldWeights = DefaultFieldWeights
	}
}
