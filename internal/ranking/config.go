// Package ranking scores live passages against a query embedding and boosts
// passages whose titles carry a code named in the query.
package ranking

// Config holds all configuration for the ranking system.
type Config struct {
	TopK      int     `yaml:"top_k"`      // default: 3
	MinScore  float64 `yaml:"min_score"`  // default: 0.2, results must score strictly above
	CodeBoost float64 `yaml:"code_boost"` // default: 0.5, added per matching code token
	// Stopwords are never treated as codes (compared case-insensitively).
	Stopwords []string `yaml:"stopwords"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{TopK: 3, MinScore: 0.2, CodeBoost: 0.5}
}

// ApplyDefaults fills zero values. MinScore 0 is a valid floor and is kept.
func (c *Config) ApplyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.CodeBoost < 0 {
		c.CodeBoost = 0
	}
}
