// Package agents implements the three-stage analysis pipeline: the
// investigator gathers a company's public claims, the forensic stage
// collects patent evidence, and the synthesizer cross-references the two
// into a structured risk report. The orchestrator runs them strictly in
// order and publishes one progress event per completed stage.
package agents

import "time"

// DefaultStageTimeout bounds a single stage including its provider calls.
const DefaultStageTimeout = 120 * time.Second

// Default retrieval depths per evidence scope.
const (
	DefaultNewsTopK   = 8
	DefaultImageTopK  = 5
	DefaultPatentTopK = 10
)

// Config controls pipeline execution.
type Config struct {
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	NewsTopK     int           `mapstructure:"news_top_k"`
	ImageTopK    int           `mapstructure:"image_top_k"`
	PatentTopK   int           `mapstructure:"patent_top_k"`
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{
		StageTimeout: DefaultStageTimeout,
		NewsTopK:     DefaultNewsTopK,
		ImageTopK:    DefaultImageTopK,
		PatentTopK:   DefaultPatentTopK,
	}
}

func (c Config) withDefaults() Config {
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.NewsTopK <= 0 {
		c.NewsTopK = DefaultNewsTopK
	}
	if c.ImageTopK <= 0 {
		c.ImageTopK = DefaultImageTopK
	}
	if c.PatentTopK <= 0 {
		c.PatentTopK = DefaultPatentTopK
	}
	return c
}
