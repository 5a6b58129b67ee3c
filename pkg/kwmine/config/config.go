package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
	"github.com/cognicore/kwmine/pkg/kwmine/stoplist"
)

// Config is the full option set of one mining run. It is passed explicitly
// to the miner; nothing reads it from package state.
type Config struct {
	NGramSizes             []int    `yaml:"ngram_sizes"`
	MinImpressions         int64    `yaml:"min_impressions"`
	MinClicks              int64    `yaml:"min_clicks"`
	HighCTRThreshold       float64  `yaml:"high_ctr_threshold"`
	LowCTRThreshold        float64  `yaml:"low_ctr_threshold"`
	HighConvRateThreshold  float64  `yaml:"high_conv_rate_threshold"`
	TargetCPA              float64  `yaml:"target_cpa"` // 0 disables CPA negatives
	ExpensiveCPAMultiplier float64  `yaml:"expensive_cpa_multiplier"`
	StopWords              []string `yaml:"stop_words"`
	UseDefaultStopWords    bool     `yaml:"use_default_stop_words"`
	MaxResultsPerCategory  int      `yaml:"max_results_per_category"`
	DedupePerQuery         bool     `yaml:"dedupe_per_query"`
	Workers                int      `yaml:"workers"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		NGramSizes:             []int{1, 2, 3},
		MinImpressions:         100,
		MinClicks:              5,
		HighCTRThreshold:       0.05,
		LowCTRThreshold:        0.01,
		HighConvRateThreshold:  0.05,
		TargetCPA:              0,
		ExpensiveCPAMultiplier: 2,
		UseDefaultStopWords:    true,
		MaxResultsPerCategory:  classify.DefaultMaxResults,
		Workers:                1,
	}
}

// Validate reports the first configuration problem, wrapped in
// internalerr.ErrInvalidConfig.
func (c Config) Validate() error {
	if len(c.NGramSizes) == 0 {
		return fmt.Errorf("%w: ngram_sizes is empty", internalerr.ErrInvalidConfig)
	}
	for _, n := range c.NGramSizes {
		if n <= 0 {
			return fmt.Errorf("%w: ngram size %d is not positive", internalerr.ErrInvalidConfig, n)
		}
	}
	if c.MinImpressions < 0 {
		return fmt.Errorf("%w: min_impressions is negative", internalerr.ErrInvalidConfig)
	}
	if c.MinClicks < 0 {
		return fmt.Errorf("%w: min_clicks is negative", internalerr.ErrInvalidConfig)
	}
	if c.HighCTRThreshold <= 0 {
		return fmt.Errorf("%w: high_ctr_threshold must be positive", internalerr.ErrInvalidConfig)
	}
	if c.LowCTRThreshold < 0 {
		return fmt.Errorf("%w: low_ctr_threshold is negative", internalerr.ErrInvalidConfig)
	}
	if c.HighConvRateThreshold <= 0 {
		return fmt.Errorf("%w: high_conv_rate_threshold must be positive", internalerr.ErrInvalidConfig)
	}
	if c.TargetCPA < 0 {
		return fmt.Errorf("%w: target_cpa is negative", internalerr.ErrInvalidConfig)
	}
	if c.TargetCPA > 0 && c.ExpensiveCPAMultiplier <= 0 {
		return fmt.Errorf("%w: expensive_cpa_multiplier must be positive when target_cpa is set", internalerr.ErrInvalidConfig)
	}
	if c.MaxResultsPerCategory <= 0 {
		return fmt.Errorf("%w: max_results_per_category must be positive", internalerr.ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers is negative", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Sizes returns the configured n-gram sizes, deduplicated and ascending.
func (c Config) Sizes() []int {
	seen := make(map[int]struct{}, len(c.NGramSizes))
	out := make([]int, 0, len(c.NGramSizes))
	for _, n := range c.NGramSizes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Thresholds converts the config into classifier thresholds.
func (c Config) Thresholds() classify.Thresholds {
	return classify.Thresholds{
		MinImpressions:         c.MinImpressions,
		MinClicks:              c.MinClicks,
		HighCTR:                c.HighCTRThreshold,
		LowCTR:                 c.LowCTRThreshold,
		HighConvRate:           c.HighConvRateThreshold,
		TargetCPA:              c.TargetCPA,
		ExpensiveCPAMultiplier: c.ExpensiveCPAMultiplier,
		MaxResults:             c.MaxResultsPerCategory,
	}
}

// Stoplist builds the exclusion vocabulary: the built-in list when
// UseDefaultStopWords is set, plus StopWords.
func (c Config) Stoplist() *stoplist.Manager {
	var m *stoplist.Manager
	if c.UseDefaultStopWords {
		m = stoplist.NewDefault()
	} else {
		m = stoplist.NewManager(nil)
	}
	m.Merge(c.StopWords)
	return m
}

// LoadConfig reads a YAML file and overlays it on Default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
