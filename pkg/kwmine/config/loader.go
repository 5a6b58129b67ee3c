package config

import (
	"fmt"

	"github.com/cognicore/kwmine/pkg/kwmine/stoplist"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	ConfigPath   string
	StoplistPath string
}

// Components holds all loaded configuration components
type Components struct {
	Config   *Config
	Stoplist *stoplist.Manager
}

// Load reads all configuration files and returns validated components.
// Terms from the stoplist file are folded into Config.StopWords so the
// config alone fully describes the run.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.ConfigPath != "" {
		cfg, err := LoadConfig(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	} else {
		cfg := Default()
		comp.Config = &cfg
	}

	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Config.StopWords = append(comp.Config.StopWords, sl.Terms...)
	}

	if err := comp.Config.Validate(); err != nil {
		return nil, err
	}
	comp.Stoplist = comp.Config.Stoplist()

	return comp, nil
}
