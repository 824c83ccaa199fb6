package asker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/askdb/askdb/internal/config"
)

type LookupFunc = config.LookupFunc

type Config struct {
	APIBaseURL       string        `validate:"required,url"`
	APIKey           string
	Interval         time.Duration `validate:"gt=0"`
	HTTPTimeout      time.Duration `validate:"gt=0"`
	QuestionsPerTick int           `validate:"gt=0"`
	// MaxQuestions stops the driver after that many questions; zero runs
	// until cancelled.
	MaxQuestions     int `validate:"gte=0"`
	WaitForReady     bool
	Seed             int64
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:       "http://localhost:8000",
		Interval:         5 * time.Second,
		HTTPTimeout:      90 * time.Second,
		QuestionsPerTick: 1,
		WaitForReady:     true,
		Seed:             time.Now().UTC().UnixNano(),
	}
}

// LoadConfigFromEnv overlays ASKDB_DEMO_* variables on DefaultConfig. An
// empty ASKDB_DEMO_SEED keeps the time based seed.
func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	bindings := map[string]func(string) error{
		"ASKDB_DEMO_API_URL":            func(v string) error { cfg.APIBaseURL = v; return nil },
		"ASKDB_DEMO_API_KEY":            func(v string) error { cfg.APIKey = v; return nil },
		"ASKDB_DEMO_INTERVAL":           parseInto(time.ParseDuration, &cfg.Interval),
		"ASKDB_DEMO_HTTP_TIMEOUT":       parseInto(time.ParseDuration, &cfg.HTTPTimeout),
		"ASKDB_DEMO_QUESTIONS_PER_TICK": parseInto(strconv.Atoi, &cfg.QuestionsPerTick),
		"ASKDB_DEMO_MAX_QUESTIONS":      parseInto(strconv.Atoi, &cfg.MaxQuestions),
		"ASKDB_DEMO_WAIT_FOR_READY":     parseInto(strconv.ParseBool, &cfg.WaitForReady),
		"ASKDB_DEMO_SEED": func(v string) error {
			if v == "" {
				return nil
			}
			return parseInto(parseInt64, &cfg.Seed)(v)
		},
	}

	var errs []error
	for key, apply := range bindings {
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := apply(strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid demo config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}

func parseInto[T any](parse func(string) (T, error), dst *T) func(string) error {
	return func(raw string) error {
		v, err := parse(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func parseInt64(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
