package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

// maxSequenceLengthLimit is the largest accepted sanitize.max_sequence_length.
const maxSequenceLengthLimit = 1 << 20

// SetDefaults registers every configuration key with its default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sanitize.sgr", true)
	v.SetDefault("sanitize.exclude_sgr", []string{})
	v.SetDefault("sanitize.max_sequence_length", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetDefault("follow.from_beginning", false)
	v.SetDefault("follow.poll", false)
	v.SetDefault("follow.state", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")

	v.SetDefault("scrub.workers", 4)
	v.SetDefault("scrub.out_dir", "")
	v.SetDefault("scrub.suffix", ".safe")
	v.SetDefault("scrub.report", "")
}

// LoadOptions reads and validates the sanitize.* keys. Exclusion fragments
// are checked later, when the options are compiled.
func LoadOptions(v *viper.Viper) (sanitize.Options, error) {
	opts := sanitize.Options{
		SGR:               v.GetBool("sanitize.sgr"),
		ExcludeSGR:        v.GetStringSlice("sanitize.exclude_sgr"),
		MaxSequenceLength: v.GetInt("sanitize.max_sequence_length"),
	}

	if opts.MaxSequenceLength < 0 || opts.MaxSequenceLength > maxSequenceLengthLimit {
		return sanitize.Options{}, &ConfigValidationError{
			Field:  "sanitize.max_sequence_length",
			Value:  opts.MaxSequenceLength,
			Reason: fmt.Sprintf("must be between 0 (unbounded) and %d", maxSequenceLengthLimit),
		}
	}
	for _, frag := range opts.ExcludeSGR {
		if frag == "" {
			return sanitize.Options{}, &ConfigValidationError{
				Field:  "sanitize.exclude_sgr",
				Value:  frag,
				Reason: "fragments must not be empty",
			}
		}
	}
	return opts, nil
}

// ValidateConfig checks the keys outside sanitize.*.
func ValidateConfig(v *viper.Viper) error {
	if _, err := zerolog.ParseLevel(v.GetString("logging.level")); err != nil {
		return &ConfigValidationError{Field: "logging.level", Value: v.GetString("logging.level"), Reason: "unknown level"}
	}

	workers := v.GetInt("scrub.workers")
	if workers < 1 || workers > 1000 {
		return &ConfigValidationError{Field: "scrub.workers", Value: workers, Reason: "must be between 1 and 1000"}
	}

	if v.GetBool("metrics.enabled") && v.GetString("metrics.addr") == "" {
		return &ConfigValidationError{Field: "metrics.addr", Value: "", Reason: "required when metrics are enabled"}
	}

	if v.GetString("scrub.out_dir") == "" && v.GetString("scrub.suffix") == "" {
		return &ConfigValidationError{Field: "scrub.suffix", Value: "", Reason: "required when scrub.out_dir is empty, or inputs would be overwritten"}
	}

	_, err := LoadOptions(v)
	return err
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}

// ReloadableSanitizer holds the sanitizer built from the current
// configuration and swaps it atomically when the config file changes. A
// reload that fails validation or compilation keeps the previous sanitizer.
type ReloadableSanitizer struct {
	current atomic.Pointer[sanitize.Sanitizer]

	v        *viper.Viper
	cache    *sanitize.Cache
	override func(*sanitize.Options)
	onReload func(outcome string)

	mu       sync.Mutex
	stopped  atomic.Bool
	stopOnce sync.Once
}

type ReloadOptions struct {
	// Override adjusts loaded options before compilation, for command-line
	// flags and environment conventions that must survive reloads.
	Override func(*sanitize.Options)
	// OnReload is called with "applied" or "rejected" after each reload.
	OnReload func(outcome string)
	// CacheSize bounds the compiled matcher cache.
	CacheSize int
}

// NewReloadableSanitizer builds the initial sanitizer from v.
func NewReloadableSanitizer(v *viper.Viper, opts ReloadOptions) (*ReloadableSanitizer, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 8
	}

	r := &ReloadableSanitizer{
		v:        v,
		cache:    sanitize.NewCache(opts.CacheSize),
		override: opts.Override,
		onReload: opts.OnReload,
	}

	s, err := r.build()
	if err != nil {
		return nil, err
	}
	r.current.Store(s)
	return r, nil
}

// Current returns the sanitizer to use for the next input. Callers should
// fetch it per line or per file rather than hold on to it.
func (r *ReloadableSanitizer) Current() *sanitize.Sanitizer {
	return r.current.Load()
}

func (r *ReloadableSanitizer) build() (*sanitize.Sanitizer, error) {
	opts, err := LoadOptions(r.v)
	if err != nil {
		return nil, err
	}
	if r.override != nil {
		r.override(&opts)
	}

	m, err := r.cache.Get(opts)
	if err != nil {
		return nil, err
	}
	return sanitize.NewWithMatcher(m), nil
}

// Reload rebuilds the sanitizer from the configuration already loaded in v.
func (r *ReloadableSanitizer) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.build()
	if err != nil {
		r.notify("rejected")
		return err
	}

	r.current.Store(s)
	r.notify("applied")

	log.Info().
		Bool("sgr", s.Matcher().Enabled()).
		Msg("Sanitizer configuration reloaded")
	return nil
}

func (r *ReloadableSanitizer) notify(outcome string) {
	if r.onReload != nil {
		r.onReload(outcome)
	}
}

// StartWatching reloads whenever viper reports a change to the config file.
func (r *ReloadableSanitizer) StartWatching() {
	r.v.OnConfigChange(func(e fsnotify.Event) {
		if r.stopped.Load() {
			return
		}
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")

		if err := r.Reload(); err != nil {
			log.Error().Err(err).Msg("Invalid configuration, keeping current sanitizer")
		}
	})

	r.v.WatchConfig()
	log.Info().Str("config", r.v.ConfigFileUsed()).Msg("Hot-reload config watching started")
}

// Stop ignores further change events. viper offers no way to remove the
// underlying watch.
func (r *ReloadableSanitizer) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		log.Debug().Msg("Hot-reload config watcher stopped")
	})
}
