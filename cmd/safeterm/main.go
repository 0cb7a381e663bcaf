package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/xoelrdgz/safeterm/internal/app"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

var (
	cfgFile    string
	colorMode  string
	encoding   string
	excludeSGR []string
	verbose    bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "safeterm",
	Short: "Sanitize untrusted text before it reaches a terminal",
	Long: `safeterm neutralizes terminal escape sequence injection in untrusted
text: cursor movement, screen clearing, title and clipboard access through
OSC, hidden output. A bounded set of color and style sequences (SGR) is
kept; everything else that is not printable ASCII, newline or tab becomes
"_".

Commands:
  - print:   sanitize arguments or stdin to stdout
  - tee:     pass stdin through and save sanitized copies
  - follow:  sanitize a growing file line by line
  - scrub:   sanitize many files concurrently, with JSON reports
  - audit:   report the injection attempts found in input
  - pattern: print the SGR pattern the options compile to`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("safeterm %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "always", "keep SGR color sequences: always, never, or auto (only on a terminal); NO_COLOR forces never")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "utf-8", "input encoding: utf-8, latin1 or windows-1252")
	rootCmd.PersistentFlags().StringSliceVar(&excludeSGR, "exclude-sgr", nil, "SGR code patterns to redact even when colors are kept (RE2 syntax)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON lines")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.json", rootCmd.PersistentFlags().Lookup("log-json"))

	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(teeCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/safeterm")
	}

	app.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("SAFETERM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}
}

// setupLogging sends logs to stderr so stdout carries only sanitized text.
func setupLogging() error {
	if err := app.ValidateConfig(viper.GetViper()); err != nil {
		return err
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, _ := zerolog.ParseLevel(viper.GetString("logging.level"))
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if viper.GetBool("logging.json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}
	return nil
}

// keepColor decides whether SGR sequences survive for output written to out.
// A nil out is a file that nobody watches live.
func keepColor(out io.Writer) (bool, error) {
	return colorEnabled(colorMode, os.Getenv("NO_COLOR"), func() bool {
		if out == nil {
			return true
		}
		f, ok := out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	})
}

// colorEnabled applies the color rules: a non-empty NO_COLOR always wins,
// then --color. auto asks isTerminal.
func colorEnabled(mode, noColor string, isTerminal func() bool) (bool, error) {
	if noColor != "" {
		return false, nil
	}
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return isTerminal(), nil
	default:
		return false, fmt.Errorf("invalid --color %q: use auto, always or never", mode)
	}
}

// sanitizerOverride applies the command-line settings on top of the
// configured options, including after every reload.
func sanitizerOverride(out io.Writer) (func(*sanitize.Options), error) {
	color, err := keepColor(out)
	if err != nil {
		return nil, err
	}
	return overrideOptions(color, excludeSGR), nil
}

func overrideOptions(color bool, exclude []string) func(*sanitize.Options) {
	extra := append([]string(nil), exclude...)

	return func(opts *sanitize.Options) {
		if !color {
			opts.SGR = false
		}
		if len(extra) > 0 {
			opts.ExcludeSGR = append(append([]string(nil), opts.ExcludeSGR...), extra...)
		}
	}
}

func newSanitizer(out io.Writer, opts app.ReloadOptions) (*app.ReloadableSanitizer, error) {
	override, err := sanitizerOverride(out)
	if err != nil {
		return nil, err
	}
	opts.Override = override
	return app.NewReloadableSanitizer(viper.GetViper(), opts)
}

// exitError carries a process exit status that is not a plain failure.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintln(os.Stderr, exit.msg)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "safeterm:", sanitize.String(err.Error()))
		os.Exit(1)
	}
}
