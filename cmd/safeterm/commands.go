package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/safeterm/internal/adapters/audit"
	"github.com/xoelrdgz/safeterm/internal/adapters/input"
	"github.com/xoelrdgz/safeterm/internal/adapters/output"
	"github.com/xoelrdgz/safeterm/internal/adapters/state"
	"github.com/xoelrdgz/safeterm/internal/app"
	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
	"github.com/xoelrdgz/safeterm/internal/tui"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

var printCmd = &cobra.Command{
	Use:   "print [TEXT...]",
	Short: "Sanitize arguments or stdin to stdout",
	Long: `Sanitize the concatenated arguments, or all of stdin when there are
none, and write the result to stdout without adding a newline.

Examples:
  safeterm print "$UNTRUSTED"
  curl -s https://example.com/motd | safeterm print
  NO_COLOR=1 safeterm print < build.log`,
	RunE: runPrint,
}

var teeCmd = &cobra.Command{
	Use:   "tee [FILE...]",
	Short: "Copy stdin to stdout and save sanitized copies",
	Long: `Pass stdin through to stdout line by line and, at end of input, write
the sanitized text to every FILE. Files are truncated and only ever
receive 7-bit ASCII.

Examples:
  ./build.sh 2>&1 | safeterm tee build.log
  ./build.sh | safeterm tee --sanitize-stdout a.log b.log`,
	RunE: runTee,
}

var followCmd = &cobra.Command{
	Use:   "follow [FILE]",
	Short: "Sanitize a growing file line by line",
	Long: `Follow FILE like tail -F, reopening it on rotation, and write every
line sanitized to stdout. Without FILE, or with "-", stdin is followed.
The sanitizer picks up config file changes while running.

Examples:
  safeterm follow /var/log/app.log
  safeterm follow --from-beginning --metrics ./access.log
  safeterm follow --dashboard /var/log/app.log
  safeterm follow --state ~/.cache/safeterm/follow.db /var/log/app.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFollow,
}

var scrubCmd = &cobra.Command{
	Use:   "scrub FILE...",
	Short: "Sanitize many files concurrently",
	Long: `Write a sanitized 7-bit copy of every FILE as <out-dir>/<name><suffix>
and report on each one: scan statistics and the injection attempts found.

Examples:
  safeterm scrub logs/*.log
  safeterm scrub --out-dir clean --report - --workers 8 logs/*.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrub,
}

var auditCmd = &cobra.Command{
	Use:   "audit [FILE]",
	Short: "Report injection attempts in input",
	Long: `Classify the terminal injection attempts in FILE, or stdin, and print
a summary or a JSON report. With --fail-on-findings the exit status is 2
when any finding is CRITICAL.

Examples:
  safeterm audit suspicious.txt
  git log -p | safeterm audit --json --fail-on-findings`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Print the SGR pattern for the current settings",
	RunE:  runPattern,
}

func init() {
	teeCmd.Flags().Bool("sanitize-stdout", false, "write sanitized lines to stdout instead of the original bytes")

	followCmd.Flags().Bool("from-beginning", false, "start at the beginning of the file instead of the end")
	followCmd.Flags().Bool("poll", false, "poll for changes instead of using inotify")
	followCmd.Flags().String("state", "", "bbolt file recording progress, to resume after the last written line")
	followCmd.Flags().Bool("metrics", false, "serve Prometheus metrics and /ready")
	followCmd.Flags().String("metrics-addr", "", "metrics listen address")
	followCmd.Flags().Bool("dashboard", false, "show a live dashboard of redacted lines instead of the output")
	viper.BindPFlag("follow.from_beginning", followCmd.Flags().Lookup("from-beginning"))
	viper.BindPFlag("follow.poll", followCmd.Flags().Lookup("poll"))
	viper.BindPFlag("follow.state", followCmd.Flags().Lookup("state"))
	viper.BindPFlag("metrics.enabled", followCmd.Flags().Lookup("metrics"))
	viper.BindPFlag("metrics.addr", followCmd.Flags().Lookup("metrics-addr"))

	scrubCmd.Flags().IntP("workers", "w", 0, "number of worker goroutines")
	scrubCmd.Flags().String("out-dir", "", "directory for sanitized copies (default: next to each input)")
	scrubCmd.Flags().String("suffix", "", "suffix appended to sanitized file names")
	scrubCmd.Flags().String("report", "", `JSON report file, "-" for stdout`)
	scrubCmd.Flags().String("quarantine", "", "file recording inputs that crashed a worker")
	viper.BindPFlag("scrub.workers", scrubCmd.Flags().Lookup("workers"))
	viper.BindPFlag("scrub.out_dir", scrubCmd.Flags().Lookup("out-dir"))
	viper.BindPFlag("scrub.suffix", scrubCmd.Flags().Lookup("suffix"))
	viper.BindPFlag("scrub.report", scrubCmd.Flags().Lookup("report"))

	auditCmd.Flags().Bool("json", false, "print the report as JSON")
	auditCmd.Flags().Bool("fail-on-findings", false, "exit with status 2 when a CRITICAL finding is reported")
	auditCmd.Flags().Int("max-findings", audit.DefaultMaxFindings, "cap on reported findings, 0 for none")
	auditCmd.Flags().Bool("unique", false, "report each distinct sequence once")
}

func runPrint(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rs, err := newSanitizer(out, app.ReloadOptions{})
	if err != nil {
		return err
	}
	return printSanitized(out, cmd.InOrStdin(), args, rs.Current())
}

// printSanitized writes the concatenated args, or all of in when there are
// none, sanitized and with nothing appended.
func printSanitized(w io.Writer, in io.Reader, args []string, s *sanitize.Sanitizer) error {
	var raw string
	if len(args) > 0 {
		raw = strings.Join(args, "")
	} else {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		raw = string(data)
	}

	text, err := input.DecodeString(raw, encoding)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, s.Sanitize(text))
	return err
}

func runTee(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	// Files are read later, not watched, so --color=auto keeps colors.
	rs, err := newSanitizer(nil, app.ReloadOptions{})
	if err != nil {
		return err
	}

	sanitizeStdout, _ := cmd.Flags().GetBool("sanitize-stdout")
	stats, err := app.Tee(os.Stdin, os.Stdout, args, rs.Current(), app.TeeOptions{
		SanitizeStdout: sanitizeStdout,
		Write:          output.WriteASCIIFile,
	})

	log.Debug().
		Int("files", len(args)).
		Int("redacted", stats.Redacted).
		Int("bytes", stats.InputBytes).
		Msg("Tee finished")
	return err
}

func runFollow(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		reader  ports.LineReader
		offsets *state.BoltOffsetStore
		err     error
	)
	source := "-"
	if len(args) == 1 && args[0] != "-" {
		source = args[0]
		tailer := input.NewFileTailer(source, 1024)
		tailer.SetFromBeginning(viper.GetBool("follow.from_beginning"))
		tailer.SetPoll(viper.GetBool("follow.poll"))

		if path := viper.GetString("follow.state"); path != "" {
			offsets, err = state.OpenBoltOffsetStore(path)
			if err != nil {
				return err
			}
			defer offsets.Close()

			offset, ok, err := offsets.Load(source)
			if err != nil {
				return err
			}
			if ok {
				tailer.SetResumeOffset(offset)
			}
		}
		reader = tailer
	} else {
		in, err := input.NewDecodingReader(os.Stdin, encoding)
		if err != nil {
			return err
		}
		reader = input.NewStreamReader("stdin", in, 1024)
	}

	var (
		follower *app.Follower
		prom     *output.PrometheusMetrics
	)
	rs, err := newSanitizer(os.Stdout, app.ReloadOptions{
		OnReload: func(outcome string) {
			if follower != nil && outcome == "applied" {
				follower.InternalMetrics().IncrementReloads()
			}
			if prom != nil {
				prom.IncrementReloads(outcome)
			}
		},
	})
	if err != nil {
		return err
	}

	dashboard, _ := cmd.Flags().GetBool("dashboard")
	var out io.Writer = os.Stdout
	if dashboard {
		out = io.Discard
	}
	follower = app.NewFollower(reader, rs, out)
	if offsets != nil {
		follower.SetOffsetStore(offsets, source)
	}

	if viper.GetBool("metrics.enabled") {
		prom = output.NewPrometheusMetrics("safeterm", follower.InternalMetrics())
		follower.SetCollector(prom)
		follower.AddObserver(prom)

		health := output.NewHealthChecker(follower, output.DefaultHealthCheckerConfig())
		metricsConfig := output.DefaultMetricsConfig()
		metricsConfig.Addr = viper.GetString("metrics.addr")
		if err := prom.StartServer(metricsConfig, health); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		}
		defer prom.StopServer()
	}

	if viper.ConfigFileUsed() != "" {
		rs.StartWatching()
		defer rs.Stop()
	}

	log.Info().
		Str("source", source).
		Bool("sgr", rs.Current().Matcher().Enabled()).
		Bool("metrics", prom != nil).
		Bool("dashboard", dashboard).
		Msg("Following")

	if !dashboard {
		return follower.Run(ctx)
	}
	return runDashboard(ctx, cancel, follower, source)
}

func runDashboard(ctx context.Context, cancel context.CancelFunc, follower *app.Follower, source string) error {
	tuiApp := tui.NewApp(audit.NewSignatureAuditor(nil))
	if source == "-" {
		source = "stdin"
	}
	tuiApp.SetSource(source)
	follower.AddLineSubscriber(tuiApp)

	// Log lines on stderr would tear the alternate screen.
	if zerolog.GlobalLevel() < zerolog.WarnLevel {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	if err := follower.Start(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tuiApp.SendMetrics(follower.Metrics())
			}
		}
	}()

	var tuiErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Dashboard panic recovered")
				tuiErr = fmt.Errorf("dashboard panic: %v", r)
			}
		}()
		tuiErr = tuiApp.Run()
	}()

	cancel()

	shutdownDone := make(chan struct{})
	go func() {
		follower.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Shutdown timeout, forcing exit")
	}

	return tuiErr
}

// scrubSummary tallies reports for the exit status and the final log line.
type scrubSummary struct {
	mu       sync.Mutex
	total    int
	failed   int
	critical int
	stats    sanitize.Stats
}

func (s *scrubSummary) OnReport(report *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if report.Error != "" {
		s.failed++
		log.Error().Str("path", report.Source).Str("error", report.Error).Msg("Scrub failed")
		return
	}
	s.stats.Add(report.Stats)
	if report.MaxSeverity() == domain.SeverityCritical {
		s.critical++
	}
}

func runScrub(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	rs, err := newSanitizer(nil, app.ReloadOptions{})
	if err != nil {
		return err
	}
	if _, err := input.LookupEncoding(encoding); err != nil {
		return err
	}

	scrubber := app.NewScrubber(rs, audit.NewSignatureAuditor(nil), app.ScrubberConfig{
		OutDir: viper.GetString("scrub.out_dir"),
		Suffix: viper.GetString("scrub.suffix"),
		Decode: func(raw string) (string, error) {
			return input.DecodeString(raw, encoding)
		},
		Write:        output.WriteASCIIFile,
		VisibleBytes: audit.VisibleBytes,
	})

	var reporters []ports.Reporter
	if path := viper.GetString("scrub.report"); path != "" {
		jsonReporter, err := output.NewJSONReporter(output.JSONReporterConfig{FilePath: path})
		if err != nil {
			return fmt.Errorf("failed to create JSON reporter: %w", err)
		}
		defer jsonReporter.Close()
		reporters = append(reporters, jsonReporter)
	}

	quarantine, _ := cmd.Flags().GetString("quarantine")
	pool := app.NewWorkerPool(app.WorkerPoolConfig{
		WorkerCount:    viper.GetInt("scrub.workers"),
		BufferSize:     len(args),
		QuarantinePath: quarantine,
	}, scrubber, reporters)

	summary := &scrubSummary{}
	pool.AddSubscriber(summary)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	pool.Start(ctx)
	for _, path := range args {
		if !pool.SubmitBlocking(ctx, scrubber.Job(path)) {
			break
		}
	}
	pool.Stop()

	log.Info().
		Int("files", summary.total).
		Int("failed", summary.failed).
		Int("critical", summary.critical).
		Int("redacted", summary.stats.Redacted).
		Int("allowed_escapes", summary.stats.Allowed).
		Int("bytes_in", summary.stats.InputBytes).
		Int("bytes_out", summary.stats.OutputBytes).
		Dur("elapsed", time.Since(start)).
		Msg("Scrub finished")

	if summary.failed > 0 {
		return fmt.Errorf("%d of %d files could not be scrubbed", summary.failed, len(args))
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	source := "stdin"
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		source, in = args[0], f
	}

	decoded, err := input.NewDecodingReader(bufio.NewReader(in), encoding)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	text := string(data)

	rs, err := newSanitizer(nil, app.ReloadOptions{})
	if err != nil {
		return err
	}

	auditor := audit.NewSignatureAuditor(nil)
	maxFindings, _ := cmd.Flags().GetInt("max-findings")
	auditor.SetMaxFindings(maxFindings)

	report := domain.NewReport(source)
	_, report.Stats = rs.Current().SanitizeWithStats(text)
	report.VisibleBytes = audit.VisibleBytes(text)
	findings := auditor.Audit(text)
	if unique, _ := cmd.Flags().GetBool("unique"); unique {
		dedup := audit.NewDeduplicator(uint(max(len(findings), 1)))
		findings, report.Repeats = dedup.Filter(findings)
	}
	report.AddFindings(findings...)
	report.SortFindings()

	log.Debug().
		Str("auditor", auditor.Name()).
		Int("signatures", auditor.SignatureCount()).
		Int("findings", len(report.Findings)).
		Msg("Audit complete")

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out, err := report.ToJSONPretty()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(os.Stdout, string(out)); err != nil {
			return err
		}
	} else {
		color, err := keepColor(os.Stdout)
		if err != nil {
			return err
		}
		if err := output.NewSummaryWriter(os.Stdout, color).Write(report); err != nil {
			return err
		}
	}

	if fail, _ := cmd.Flags().GetBool("fail-on-findings"); fail && report.MaxSeverity() == domain.SeverityCritical {
		return &exitError{code: 2}
	}
	return nil
}

func runPattern(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	opts, err := app.LoadOptions(viper.GetViper())
	if err != nil {
		return err
	}
	override, err := sanitizerOverride(nil)
	if err != nil {
		return err
	}
	override(&opts)

	m, err := sanitize.Compile(opts)
	if err != nil {
		return err
	}
	fmt.Println(m.String())
	return nil
}
