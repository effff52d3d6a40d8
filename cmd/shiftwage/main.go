package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"shiftwage/internal/config"
	"shiftwage/internal/ics"
	appLog "shiftwage/internal/log"
	"shiftwage/internal/payroll"
)

// flagConfig holds CLI flag values. Zero values mean "not set".
type flagConfig struct {
	configPath string
	envFile    string
	input      string
	rate       float64
	rateSet    bool
	timezone   string
	period     string
	at         string
	order      string
	logLevel   string
	initConfig bool
	verbose    bool
}

func main() {
	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	if flags.initConfig {
		if err := config.Save(flags.configPath, config.DefaultConfig()); err != nil {
			appLog.Error("failed to write default config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Info("default config written", "config_path", flags.configPath)
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		appLog.Error("report failed", err, "kind", errorKind(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := conf.LoadEnv(flags.envFile); err != nil {
		return err
	}
	applyFlags(conf, flags)
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := applyLogLevel(conf, flags.verbose); err != nil {
		return err
	}

	loc, err := conf.Location()
	if err != nil {
		return err
	}
	order, err := payroll.ParseOrder(conf.Order)
	if err != nil {
		return err
	}
	at, err := parseAt(flags.at, loc)
	if err != nil {
		return err
	}

	appLog.Debug("effective config",
		"input", conf.Input,
		"hourly_rate", conf.HourlyRate,
		"timezone", loc.String(),
		"order", order,
		"period", conf.Period,
		"log_level", conf.LogLevel,
	)

	opts := payroll.Options{
		Input:          conf.Input,
		HourlyRate:     conf.HourlyRate,
		Location:       loc,
		Order:          order,
		Period:         conf.Period,
		At:             at,
		MaxOccurrences: conf.MaxOccurrences,
	}
	if ics.IsURL(conf.Input) {
		opts.Fetcher = ics.NewFetcher(conf.CacheDir)
	}

	report, err := payroll.Generate(ctx, opts)
	if err != nil {
		return err
	}
	if len(report.Truncated) > 0 {
		appLog.Info("recurrence expansion hit max_occurrences; totals may be short",
			"uids", strings.Join(report.Truncated, ","),
			"max_occurrences", conf.MaxOccurrences,
		)
	}

	out := bufio.NewWriter(os.Stdout)
	if _, err := report.WriteTo(out); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}

	appLog.Debug("report written", "employees", len(report.Entries), "shifts", report.Shifts)
	for _, e := range report.Entries {
		appLog.Debug("employee total",
			"employee", e.Employee,
			"hours", e.Hours,
			"shifts", e.Shifts,
			"total", payroll.FormatAmount(e.Total),
		)
	}
	return nil
}

// applyLogLevel sets the configured level; -v always means debug.
func applyLogLevel(conf *config.Config, verbose bool) error {
	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return nil
}

// applyFlags lets explicitly set flags win over file and environment values.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.input != "" {
		conf.Input = flags.input
	}
	if flags.rateSet {
		conf.HourlyRate = flags.rate
	}
	if flags.timezone != "" {
		conf.Timezone = flags.timezone
	}
	if flags.period != "" {
		conf.Period = flags.period
	}
	if flags.order != "" {
		conf.Order = flags.order
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
}

// parseAt accepts RFC 3339 or a plain date interpreted in loc.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func errorKind(err error) string {
	var status *ics.StatusError
	switch {
	case errors.As(err, &status):
		return "fetch_status"
	case errors.Is(err, ics.ErrNotModifiedUncached):
		return "fetch_not_modified"
	case errors.Is(err, ics.ErrIO):
		return "io"
	case errors.Is(err, ics.ErrParse):
		return "parse"
	case errors.Is(err, ics.ErrMissingField):
		return "missing_field"
	default:
		return "other"
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "shiftwage.yaml", "Path to config file (missing file means defaults)")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with SHIFTWAGE_* overrides")
	flag.StringVar(&cfg.input, "input", "", "Calendar file path or http(s) URL (overrides config)")
	flag.Float64Var(&cfg.rate, "rate", 0, "Hourly rate (overrides config)")
	flag.StringVar(&cfg.timezone, "tz", "", "IANA timezone for floating times and pay periods (overrides config)")
	flag.StringVar(&cfg.period, "period", "", "Cron expression delimiting pay periods, e.g. \"0 0 1 * *\"")
	flag.StringVar(&cfg.at, "at", "", "Report on the pay period containing this time (RFC 3339 or YYYY-MM-DD)")
	flag.StringVar(&cfg.order, "order", "", "Output order: title or first_seen")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info or error (overrides config)")
	flag.BoolVar(&cfg.initConfig, "init-config", false, "Write a default config file to -config and exit")
	flag.BoolVar(&cfg.verbose, "v", false, "Debug logging")

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "rate" {
			cfg.rateSet = true
		}
	})

	return cfg
}
