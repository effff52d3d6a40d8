package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwage/internal/config"
	"shiftwage/internal/ics"
	appLog "shiftwage/internal/log"
)

func TestApplyFlags(t *testing.T) {
	conf := config.DefaultConfig()
	applyFlags(conf, flagConfig{input: "other.ics", rate: 20, rateSet: true, order: "first_seen", logLevel: "error"})

	assert.Equal(t, "other.ics", conf.Input)
	assert.Equal(t, 20.0, conf.HourlyRate)
	assert.Equal(t, "first_seen", conf.Order)
	assert.Equal(t, "error", conf.LogLevel)
	assert.Equal(t, config.DefaultTimezone, conf.Timezone)
	assert.Empty(t, conf.Period)
}

func TestApplyFlagsRate(t *testing.T) {
	tests := []struct {
		name    string
		flags   flagConfig
		want    float64
		wantErr bool
	}{
		{name: "unset keeps config", flags: flagConfig{}, want: config.DefaultConfig().HourlyRate},
		{name: "explicit rate", flags: flagConfig{rate: 22.5, rateSet: true}, want: 22.5},
		{name: "explicit zero", flags: flagConfig{rate: 0, rateSet: true}, want: 0, wantErr: true},
		{name: "negative", flags: flagConfig{rate: -4, rateSet: true}, want: -4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := config.DefaultConfig()
			applyFlags(conf, tt.flags)
			assert.Equal(t, tt.want, conf.HourlyRate)
			if tt.wantErr {
				require.Error(t, conf.Validate())
			} else {
				require.NoError(t, conf.Validate())
			}
		})
	}
}

func TestApplyLogLevel(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() {
		appLog.SetOutput(os.Stderr)
		appLog.SetLevel(appLog.LevelInfo)
	})

	conf := config.DefaultConfig()
	conf.LogLevel = "error"
	require.NoError(t, applyLogLevel(conf, false))
	appLog.Info("quiet")
	assert.Empty(t, buf.String())

	require.NoError(t, applyLogLevel(conf, true))
	appLog.Debug("loud")
	assert.Contains(t, buf.String(), "loud")

	conf.LogLevel = "chatty"
	require.Error(t, applyLogLevel(conf, false))
}

func TestParseAt(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	got, err := parseAt("", rome)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseAt("2024-02-14", rome)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 2, 14, 0, 0, 0, 0, rome)))

	got, err = parseAt("2024-02-14T10:00:00Z", rome)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)))

	_, err = parseAt("next friday", rome)
	require.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "io", errorKind(fmt.Errorf("wrap: %w", ics.ErrIO)))
	assert.Equal(t, "parse", errorKind(ics.ErrParse))
	assert.Equal(t, "missing_field", errorKind(&ics.MissingFieldError{Field: "SUMMARY"}))
	assert.Equal(t, "fetch_status", errorKind(fmt.Errorf("%w: %w", ics.ErrIO, &ics.StatusError{Code: 404, Status: "404 Not Found"})))
	assert.Equal(t, "fetch_not_modified", errorKind(fmt.Errorf("%w: %w", ics.ErrIO, ics.ErrNotModifiedUncached)))
	assert.Equal(t, "other", errorKind(fmt.Errorf("boom")))
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := run(context.Background(), flagConfig{
		configPath: filepath.Join(dir, "shiftwage.yaml"),
		input:      filepath.Join(dir, "missing.ics"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ics.ErrIO)
}

func TestRunReportsFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shiftwage.yaml"),
		[]byte("cache_dir: "+filepath.Join(dir, "cache")+"\n"), 0o600))

	err := run(context.Background(), flagConfig{
		configPath: filepath.Join(dir, "shiftwage.yaml"),
		input:      srv.URL + "/shifts.ics",
	})
	require.Error(t, err)
	assert.Equal(t, "fetch_status", errorKind(err))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	err := run(context.Background(), flagConfig{
		configPath: filepath.Join(dir, "shiftwage.yaml"),
		timezone:   "Nowhere/Special",
	})
	require.Error(t, err)
}
