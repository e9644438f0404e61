package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drstein77/salesdash/internal/report"
)

func parse(t *testing.T, args ...string) *Options {
	t.Helper()
	fs := pflag.NewFlagSet("salesdash", pflag.ContinueOnError)
	o := NewOptions()
	o.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return o
}

func TestOptions_Defaults(t *testing.T) {
	o := parse(t)

	assert.Equal(t, ":8080", o.RunAddr())
	assert.Equal(t, "info", o.LogLevel())
	assert.Empty(t, o.DataBaseDSN())
	assert.Equal(t, "migrations", o.MigrationsDir())
	assert.Equal(t, int64(32<<20), o.MaxUploadBytes())
	assert.Equal(t, report.DefaultPreviewRows, o.PreviewRows())

	fields, err := o.Fields()
	require.NoError(t, err)
	assert.Equal(t, report.DefaultFields(), fields)
	assert.NoError(t, o.Validate())
}

func TestOptions_Environment(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URI", "postgres://localhost/sales")
	t.Setenv("DATE_COLUMN", "Date")
	t.Setenv("AMOUNT_COLUMN", "Revenue")
	t.Setenv("CATEGORY_COLUMN", "Segment")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("PREVIEW_ROWS", "10")

	o := parse(t)

	assert.Equal(t, ":9090", o.RunAddr())
	assert.Equal(t, "debug", o.LogLevel())
	assert.Equal(t, "postgres://localhost/sales", o.DataBaseDSN())
	assert.Equal(t, int64(8<<20), o.MaxUploadBytes())
	assert.Equal(t, 10, o.PreviewRows())

	fields, err := o.Fields()
	require.NoError(t, err)
	assert.Equal(t, report.Fields{Date: "Date", Amount: "Revenue", Category: "Segment"}, fields)
}

func TestOptions_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("AMOUNT_COLUMN", "Revenue")

	o := parse(t, "-a", ":7070", "--amount-column", "Net", "--preview-rows", "3")

	assert.Equal(t, ":7070", o.RunAddr())
	assert.Equal(t, 3, o.PreviewRows())
	fields, err := o.Fields()
	require.NoError(t, err)
	assert.Equal(t, "Net", fields.Amount)
}

func TestOptions_InvalidIntegerEnvironment(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "lots")

	o := parse(t)

	assert.Equal(t, int64(32<<20), o.MaxUploadBytes())
}

func TestOptions_ColumnsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amount: Revenue\ncategory: Segment\n"), 0o600))

	o := parse(t, "--columns", path, "--date-column", "Day")

	fields, err := o.Fields()
	require.NoError(t, err)
	assert.Equal(t, report.Fields{Date: "Day", Amount: "Revenue", Category: "Segment"}, fields)
}

func TestLoadColumns_Errors(t *testing.T) {
	_, err := LoadColumns(filepath.Join(t.TempDir(), "missing.yaml"), report.DefaultFields())
	assert.ErrorContains(t, err, "reading columns file")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amount: [unclosed"), 0o600))
	_, err = LoadColumns(path, report.DefaultFields())
	assert.ErrorContains(t, err, "parsing columns file")
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErrs []string
	}{
		{
			name:     "valid",
			args:     nil,
			wantErrs: nil,
		},
		{
			name:     "empty address",
			args:     []string{"--address", ""},
			wantErrs: []string{"run address cannot be empty"},
		},
		{
			name: "several problems at once",
			args: []string{"--max-upload-mb", "0", "--preview-rows=-1", "--amount-column", ""},
			wantErrs: []string{
				"invalid max upload size 0 MB: must be at least 1",
				"invalid preview rows -1: must be at least 1",
				"column names cannot be empty",
			},
		},
		{
			name:     "missing columns file",
			args:     []string{"--columns", "/nonexistent/columns.yaml"},
			wantErrs: []string{"reading columns file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parse(t, tt.args...).Validate()
			if len(tt.wantErrs) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
			for _, want := range tt.wantErrs {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
