package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDSN(name string) string {
	return fmt.Sprintf("file:%s-%d?mode=memory&cache=shared&_foreign_keys=on", name, time.Now().UnixNano())
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Structure(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "healthdata", root.Use)
	assert.True(t, root.SilenceUsage)

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["pipeline"])
	assert.True(t, names["schemas"])

	run, _, err := root.Find([]string{"pipeline", "run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("start"))
	assert.NotNil(t, run.Flags().Lookup("end"))
}

func TestLoadSettings_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthdata.yaml")
	content := `
db:
  driver: postgres
  dsn: postgres://localhost/healthdata
log:
  level: debug
service_name: gateway-test
listing:
  default_limit: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HEALTHDATA_LOG_LEVEL", "warn")

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path, "--db-driver", "sqlite3"}))

	cfg, err := loadSettings(root)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DB.Driver, "explicit flag wins over file")
	assert.Equal(t, "postgres://localhost/healthdata", cfg.DB.DSN, "file wins over flag default")
	assert.Equal(t, "warn", cfg.Log.Level, "env wins over file")
	assert.Equal(t, time.Minute, cfg.GrantCacheTTL)
	assert.True(t, cfg.Migrate)
	assert.Equal(t, "gateway-test", cfg.Service["service_name"])
	assert.Contains(t, cfg.Service, "listing")
	assert.NotContains(t, cfg.Service, "pipeline")
}

func TestLoadSettings_MissingConfigFile(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err := loadSettings(root)
	assert.Error(t, err)
}

func TestSettingsLocation(t *testing.T) {
	loc, err := settings{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = settings{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "empty selects previous day"},
		{
			name:      "iso dates cover whole days",
			start:     "2024-03-01",
			end:       "2024-03-02",
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 2, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "timestamps are kept",
			start:     "2024-03-01T06:00:00Z",
			end:       "2024-03-01T18:00:00Z",
			wantStart: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
		},
		{name: "start only", start: "2024-03-01", wantErr: true},
		{name: "reversed", start: "2024-03-02", end: "2024-03-01", wantErr: true},
		{name: "garbage", start: "yesterday", end: "today", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseWindow(tc.start, tc.end, time.UTC)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.wantStart.Equal(start), "start %s", start)
			assert.True(t, tc.wantEnd.Equal(end), "end %s", end)
		})
	}
}

func TestZerologLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newZerologLogger(&buf, "json", "debug")
	provider := zerologProvider{root: logger}

	provider.GetLogger("healthdata.pipeline").Info("pipeline run finished", "succeeded", 2, "error", fmt.Errorf("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pipeline run finished", entry["message"])
	assert.Equal(t, "healthdata.pipeline", entry["logger"])
	assert.Equal(t, float64(2), entry["succeeded"])
	assert.Equal(t, "boom", entry["error"])
}

func TestZerologLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newZerologLogger(&buf, "json", "warn")
	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown", "dangling")
	assert.Contains(t, buf.String(), `"extra":"dangling"`)
}

func TestMigrateCommand(t *testing.T) {
	out, err := executeRoot(t, "--db-dsn", memoryDSN("cli-migrate"), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
}

func TestSchemasListCommand_IncludesBuiltinProvider(t *testing.T) {
	out, err := executeRoot(t, "--db-dsn", memoryDSN("cli-schemas"), "schemas", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "omh:fitbit:activity")
	assert.Contains(t, out, "omh:fitbit:sleep")
	assert.Contains(t, out, "total: 2")
}

func TestPipelineRunCommand_NoUnits(t *testing.T) {
	out, err := executeRoot(t,
		"--db-dsn", memoryDSN("cli-pipeline"),
		"pipeline", "run", "--start", "2024-03-01", "--end", "2024-03-01",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "window: 2024-03-01T00:00:00Z .. 2024-03-01T23:59:59Z")
	assert.NotContains(t, out, "failed")
}

func TestPipelineRunCommand_RejectsHalfWindow(t *testing.T) {
	_, err := executeRoot(t, "--db-dsn", memoryDSN("cli-half"), "pipeline", "run", "--start", "2024-03-01")
	assert.Error(t, err)
}
