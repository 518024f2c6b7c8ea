package core

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

func TestLoadConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("PLATEWATCH_TEST_TOKEN", "secret-token")
	configContent := `port: 9090
logLevel: debug
timezone: UTC
database:
  type: sqlite
  connectionString: ":memory:"
input:
  directory: images
  extensions: [JPG, .png]
localizer:
  tieBreak: first
  padding: 0
  minNeighbors: 3
  aspectRatios: [3, 4]
  preprocess:
    - name: ClaheCommand
      clipLimit: 2.0
reader:
  minLength: 5
  engine:
    type: http
    url: http://localhost:8081/recognize
    timeout: 5s
notification:
  type: twilio
  twilio:
    accountSid: AC123
    authToken: ${PLATEWATCH_TEST_TOKEN}
    fromNumber: "+15550000000"
    toNumbers: ["+15551111111"]
roster:
  - name: Jane Smith
    licensePlate: KA03MG9267
    department: HR
    expectedArrival: "08:30"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.Port)
	}
	if config.SlogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.SlogLevel())
	}
	if strings.Join(config.Input.Extensions, ",") != ".jpg,.png" {
		t.Errorf("Expected normalized extensions, got %v", config.Input.Extensions)
	}
	if config.Localizer.Padding == nil || *config.Localizer.Padding != 0 {
		t.Errorf("Expected explicit zero padding, got %v", config.Localizer.Padding)
	}
	if len(config.Localizer.Preprocess) != 1 || config.Localizer.Preprocess[0].Name != "ClaheCommand" {
		t.Fatalf("Expected one ClaheCommand, got %+v", config.Localizer.Preprocess)
	}
	if config.Localizer.Preprocess[0].Params["clipLimit"] != 2.0 {
		t.Errorf("Expected inline clipLimit param, got %v", config.Localizer.Preprocess[0].Params)
	}
	if config.Reader.Engine.Timeout != 5*time.Second {
		t.Errorf("Expected 5s engine timeout, got %v", config.Reader.Engine.Timeout)
	}
	if config.Notification.Twilio.AuthToken != "secret-token" {
		t.Errorf("Expected expanded auth token, got %q", config.Notification.Twilio.AuthToken)
	}
	if len(config.Roster) != 1 || config.Roster[0].ExpectedArrival != attendance.MustParseTimeOfDay("08:30") {
		t.Errorf("Unexpected roster %+v", config.Roster)
	}

	params := config.cascadeParams()
	if params.MinNeighbors != 3 || len(params.AspectRatios) != 2 {
		t.Errorf("Expected configured cascade params, got %+v", params)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	config, err := LoadConfig("/path/that/does/not/exist/config.yaml")
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if config != nil {
		t.Error("Expected config to be nil when file doesn't exist")
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if config.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Port)
	}
	if config.Database.Type != "sqlite" || config.Database.ConnectionString != "platewatch.db" {
		t.Errorf("Unexpected database defaults %+v", config.Database)
	}
	if config.Input.Directory != "data/images" || config.Output.Directory != "output" {
		t.Errorf("Unexpected directory defaults %q %q", config.Input.Directory, config.Output.Directory)
	}
	if config.Localizer.TieBreak != "largest" {
		t.Errorf("Expected largest tie-break, got %q", config.Localizer.TieBreak)
	}
	if config.Reader.MinLength != 4 {
		t.Errorf("Expected min length 4, got %d", config.Reader.MinLength)
	}
	if config.Notification.Type != "log" {
		t.Errorf("Expected log notifier, got %q", config.Notification.Type)
	}
	if config.Localizer.Preprocess != nil {
		t.Error("Expected nil preprocessing so built-in defaults apply")
	}

	params := config.cascadeParams()
	if params.MinNeighbors != 5 || params.ScaleFactor != 1.1 {
		t.Errorf("Expected default cascade params, got %+v", params)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown database", "database:\n  type: postgres\n", "Type"},
		{"bad tie-break", "localizer:\n  tieBreak: smallest\n", "TieBreak"},
		{"unknown command", "reader:\n  preprocess:\n    - name: NoSuchCommand\n", "unknown command"},
		{"empty command name", "reader:\n  preprocess:\n    - blockSize: 3\n", "empty name"},
		{"duplicate command", "localizer:\n  preprocess:\n    - name: ClaheCommand\n    - name: ClaheCommand\n", "duplicate"},
		{"bad timezone", "timezone: Mars/Olympus\n", "timezone"},
		{"twilio without numbers", "notification:\n  type: twilio\n  twilio:\n    accountSid: AC1\n    authToken: x\n    fromNumber: '+1'\n", "twilio"},
		{"redis without url", "notification:\n  type: redis\n", "redis"},
		{"unknown notifier", "notification:\n  type: pager\n", "Type"},
		{"roster without plate", "roster:\n  - name: Jane\n", "LicensePlate"},
		{"bad engine url", "reader:\n  engine:\n    type: http\n    url: not a url\n", "URL"},
		{"bad arrival time", "roster:\n  - name: Jane\n    licensePlate: AB12\n    expectedArrival: \"25:00\"\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseConfig_EmptyPreprocessDisablesDefaults(t *testing.T) {
	config, err := ParseConfig([]byte("localizer:\n  preprocess: []\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if config.Localizer.Preprocess == nil || len(config.Localizer.Preprocess) != 0 {
		t.Errorf("Expected an explicit empty chain, got %#v", config.Localizer.Preprocess)
	}
}

func TestLocation(t *testing.T) {
	config := DefaultConfig()
	loc, err := config.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Expected local time for empty timezone, got %v %v", loc, err)
	}

	config.Timezone = "UTC"
	loc, err = config.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Expected UTC, got %v %v", loc, err)
	}
}
