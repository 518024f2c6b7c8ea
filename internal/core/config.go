package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/backend/ocr"
	"github.com/jo-hoe/platewatch/internal/common"
	"github.com/jo-hoe/platewatch/internal/notify"
	"github.com/jo-hoe/platewatch/internal/plate"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type Size struct {
	Width  int `yaml:"width" validate:"gte=0"`
	Height int `yaml:"height" validate:"gte=0"`
}

type Input struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	// SVGFallback is the render size for SVG frames that declare no width and height
	SVGFallback Size `yaml:"svgFallback"`
}

type Output struct {
	Directory string `yaml:"directory"`
}

type Localizer struct {
	TieBreak     string          `yaml:"tieBreak" validate:"omitempty,oneof=largest first"`
	Padding      *int            `yaml:"padding" validate:"omitempty,gte=0"`
	ScaleFactor  float64         `yaml:"scaleFactor" validate:"omitempty,gt=1"`
	MinNeighbors *int            `yaml:"minNeighbors" validate:"omitempty,gte=0"`
	MinSize      Size            `yaml:"minSize"`
	MaxSize      Size            `yaml:"maxSize"`
	AspectRatios []float64       `yaml:"aspectRatios" validate:"dive,gt=0"`
	Preprocess   []CommandConfig `yaml:"preprocess"`
}

type Reader struct {
	MinLength  int              `yaml:"minLength" validate:"gte=0"`
	Preprocess []CommandConfig  `yaml:"preprocess"`
	Engine     ocr.EngineConfig `yaml:"engine"`
}

type Notification struct {
	Type      string              `yaml:"type" validate:"oneof=log twilio redis"`
	QueueSize int                 `yaml:"queueSize" validate:"gte=0"`
	Twilio    notify.TwilioConfig `yaml:"twilio"`
	Redis     notify.RedisConfig  `yaml:"redis"`
}

type ServiceConfig struct {
	Port         int                   `yaml:"port" validate:"gte=0,lte=65535"`
	LogLevel     string                `yaml:"logLevel" validate:"oneof=debug info warn error"`
	Timezone     string                `yaml:"timezone"`
	Database     Database              `yaml:"database"`
	Input        Input                 `yaml:"input"`
	Output       Output                `yaml:"output"`
	Localizer    Localizer             `yaml:"localizer"`
	Reader       Reader                `yaml:"reader"`
	Notification Notification          `yaml:"notification"`
	Roster       []attendance.Employee `yaml:"roster" validate:"dive"`
}

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses, defaults and validates YAML configuration
func ParseConfig(data []byte) (*ServiceConfig, error) {
	// Parse YAML
	var config ServiceConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "platewatch.db"
	}
	if c.Input.Directory == "" {
		c.Input.Directory = "data/images"
	}
	if len(c.Input.Extensions) == 0 {
		c.Input.Extensions = []string{".jpg", ".jpeg", ".png"}
	}
	for i, ext := range c.Input.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Input.Extensions[i] = ext
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "output"
	}
	if c.Localizer.TieBreak == "" {
		c.Localizer.TieBreak = string(plate.TieBreakLargest)
	}
	if c.Reader.MinLength == 0 {
		c.Reader.MinLength = plate.MinTextLength
	}
	if c.Notification.Type == "" {
		c.Notification.Type = "log"
	}
}

// Validate checks struct tags, command chains and notifier settings
func (c *ServiceConfig) Validate() error {
	if err := common.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateCommands(c.Localizer.Preprocess); err != nil {
		return fmt.Errorf("invalid localizer preprocessing: %w", err)
	}
	if err := validateCommands(c.Reader.Preprocess); err != nil {
		return fmt.Errorf("invalid reader preprocessing: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Notification.Type {
	case "twilio":
		t := c.Notification.Twilio
		if t.AccountSID == "" || t.AuthToken == "" || t.FromNumber == "" || len(t.ToNumbers) == 0 {
			return fmt.Errorf("twilio notification requires accountSid, authToken, fromNumber and toNumbers")
		}
	case "redis":
		if c.Notification.Redis.URL == "" {
			return fmt.Errorf("redis notification requires url")
		}
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is registered
		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

// toCommandConfigs converts YAML command entries into registry configs
func toCommandConfigs(commands []CommandConfig) []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, 0, len(commands))
	for _, cmd := range commands {
		configs = append(configs, commandstructure.CommandConfig{Name: cmd.Name, Params: cmd.Params})
	}
	return configs
}

// Location returns the time zone arrivals are classified in, local time when unset
func (c *ServiceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps the configured log level to a slog level
func (c *ServiceConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// cascadeParams merges configured detector settings over the defaults
func (c *ServiceConfig) cascadeParams() plate.CascadeParams {
	params := plate.DefaultCascadeParams()
	l := c.Localizer
	if l.ScaleFactor > 0 {
		params.ScaleFactor = l.ScaleFactor
	}
	if l.MinNeighbors != nil {
		params.MinNeighbors = *l.MinNeighbors
	}
	if l.MinSize.Width > 0 && l.MinSize.Height > 0 {
		params.MinSize.X, params.MinSize.Y = l.MinSize.Width, l.MinSize.Height
	}
	if l.MaxSize.Width > 0 && l.MaxSize.Height > 0 {
		params.MaxSize.X, params.MaxSize.Y = l.MaxSize.Width, l.MaxSize.Height
	}
	if len(l.AspectRatios) > 0 {
		params.AspectRatios = l.AspectRatios
	}
	return params
}
