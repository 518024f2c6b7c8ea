package commandstructure

import (
	"fmt"
	"image"
	"log/slog"
	"time"
)

// Command is a single grayscale preprocessing step applied before detection or recognition
type Command interface {
	Name() string
	Execute(img *image.Gray) (*image.Gray, error)
}

// CommandFactory is a function type that creates a command from configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig represents a command configuration with name and parameters
type CommandConfig struct {
	Name   string
	Params map[string]any
}

// CommandRegistry manages the registration and creation of preprocessing commands
type CommandRegistry struct {
	factories map[string]CommandFactory
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		factories: make(map[string]CommandFactory),
	}
}

// Register adds a command factory to the registry
func (r *CommandRegistry) Register(name string, factory CommandFactory) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("command factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a command by name with the given parameters
func (r *CommandRegistry) Create(name string, params map[string]any) (Command, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	command, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create command %s: %w", name, err)
	}

	return command, nil
}

// IsRegistered checks if a command with the given name is registered
func (r *CommandRegistry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// GetRegisteredNames returns a list of all registered command names
func (r *CommandRegistry) GetRegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry is a global registry; the commands package registers itself here in init
var DefaultRegistry = NewCommandRegistry()

// BuildCommands instantiates every configured command up front so configuration
// errors surface at start-up instead of on the first image
func BuildCommands(configs []CommandConfig) ([]Command, error) {
	built := make([]Command, 0, len(configs))
	for i, config := range configs {
		command, err := DefaultRegistry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create command at index %d (%s): %w", i, config.Name, err)
		}
		built = append(built, command)
	}
	return built, nil
}

// CommandInvoker executes a sequence of commands on a grayscale image
type CommandInvoker struct {
	commands []Command
}

// NewCommandInvoker creates a new command invoker
func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// Len returns the number of configured commands
func (i *CommandInvoker) Len() int {
	if i == nil {
		return 0
	}
	return len(i.commands)
}

// Execute applies all commands in sequence; the input image is never modified
func (i *CommandInvoker) Execute(img *image.Gray) (*image.Gray, error) {
	if img == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}
	if i.Len() == 0 {
		return img, nil
	}

	start := time.Now()
	current := img

	for idx, command := range i.commands {
		commandStart := time.Now()

		processed, err := command.Execute(current)
		if err != nil {
			slog.Error("command execution failed",
				"index", idx,
				"command_name", command.Name(),
				"error", err)
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("command completed",
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(commandStart).Milliseconds(),
			"width", processed.Bounds().Dx(),
			"height", processed.Bounds().Dy())

		current = processed
	}

	slog.Debug("preprocessing pipeline completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands))

	return current, nil
}

// ExecuteCommands creates the configured commands from the default registry and applies them in order
func ExecuteCommands(img *image.Gray, commandConfigs []CommandConfig) (*image.Gray, error) {
	commands, err := BuildCommands(commandConfigs)
	if err != nil {
		return nil, err
	}
	return NewCommandInvoker(commands).Execute(img)
}
