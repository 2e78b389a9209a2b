// Package config provides configuration management for the MCQ paper builder.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mcq-paper/internal/logger"
	"mcq-paper/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "mcq-paper-config.yaml"
	// EnvPrefix is prepended to every environment override, e.g. MCQ_PAPER_FONT_SIZE
	EnvPrefix = "MCQ_PAPER"
	// DefaultFontSize is the body font size in pixels
	DefaultFontSize = 12.0
	// DefaultFontWeight is the body font weight
	DefaultFontWeight = "normal"
	// DefaultFontColor is the body text color
	DefaultFontColor = "#000000"
	// DefaultNumberingStyle is the option label style
	DefaultNumberingStyle = "A)"
	// DefaultAnswerKeyMode disables the answer key
	DefaultAnswerKeyMode = "NONE"
	// DefaultErrorColor marks formulas the renderer rejected
	DefaultErrorColor = "#f44336"
	// DefaultRendererReadyTimeout bounds the wait for the math renderer
	DefaultRendererReadyTimeout = 5 * time.Second
	// DefaultRendererPollInterval is how often readiness is polled
	DefaultRendererPollInterval = 50 * time.Millisecond
	// DefaultOutputDirectory receives generated papers
	DefaultOutputDirectory = "output"
	// DefaultLogLevel is the minimum log level
	DefaultLogLevel = "info"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "mcq-paper", DefaultConfigFileName)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		FontSize:             DefaultFontSize,
		FontWeight:           DefaultFontWeight,
		FontColor:            DefaultFontColor,
		OptionNumberingStyle: DefaultNumberingStyle,
		AnswerKeyMode:        DefaultAnswerKeyMode,
		ErrorColor:           DefaultErrorColor,
		RendererReadyTimeout: DefaultRendererReadyTimeout,
		RendererPollInterval: DefaultRendererPollInterval,
		ClientTypeset:        true,
		OutputDirectory:      DefaultOutputDirectory,
		LogFilePath:          filepath.Join("logs", "mcq-paper.log"),
		LogLevel:             DefaultLogLevel,
	}
}

// newViper builds a viper instance with defaults and environment binding.
func (m *ConfigManager) newViper() *viper.Viper {
	v := viper.New()
	def := defaultConfig()
	v.SetDefault("font_size", def.FontSize)
	v.SetDefault("font_weight", def.FontWeight)
	v.SetDefault("font_color", def.FontColor)
	v.SetDefault("option_numbering_style", def.OptionNumberingStyle)
	v.SetDefault("answer_key_mode", def.AnswerKeyMode)
	v.SetDefault("error_color", def.ErrorColor)
	v.SetDefault("renderer_ready_timeout", def.RendererReadyTimeout)
	v.SetDefault("renderer_poll_interval", def.RendererPollInterval)
	v.SetDefault("client_typeset", def.ClientTypeset)
	v.SetDefault("page_numbers", def.PageNumbers)
	v.SetDefault("output_directory", def.OutputDirectory)
	v.SetDefault("log_file_path", def.LogFilePath)
	v.SetDefault("log_level", def.LogLevel)

	v.SetConfigFile(m.configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads configuration from the config file.
// If the file doesn't exist or cannot be parsed, defaults are used.
// Environment variables with the MCQ_PAPER_ prefix override both.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	v := m.newViper()

	if _, err := os.Stat(m.configPath); err != nil {
		if !os.IsNotExist(err) {
			logger.Error("failed to stat config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
	} else if err := v.ReadInConfig(); err != nil {
		// Invalid file, fall back to defaults plus environment
		logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
		v = m.newViper()
	}

	config := &types.Config{}
	if err := v.Unmarshal(config); err != nil {
		logger.Error("failed to decode config", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to decode config", err)
	}
	m.config = config

	// Apply defaults for empty fields
	if m.config.FontSize <= 0 {
		m.config.FontSize = DefaultFontSize
	}
	if m.config.OptionNumberingStyle == "" {
		m.config.OptionNumberingStyle = DefaultNumberingStyle
	}
	if m.config.ErrorColor == "" {
		m.config.ErrorColor = DefaultErrorColor
	}
	if m.config.RendererReadyTimeout <= 0 {
		m.config.RendererReadyTimeout = DefaultRendererReadyTimeout
	}
	if m.config.RendererPollInterval <= 0 {
		m.config.RendererPollInterval = DefaultRendererPollInterval
	}

	logger.Info("configuration loaded successfully",
		logger.String("path", m.configPath),
		logger.String("numberingStyle", m.config.OptionNumberingStyle),
		logger.String("answerKeyMode", m.config.AnswerKeyMode))
	return nil
}

// Save saves the current configuration to the config file.
// The format follows the file extension (yaml, json, toml).
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	c := m.GetConfig()
	v := viper.New()
	v.Set("font_size", c.FontSize)
	v.Set("font_weight", c.FontWeight)
	v.Set("font_color", c.FontColor)
	v.Set("option_numbering_style", c.OptionNumberingStyle)
	v.Set("answer_key_mode", c.AnswerKeyMode)
	v.Set("error_color", c.ErrorColor)
	v.Set("renderer_ready_timeout", c.RendererReadyTimeout.String())
	v.Set("renderer_poll_interval", c.RendererPollInterval.String())
	v.Set("client_typeset", c.ClientTypeset)
	v.Set("page_numbers", c.PageNumbers)
	v.Set("output_directory", c.OutputDirectory)
	v.Set("log_file_path", c.LogFilePath)
	v.Set("log_level", c.LogLevel)

	if err := v.WriteConfigAs(m.configPath); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetErrorColor returns the color used to flag formulas that failed to render.
func (m *ConfigManager) GetErrorColor() string {
	if m.config != nil && m.config.ErrorColor != "" {
		return m.config.ErrorColor
	}
	return DefaultErrorColor
}

// GetRendererReadyTimeout returns how long to wait for the math renderer.
func (m *ConfigManager) GetRendererReadyTimeout() time.Duration {
	if m.config != nil && m.config.RendererReadyTimeout > 0 {
		return m.config.RendererReadyTimeout
	}
	return DefaultRendererReadyTimeout
}

// GetRendererPollInterval returns the readiness polling interval.
func (m *ConfigManager) GetRendererPollInterval() time.Duration {
	if m.config != nil && m.config.RendererPollInterval > 0 {
		return m.config.RendererPollInterval
	}
	return DefaultRendererPollInterval
}

// GetOutputDirectory returns where generated papers are written.
func (m *ConfigManager) GetOutputDirectory() string {
	if m.config != nil && m.config.OutputDirectory != "" {
		return m.config.OutputDirectory
	}
	return DefaultOutputDirectory
}

// DocumentDefaults returns a DocumentConfig carrying the configured style.
// Paper content (title, header, questions) is left empty for the caller.
func (m *ConfigManager) DocumentDefaults() (types.DocumentConfig, error) {
	c := m.GetConfig()

	weight, err := types.ParseFontWeight(c.FontWeight)
	if err != nil {
		return types.DocumentConfig{}, types.NewAppError(types.ErrConfig, "invalid font_weight in configuration", err)
	}
	mode, err := types.ParseAnswerKeyMode(c.AnswerKeyMode)
	if err != nil {
		return types.DocumentConfig{}, types.NewAppError(types.ErrConfig, "invalid answer_key_mode in configuration", err)
	}

	color := c.FontColor
	if color == "" {
		color = DefaultFontColor
	}
	size := c.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}
	style := c.OptionNumberingStyle
	if style == "" {
		style = DefaultNumberingStyle
	}

	return types.DocumentConfig{
		FontSize:             size,
		FontWeight:           weight,
		FontColor:            color,
		OptionNumberingStyle: style,
		AnswerKeyDisplayMode: mode,
	}, nil
}

// LoggerConfig maps the configured log settings onto a logger.Config.
func (m *ConfigManager) LoggerConfig() *logger.Config {
	c := m.GetConfig()
	lc := logger.DefaultConfig()
	if c.LogFilePath != "" {
		lc.LogFilePath = c.LogFilePath
	}
	lc.Level = logger.ParseLevel(c.LogLevel)
	return lc
}
