package logging

import (
	"fmt"
	"io"
	"os"
)

// ConfigureFromSettings configures a logger from settings
func ConfigureFromSettings(level, format, output, filename string) (*Logger, error) {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logFormat, err := ParseLogFormat(format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	var writer io.Writer
	switch output {
	case "console", "":
		writer = os.Stderr
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'file'")
		}
		fileWriter, err := CreateFileOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writer = fileWriter
	case "both":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'both'")
		}
		combinedWriter, err := CreateCombinedOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create combined output: %w", err)
		}
		writer = combinedWriter
	default:
		return nil, fmt.Errorf("invalid log output: %s", output)
	}

	return NewLogger(&Config{
		Level:  logLevel,
		Format: logFormat,
		Output: writer,
	}), nil
}

// InitFromConfig initializes the global logger from configuration settings
func InitFromConfig(level, format, output, filename string) error {
	logger, err := ConfigureFromSettings(level, format, output, filename)
	if err != nil {
		return err
	}

	SetGlobalLogger(logger)
	return nil
}
