// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the global logger instance
var Logger = zap.NewNop()

// New builds a logger writing to stderr. Debug selects the development
// config with debug level and console encoding; otherwise the production
// config is used.
func New(debug bool, appName, appVersion string) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	// Add default fields
	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}
	return cfg.Build()
}

// Setup replaces Logger and the zap globals. On failure Logger falls back to
// an example logger and the build error is returned.
func Setup(debug bool, appName, appVersion string) error {
	logger, err := New(debug, appName, appVersion)
	if err != nil {
		Logger = zap.NewExample()
		return err
	}
	Logger = logger
	zap.ReplaceGlobals(Logger)
	return nil
}
