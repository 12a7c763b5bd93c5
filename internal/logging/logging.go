// Package logging builds the application's zap.Logger, switching between
// production and development encoder configs. Grounded on
// thc1006-nephoran-intent-operator/cmd/secure-porch-patch/main.go's
// initializeLogger.
package logging

import (
	"go.uber.org/zap"
)

// New builds a zap.Logger. debug selects the development config
// (human-readable console output, debug level); otherwise the production
// config is used (JSON output, info level).
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zap.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level.SetLevel(zap.InfoLevel)
	}

	cfg.InitialFields = map[string]interface{}{
		"service": "compliance-rag",
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}
