// Package core holds the engine wide services shared by every subsystem:
// the World, configuration, frame time and logging.
package core

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the global logger
func SetupLogging(cfg LogConfiguration) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
