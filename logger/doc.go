// Package logger provides structured logging for stagekit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying stage fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("stage")
//	log.Debug("phase advanced", logger.Fields(logger.FieldPhase, "draining"))
package logger
