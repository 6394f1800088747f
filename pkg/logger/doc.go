// Package logger provides a structured logging interface for the crawl core.
//
// It wraps the zerolog library behind a small Logger interface with support
// for leveled logging, structured fields, pretty console output and rotating
// file output via lumberjack. A global instance is available through
// GetLogger after Initialize has run.
//
// Basic usage:
//
//	cfg := &config.LoggingConfig{Level: "info", File: "logs/crawl.log"}
//	if err := logger.Initialize(cfg); err != nil { ... }
//
//	log := logger.GetLogger().WithField("platform", "xhs")
//	log.InfoWithFields("page fetched", map[string]interface{}{
//	    "keyword": "coffee",
//	    "page":    3,
//	})
package logger
