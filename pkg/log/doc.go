// Package log is a small wrapper around the standard library logger used by
// every topicsync component.
//
// Each component asks for a named logger once and keeps it in a package
// variable:
//
//	var logger = log.ForService("realtime")
//
//	logger.Infof("connected to %s", url)
//	logger.Debugf("frame: %s", raw) // only with debug enabled
//
// Names may be nested with Named; enabling debug for a parent enables it for
// all children:
//
//	log.EnableDebugFor("livecache")
//	log.ForService("livecache").Named("badges").Debugf("visible")
//
// The package name collides with the standard library log package; alias one
// of them when both are needed.
//
// Tests redirect output with SetOutput(&buf) and assert on the contents.
package log
