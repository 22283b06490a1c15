// Package logger wraps zerolog behind a small Logger interface.
//
// Library packages accept a Logger and fall back to the global one through
// OrGlobal when given nil. The CLI calls Initialize once with the logging
// section of the configuration:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("customer_id", 12).Info("Customer harvested")
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
