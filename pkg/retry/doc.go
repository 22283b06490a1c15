// Package retry re-runs transport calls that failed before any HTTP response
// arrived.
//
// Only errors classified as network errors are retried. A quota error ends the
// run immediately since the remote window resets only after a day.
//
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
//		return fetch(ctx, url)
//	}, cfg)
package retry
