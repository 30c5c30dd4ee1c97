// Package device identifies the client device behind a request so
// self-service surfaces can show callers which registration the
// platform matched. Device routes sit outside tenant resolution; the
// package therefore depends on request metadata only, never on tenant
// or session state.
package device

import "context"

type contextKeyDeviceID struct{}
type contextKeyDeviceFingerprint struct{}

// DeviceID returns the caller-supplied device identifier, or empty when
// the request carried none.
func DeviceID(ctx context.Context) string {
	if deviceID, ok := ctx.Value(contextKeyDeviceID{}).(string); ok {
		return deviceID
	}
	return ""
}

// WithDeviceID injects a device identifier into a context.
// Useful for handler tests that don't run the full middleware chain.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceID{}, deviceID)
}

// DeviceFingerprint returns the fingerprint derived for this request,
// or empty when the Identify middleware did not run.
func DeviceFingerprint(ctx context.Context) string {
	if fp, ok := ctx.Value(contextKeyDeviceFingerprint{}).(string); ok {
		return fp
	}
	return ""
}

// WithDeviceFingerprint injects a device fingerprint into a context.
// Useful for handler tests that don't run the full middleware chain.
func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceFingerprint{}, fingerprint)
}
