package device

import (
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/blake2b"

	"quoin/pkg/platform/middleware/metadata"
)

// HeaderDeviceID carries the caller's self-assigned device identifier.
const HeaderDeviceID = "X-Device-ID"

// CookieDeviceID is the fallback carrier for browser clients.
const CookieDeviceID = "quoin_device"

// Identify extracts the device identifier from the request and derives a
// fingerprint from the client address and user agent. Both land in the
// request context for the device self-service handlers.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deviceID := identifier(r); deviceID != "" {
			ctx = WithDeviceID(ctx, deviceID)
		}
		ctx = WithDeviceFingerprint(ctx, Fingerprint(metadata.ClientIPFromRequest(r), r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identifier prefers the header; browser clients fall back to the cookie.
func identifier(r *http.Request) string {
	if deviceID := r.Header.Get(HeaderDeviceID); deviceID != "" {
		return deviceID
	}
	if cookie, err := r.Cookie(CookieDeviceID); err == nil {
		return cookie.Value
	}
	return ""
}

// Fingerprint derives a stable short digest of the client address and
// user agent. It identifies a device for display, not for authentication;
// two requests from the same address and agent share a fingerprint.
func Fingerprint(clientIP, userAgent string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(clientIP))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
