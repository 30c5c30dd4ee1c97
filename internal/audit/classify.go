package audit

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// authPathPrefix marks token issuance and other authentication endpoints,
// which are classified as LOGIN rather than by HTTP method.
const authPathPrefix = "/api/auth"

// apiPrefix is stripped before resource extraction so /api/estimates/123
// and /healthz both classify by their first meaningful segment.
const apiPrefix = "/api"

// ClassifyAction derives the audit action from the HTTP method, the request
// path and the final response status.
func ClassifyAction(method, path string, status int) string {
	if strings.HasPrefix(path, authPathPrefix) {
		if status >= http.StatusBadRequest {
			return ActionLogin + FailedSuffix
		}
		return ActionLogin
	}

	if status >= http.StatusBadRequest {
		return strings.ToUpper(method) + FailedSuffix
	}

	switch method {
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}

// ClassifyResource extracts the resource type from the first path segment
// after the /api prefix. Paths outside /api classify by their first
// segment, so /healthz audits as resource "healthz".
func ClassifyResource(path string) string {
	trimmed := strings.TrimPrefix(path, apiPrefix)
	for _, seg := range strings.Split(trimmed, "/") {
		if seg != "" {
			return strings.ToLower(seg)
		}
	}
	return "root"
}

// ClassifyResourceID picks the resource identifier for the entry: the
// route's id parameter when the router bound one, otherwise the first
// UUID-shaped or all-numeric path segment after the resource segment.
func ClassifyResourceID(path, routeParam string) string {
	if routeParam != "" {
		return routeParam
	}

	trimmed := strings.TrimPrefix(path, apiPrefix)
	segs := strings.Split(trimmed, "/")
	seen := false
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		if !seen {
			// First non-empty segment is the resource type itself.
			seen = true
			continue
		}
		if isIDShaped(seg) {
			return seg
		}
	}
	return ""
}

func isIDShaped(seg string) bool {
	if _, err := uuid.Parse(seg); err == nil {
		return true
	}
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
