package api

import (
	echo "github.com/labstack/echo/v5"
)

// defaultCallerID is used when no caller identity header is present.
const defaultCallerID = "api-client"

// callerIdentity is the request-scoped identity used for ownership checks
// (C7 step 1) and per-identity rate limiting (C2).
type callerIdentity struct {
	CallerID    string
	CallerOrgID *string
	APIKeyID    string
}

// extractCaller reads the mesh hub's identity headers. A2A callers are
// agents and services authenticating with a pre-shared API key rather than
// a human session, so identity travels as plain headers instead of through
// an SSO proxy.
func extractCaller(c *echo.Context) callerIdentity {
	id := callerIdentity{CallerID: defaultCallerID}
	if v := c.Request().Header.Get("X-Caller-ID"); v != "" {
		id.CallerID = v
	}
	if v := c.Request().Header.Get("X-Caller-Org"); v != "" {
		id.CallerOrgID = &v
	}
	id.APIKeyID = c.Request().Header.Get("X-API-Key")
	if id.APIKeyID == "" {
		id.APIKeyID = id.CallerID
	}
	return id
}
