// Package api defines the public endpoints and headers for the semgate gateway.
package api

// API version
const Version = "0.1.0"

// API endpoints
const (
	EndpointQuery    = "/api/v1/query"
	EndpointQueryRaw = "/api/v1/query/raw"
	EndpointValidate = "/api/v1/query/validate"
	EndpointDatasets = "/api/v1/datasets"
	EndpointStats    = "/api/v1/stats"
	EndpointHealth   = "/health"
	EndpointReady    = "/ready"
)

// HTTP headers
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
)
