// Package common contains shared constants and sentinel errors used across
// tokenkeeper components.
package common

// AuthorizationHeaderName carries bearer tokens on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "
