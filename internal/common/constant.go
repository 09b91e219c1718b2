package common

// AuthorizationHeaderName is the HTTP header / gRPC metadata key carrying
// the access token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the access token in the authorization header.
const BearerPrefix = "Bearer "
