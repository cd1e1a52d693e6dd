// Package auth provides API key authentication for bumpwatch-server.
//
// APIKeyInterceptor(mode, header, key) returns a gRPC UnaryServerInterceptor
// that validates the API key from the named gRPC metadata header. It guards
// the impact receiver.
//
// RequireAPIKey(mode, header, key, next) is the HTTP equivalent for the REST
// API: writes (PATCH) need the key, reads do not.
//
// When mode != "apikey" or key == "", all calls pass through (useful for local
// development with auth disabled). When the key is incorrect or absent,
// the interceptor returns codes.Unauthenticated and the middleware 401.
package auth
