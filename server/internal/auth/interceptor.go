package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// ModeAPIKey is the only mode that enforces a key.
const ModeAPIKey = "apikey"

// Enabled reports whether mode and key require callers to authenticate.
func Enabled(mode, key string) bool { return mode == ModeAPIKey && key != "" }

// Valid compares a presented key with the configured one in constant time.
// An empty presented key is never valid.
func Valid(presented, key string) bool {
	return presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1
}

// APIKeyInterceptor rejects unary calls whose metadata does not carry key
// under header with codes.Unauthenticated. When Enabled(mode, key) is
// false every call passes. header is matched case-insensitively, since
// gRPC lowercases metadata keys.
func APIKeyInterceptor(mode, header, key string) grpc.UnaryServerInterceptor {
	if !Enabled(mode, key) {
		return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := metadata.FromIncomingContext(ctx); !ok {
			return nil, reject(ctx, info, "missing metadata")
		}
		vals := metadata.ValueFromIncomingContext(ctx, header)
		if len(vals) == 0 || !Valid(vals[0], key) {
			return nil, reject(ctx, info, "invalid api key")
		}
		return handler(ctx, req)
	}
}

func reject(ctx context.Context, info *grpc.UnaryServerInfo, msg string) error {
	addr := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
	}
	method := ""
	if info != nil {
		method = info.FullMethod
	}
	slog.Warn("auth: rejected agent call", "method", method, "peer", addr, "reason", msg)
	return status.Error(codes.Unauthenticated, msg)
}
