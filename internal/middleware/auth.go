package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"lexcal-scheduler/internal/auth"
	"lexcal-scheduler/internal/schedule"
)

type ctxKey string

const viewerKey ctxKey = "viewer"

// WithViewer stores the authenticated caller in ctx.
func WithViewer(ctx context.Context, v schedule.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

func ViewerFrom(ctx context.Context) (schedule.Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(schedule.Viewer)
	return v, ok && v.ID != ""
}

func viewerFromToken(header, secret string) (schedule.Viewer, bool) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return schedule.Viewer{}, false
	}
	claims, err := auth.ParseToken(strings.TrimSpace(raw), secret)
	if err != nil {
		return schedule.Viewer{}, false
	}
	return schedule.Viewer{ID: claims.UserID, Role: claims.Role}, true
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := viewerFromToken(r.Header.Get("Authorization"), secret)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "Unauthenticated",
					"message": "missing or invalid bearer token",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), v)))
		})
	}
}

// Auth is the gRPC counterpart of RequireAuth. Methods in open skip it.
func Auth(secret string, open ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		// token from Authorization: Bearer <jwt>
		header := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		v, ok := viewerFromToken(header, secret)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid bearer token")
		}
		return next(WithViewer(ctx, v), req)
	}
}
