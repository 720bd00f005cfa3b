// Package net carries request scoped identity on the context
package net

import (
	"context"

	"laneledger/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const keyUserID ctxKey = "user_id"

// WithRequestID stores reqID where chi's RequestID middleware would and tags the logger context
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return logger.WithRequest(context.WithValue(ctx, chimw.RequestIDKey, reqID), reqID, "")
}

// WithUser records the authenticated user for handlers and for logger.C
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return logger.WithRequest(context.WithValue(ctx, keyUserID, userID), "", userID)
}

// RequestID returns the request id on ctx, if any
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// UserID returns the authenticated user id on ctx, if any
func UserID(ctx context.Context) string {
	s, _ := ctx.Value(keyUserID).(string)
	return s
}
