package utils

import (
	"context"

	"bitbucket.org/shweretail/posledger_backend/appctx"
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUserId)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserId, userId)
}

func GetBranchIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyBranchId)
}

func SetBranchIdInContext(ctx context.Context, branchId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyBranchId, branchId)
}

// IsRemoteOrigin reports whether the write currently in flight was merged
// from the remote store by the sync engine.
func IsRemoteOrigin(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, appctx.ContextKeyRemoteOrigin)
	return ok && v
}

func SetRemoteOriginInContext(ctx context.Context) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyRemoteOrigin, true)
}
