package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> models).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyBranchId      = ContextKey("BranchId")

	// ContextKeyRemoteOrigin marks writes merged from the remote store during
	// a pull. The local store must not enqueue sync entries for them, or
	// remote changes would echo straight back into the push queue.
	ContextKeyRemoteOrigin = ContextKey("RemoteOrigin")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
