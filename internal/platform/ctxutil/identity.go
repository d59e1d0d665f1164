package ctxutil

import "context"

type identityKey struct{}

// Identity is what the auth collaborator hands to this service for one request
// or one persistent connection. UserID is set only for authenticated operators.
type Identity struct {
	TenantID int64
	UserID   *int64
	Token    string
}

func (id *Identity) IsOperator() bool {
	return id != nil && id.UserID != nil
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
