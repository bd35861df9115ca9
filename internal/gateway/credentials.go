package gateway

import (
	"context"
	"net/http"
)

// Credentials are the caller's backend session: the bearer token and the
// cookies the browser sent. They travel in the context so every backend
// call is made on behalf of the signed-in user.
type Credentials struct {
	Token   string
	Cookies []*http.Cookie
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}
