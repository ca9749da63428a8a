package auth

import "context"

// SetScopeForTest injects a client restricted to maps into the context for
// testing purposes. No maps means an unrestricted client.
func SetScopeForTest(ctx context.Context, clientID string, maps ...string) context.Context {
	return WithClient(ctx, Client{ID: clientID, Maps: maps})
}
