package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"slices"
	"strings"
)

var ErrInvalidAPIKey = errors.New("invalid API key")

// Scope lists the maps a client may analyze. An empty scope allows every map.
type Scope []string

// Allows reports whether mapName is within the scope.
func (s Scope) Allows(mapName string) bool {
	return len(s) == 0 || slices.Contains(s, mapName)
}

// Client is an API client registered with a key.
type Client struct {
	ID   string
	Maps Scope
}

// APIKeys maps configured API keys to clients. Keys are compared by digest in
// constant time.
type APIKeys struct {
	clients map[[sha256.Size]byte]Client
}

// ParseAPIKeys reads a comma-separated list of "client:key" pairs, each
// optionally restricted to maps with "@map1|map2". A bare key is registered
// for the client "default".
func ParseAPIKeys(list string) *APIKeys {
	k := &APIKeys{clients: make(map[[sha256.Size]byte]Client)}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		entry, maps, _ := strings.Cut(entry, "@")
		id, key, ok := strings.Cut(entry, ":")
		if !ok {
			id, key = "default", entry
		}
		c := Client{ID: id}
		for _, m := range strings.Split(maps, "|") {
			if m = strings.TrimSpace(m); m != "" {
				c.Maps = append(c.Maps, m)
			}
		}
		k.clients[sha256.Sum256([]byte(key))] = c
	}
	return k
}

// Len returns the number of configured keys.
func (k *APIKeys) Len() int { return len(k.clients) }

// Client returns the client registered for key.
func (k *APIKeys) Client(key string) (Client, error) {
	if key == "" {
		return Client{}, ErrInvalidAPIKey
	}
	sum := sha256.Sum256([]byte(key))
	for digest, c := range k.clients {
		if subtle.ConstantTimeCompare(digest[:], sum[:]) == 1 {
			return c, nil
		}
	}
	return Client{}, ErrInvalidAPIKey
}
