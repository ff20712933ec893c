package archive

import (
	"context"
	"path"
	"strings"
	"time"
)

// Archive stores immutable blobs by key. Writing the same key twice replaces
// the blob, so redelivered events land on the same object.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
}

// WebhookKey is the key of one delivery:
// webhooks/<provider>/<yyyy>/<mm>/<dd>/<event id>.json.
func WebhookKey(providerName, eventID string, receivedAt time.Time) string {
	return path.Join(
		"webhooks",
		sanitize(providerName),
		receivedAt.UTC().Format("2006/01/02"),
		sanitize(eventID)+".json",
	)
}

// sanitize keeps a single path segment free of separators and dot runs.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
