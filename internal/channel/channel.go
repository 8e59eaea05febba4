// Package channel parses the configured channel list into canonical
// references that the bot checks membership against.
package channel

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes public channels (addressed by @handle) from private ones
// (addressed by numeric chat id).
type Kind int

const (
	KindPublicHandle Kind = iota + 1
	KindPrivateID
)

func (k Kind) String() string {
	switch k {
	case KindPublicHandle:
		return "public_handle"
	case KindPrivateID:
		return "private_id"
	default:
		return "unknown"
	}
}

const (
	handlePrefix = "@"
	webLinkBase  = "https://t.me/"
)

var (
	// ErrEmpty is returned for blank tokens.
	ErrEmpty = errors.New("empty channel token")
	// ErrUnrecognized is returned for tokens matching none of the supported shapes.
	ErrUnrecognized = errors.New("unrecognized channel token")

	privateIDPattern = regexp.MustCompile(`^-100\d+$`)
	deepLinkPattern  = regexp.MustCompile(`(?i)tg://resolve\?domain=([A-Za-z0-9_]+)`)
	webLinkPattern   = regexp.MustCompile(`(?i)(?:https?://)?t\.me/([A-Za-z0-9_]+)`)
)

// Reference is the canonical identifier of a single channel. The zero value is
// not a valid reference; build one with Normalize.
type Reference struct {
	kind  Kind
	value string
}

// Kind reports whether the reference is a public handle or a private id.
func (r Reference) Kind() Kind {
	return r.kind
}

// Value returns "@name" for public handles and the "-100..." literal for
// private ids. It is also the chat id accepted by the Bot API.
func (r Reference) Value() string {
	return r.value
}

// String implements fmt.Stringer.
func (r Reference) String() string {
	return r.value
}

// IsPrivate reports whether the channel has no public handle.
func (r Reference) IsPrivate() bool {
	return r.kind == KindPrivateID
}

// Normalize classifies a single configuration token. Recognition order:
// private id, tg:// deep link, t.me web link, then a bare @handle.
func Normalize(raw string) (Reference, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return Reference{}, ErrEmpty
	}

	if privateIDPattern.MatchString(token) {
		return Reference{kind: KindPrivateID, value: token}, nil
	}

	if m := deepLinkPattern.FindStringSubmatch(token); m != nil {
		return Reference{kind: KindPublicHandle, value: handlePrefix + m[1]}, nil
	}

	if m := webLinkPattern.FindStringSubmatch(token); m != nil {
		return Reference{kind: KindPublicHandle, value: handlePrefix + m[1]}, nil
	}

	if strings.HasPrefix(token, handlePrefix) {
		return Reference{kind: KindPublicHandle, value: token}, nil
	}

	return Reference{}, fmt.Errorf("%w: %q", ErrUnrecognized, token)
}

// DisplayLink returns the public t.me link for a handle. Private ids have no
// derivable link and report false.
func DisplayLink(ref Reference) (string, bool) {
	if ref.kind != KindPublicHandle {
		return "", false
	}

	return webLinkBase + strings.TrimPrefix(ref.value, handlePrefix), true
}
