package domain

import "fmt"

// Kind identifies one of the entity families managed by the remote store.
type Kind string

const (
	KindSubscription Kind = "subscription"
	KindCollection   Kind = "collection"
	KindArtifact     Kind = "artifact"
)

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the kind names used on the wire and the short
// forms used by the preview endpoint.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "subscription", "sub", "subs":
		return KindSubscription, nil
	case "collection", "collections":
		return KindCollection, nil
	case "artifact", "artifacts":
		return KindArtifact, nil
	default:
		return "", fmt.Errorf("unknown kind: %s", s)
	}
}

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

type Subscription struct {
	Name    string       `json:"name" validate:"required"`
	Icon    string       `json:"icon,omitempty"`
	UA      string       `json:"ua,omitempty"`
	Source  string       `json:"source" validate:"oneof=remote local"`
	URL     string       `json:"url,omitempty" validate:"required_if=Source remote"`
	Content string       `json:"content,omitempty" validate:"required_if=Source local"`
	Process ProcessChain `json:"process"`
}

type Collection struct {
	Name          string       `json:"name" validate:"required"`
	Icon          string       `json:"icon,omitempty"`
	UA            string       `json:"ua,omitempty"`
	Subscriptions []string     `json:"subscriptions"`
	Process       ProcessChain `json:"process"`
}

// Artifact binds a subscription or collection to an output platform.
// Updated is milliseconds since epoch, nil when never synced.
type Artifact struct {
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type" validate:"oneof=subscription collection"`
	Platform    string `json:"platform" validate:"platform"`
	Source      string `json:"source" validate:"required"`
	Sync        bool   `json:"sync"`
	Updated     *int64 `json:"updated"`
}

// Label returns the display name when set, otherwise the name.
func (a Artifact) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

var Platforms = []string{
	"Surge",
	"Loon",
	"QX",
	"Clash",
	"Stash",
	"ShadowRocket",
	"sing-box",
	"URI",
	"JSON",
}

func IsPlatform(p string) bool {
	for _, known := range Platforms {
		if known == p {
			return true
		}
	}
	return false
}
