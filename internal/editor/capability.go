package editor

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"substore-client/internal/domain"
)

// Field describes one generic form field of an entity.
type Field struct {
	Key      string
	Label    string
	Options  []string
	Required bool
}

// Capability adapts one entity kind to the generic editor.
type Capability[T any] struct {
	Kind     domain.Kind
	Fields   []Field
	Defaults func() T
	Name     func(T) string
	// Process points at the entity's chain; nil when the kind has none.
	Process  func(*T) *domain.ProcessChain
	Get      func(*T, string) string
	Set      func(*T, string, string) error
	Validate func(*T) error
	ToWire   func(T) any
	FromWire func([]byte) (T, error)
}

func unknownField(kind domain.Kind, key string) error {
	return fmt.Errorf("%s has no field %q", kind, key)
}

func fromJSON[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode entity: %w", err)
	}
	return v, nil
}

func SubscriptionCapability() Capability[domain.Subscription] {
	return Capability[domain.Subscription]{
		Kind: domain.KindSubscription,
		Fields: []Field{
			{Key: "name", Label: "Name", Required: true},
			{Key: "icon", Label: "Icon"},
			{Key: "ua", Label: "User-Agent"},
			{Key: "source", Label: "Source", Options: []string{domain.SourceRemote, domain.SourceLocal}, Required: true},
			{Key: "url", Label: "URL"},
			{Key: "content", Label: "Content"},
		},
		Defaults: func() domain.Subscription {
			return domain.Subscription{Source: domain.SourceRemote, Process: domain.ProcessChain{}}
		},
		Name: func(s domain.Subscription) string { return s.Name },
		Process: func(s *domain.Subscription) *domain.ProcessChain {
			return &s.Process
		},
		Get: func(s *domain.Subscription, key string) string {
			switch key {
			case "name":
				return s.Name
			case "icon":
				return s.Icon
			case "ua":
				return s.UA
			case "source":
				return s.Source
			case "url":
				return s.URL
			case "content":
				return s.Content
			}
			return ""
		},
		Set: func(s *domain.Subscription, key, value string) error {
			switch key {
			case "name":
				s.Name = value
			case "icon":
				s.Icon = value
			case "ua":
				s.UA = value
			case "source":
				s.Source = value
			case "url":
				s.URL = value
			case "content":
				s.Content = value
			default:
				return unknownField(domain.KindSubscription, key)
			}
			return nil
		},
		Validate: func(s *domain.Subscription) error {
			return validateStruct(s)
		},
		ToWire: func(s domain.Subscription) any {
			switch s.Source {
			case domain.SourceRemote:
				s.Content = ""
			case domain.SourceLocal:
				s.URL = ""
			}
			return s
		},
		FromWire: fromJSON[domain.Subscription],
	}
}

// CollectionCapability checks members against known when it is non-nil.
func CollectionCapability(known []string) Capability[domain.Collection] {
	return Capability[domain.Collection]{
		Kind: domain.KindCollection,
		Fields: []Field{
			{Key: "name", Label: "Name", Required: true},
			{Key: "icon", Label: "Icon"},
			{Key: "ua", Label: "User-Agent"},
			{Key: "subscriptions", Label: "Subscriptions", Options: known},
		},
		Defaults: func() domain.Collection {
			return domain.Collection{Subscriptions: []string{}, Process: domain.ProcessChain{}}
		},
		Name: func(c domain.Collection) string { return c.Name },
		Process: func(c *domain.Collection) *domain.ProcessChain {
			return &c.Process
		},
		Get: func(c *domain.Collection, key string) string {
			switch key {
			case "name":
				return c.Name
			case "icon":
				return c.Icon
			case "ua":
				return c.UA
			case "subscriptions":
				return strings.Join(c.Subscriptions, ",")
			}
			return ""
		},
		Set: func(c *domain.Collection, key, value string) error {
			switch key {
			case "name":
				c.Name = value
			case "icon":
				c.Icon = value
			case "ua":
				c.UA = value
			case "subscriptions":
				c.Subscriptions = splitList(value)
			default:
				return unknownField(domain.KindCollection, key)
			}
			return nil
		},
		Validate: func(c *domain.Collection) error {
			if err := validateStruct(c); err != nil {
				return err
			}
			if known == nil {
				return nil
			}
			for _, member := range c.Subscriptions {
				if !slices.Contains(known, member) {
					return domain.NewValidationError("subscriptions", "exists",
						fmt.Sprintf("subscription %q does not exist", member))
				}
			}
			return nil
		},
		ToWire: func(c domain.Collection) any {
			if c.Subscriptions == nil {
				c.Subscriptions = []string{}
			}
			return c
		},
		FromWire: fromJSON[domain.Collection],
	}
}

// ArtifactCapability checks the source against subs or cols, by type,
// when the corresponding list is non-nil.
func ArtifactCapability(subs, cols []string) Capability[domain.Artifact] {
	return Capability[domain.Artifact]{
		Kind: domain.KindArtifact,
		Fields: []Field{
			{Key: "name", Label: "Name", Required: true},
			{Key: "displayName", Label: "Display Name"},
			{Key: "type", Label: "Type", Options: []string{string(domain.KindSubscription), string(domain.KindCollection)}, Required: true},
			{Key: "platform", Label: "Platform", Options: domain.Platforms, Required: true},
			{Key: "source", Label: "Source", Required: true},
			{Key: "sync", Label: "Sync", Options: []string{"true", "false"}},
		},
		Defaults: func() domain.Artifact {
			return domain.Artifact{Type: string(domain.KindSubscription), Platform: "Clash"}
		},
		Name: func(a domain.Artifact) string { return a.Name },
		Get: func(a *domain.Artifact, key string) string {
			switch key {
			case "name":
				return a.Name
			case "displayName":
				return a.DisplayName
			case "type":
				return a.Type
			case "platform":
				return a.Platform
			case "source":
				return a.Source
			case "sync":
				return strconv.FormatBool(a.Sync)
			}
			return ""
		},
		Set: func(a *domain.Artifact, key, value string) error {
			switch key {
			case "name":
				a.Name = value
			case "displayName":
				a.DisplayName = value
			case "type":
				a.Type = value
			case "platform":
				a.Platform = value
			case "source":
				a.Source = value
			case "sync":
				on, err := strconv.ParseBool(value)
				if err != nil {
					return domain.NewValidationError("sync", "boolean", fmt.Sprintf("invalid value %q", value))
				}
				a.Sync = on
			default:
				return unknownField(domain.KindArtifact, key)
			}
			return nil
		},
		Validate: func(a *domain.Artifact) error {
			if err := validateStruct(a); err != nil {
				return err
			}
			candidates := subs
			if a.Type == string(domain.KindCollection) {
				candidates = cols
			}
			if candidates != nil && !slices.Contains(candidates, a.Source) {
				return domain.NewValidationError("source", "exists",
					fmt.Sprintf("%s %q does not exist", a.Type, a.Source))
			}
			return nil
		},
		ToWire: func(a domain.Artifact) any {
			return a
		},
		FromWire: fromJSON[domain.Artifact],
	}
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
