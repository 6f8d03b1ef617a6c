package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"substore-client/internal/domain"
)

type route struct {
	list    string
	item    string
	preview string
}

var routes = map[domain.Kind]route{
	domain.KindSubscription: {list: "/api/subs", item: "/api/sub/", preview: "/api/preview/sub"},
	domain.KindCollection:   {list: "/api/collections", item: "/api/collection/", preview: "/api/preview/collection"},
	domain.KindArtifact:     {list: "/api/artifacts", item: "/api/artifact/"},
}

func routeFor(kind domain.Kind) (route, error) {
	r, ok := routes[kind]
	if !ok {
		return route{}, fmt.Errorf("unsupported kind: %s", kind)
	}
	return r, nil
}

func itemPath(r route, name string) string {
	return r.item + url.PathEscape(name)
}

// List decodes every entity of kind into out.
func (c *Client) List(ctx context.Context, kind domain.Kind, out any) error {
	r, err := routeFor(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodGet, r.list, nil, out)
}

// Get decodes the entity of kind named name into out.
func (c *Client) Get(ctx context.Context, kind domain.Kind, name string, out any) error {
	r, err := routeFor(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodGet, itemPath(r, name), nil, out)
}

func (c *Client) Create(ctx context.Context, kind domain.Kind, body any) error {
	r, err := routeFor(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, r.list, body, nil)
}

// Update replaces the entity stored under name, which may differ from
// the name carried in body when the entity is being renamed.
func (c *Client) Update(ctx context.Context, kind domain.Kind, name string, body any) error {
	r, err := routeFor(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPatch, itemPath(r, name), body, nil)
}

func (c *Client) Delete(ctx context.Context, kind domain.Kind, name string) error {
	r, err := routeFor(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, itemPath(r, name), nil, nil)
}

// Preview asks the server to run entity's process chain and returns the
// node lists before and after processing.
func (c *Client) Preview(ctx context.Context, kind domain.Kind, entity any) (domain.PreviewResult, error) {
	var result domain.PreviewResult
	r, err := routeFor(kind)
	if err != nil {
		return result, err
	}
	if r.preview == "" {
		return result, fmt.Errorf("preview is not supported for %s", kind)
	}
	err = c.call(ctx, http.MethodPost, r.preview, entity, &result)
	return result, err
}

func (c *Client) GetSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	if err := c.List(ctx, domain.KindSubscription, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) GetSubscription(ctx context.Context, name string) (domain.Subscription, error) {
	var sub domain.Subscription
	err := c.Get(ctx, domain.KindSubscription, name, &sub)
	return sub, err
}

func (c *Client) AddSubscription(ctx context.Context, sub domain.Subscription) error {
	return c.Create(ctx, domain.KindSubscription, sub)
}

func (c *Client) UpdateSubscription(ctx context.Context, name string, sub domain.Subscription) error {
	return c.Update(ctx, domain.KindSubscription, name, sub)
}

func (c *Client) DeleteSubscription(ctx context.Context, name string) error {
	return c.Delete(ctx, domain.KindSubscription, name)
}

func (c *Client) GetCollections(ctx context.Context) ([]domain.Collection, error) {
	var cols []domain.Collection
	if err := c.List(ctx, domain.KindCollection, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func (c *Client) GetCollection(ctx context.Context, name string) (domain.Collection, error) {
	var col domain.Collection
	err := c.Get(ctx, domain.KindCollection, name, &col)
	return col, err
}

func (c *Client) AddCollection(ctx context.Context, col domain.Collection) error {
	return c.Create(ctx, domain.KindCollection, col)
}

func (c *Client) UpdateCollection(ctx context.Context, name string, col domain.Collection) error {
	return c.Update(ctx, domain.KindCollection, name, col)
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.Delete(ctx, domain.KindCollection, name)
}

func (c *Client) GetArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	if err := c.List(ctx, domain.KindArtifact, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (c *Client) AddArtifact(ctx context.Context, artifact domain.Artifact) error {
	return c.Create(ctx, domain.KindArtifact, artifact)
}

func (c *Client) UpdateArtifact(ctx context.Context, name string, artifact domain.Artifact) error {
	return c.Update(ctx, domain.KindArtifact, name, artifact)
}

func (c *Client) DeleteArtifact(ctx context.Context, name string) error {
	return c.Delete(ctx, domain.KindArtifact, name)
}

// SyncArtifact uploads one artifact to its sync target.
func (c *Client) SyncArtifact(ctx context.Context, name string) error {
	err := c.call(ctx, http.MethodGet, "/api/sync/artifact/"+url.PathEscape(name), nil, nil)
	c.metrics.RecordArtifactSync(name, err)
	return err
}

// SyncArtifacts uploads every artifact flagged for sync.
func (c *Client) SyncArtifacts(ctx context.Context) error {
	err := c.call(ctx, http.MethodGet, "/api/sync/artifacts", nil, nil)
	c.metrics.RecordArtifactSync("*", err)
	return err
}
