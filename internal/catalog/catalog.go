package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"substore-client/internal/api"
	"substore-client/internal/domain"
	"substore-client/internal/editor"
	"substore-client/internal/pipeline"
	"substore-client/internal/preview"
	"substore-client/internal/usage"
)

// Confirm asks the user to approve a destructive action.
type Confirm func(prompt string) bool

// SubscriptionRow is a listed subscription with its usage, when known.
type SubscriptionRow struct {
	Subscription domain.Subscription
	Usage        *usage.Usage
}

// UsageText is blank until a usage lookup for the row succeeds.
func (r SubscriptionRow) UsageText() string {
	if r.Usage == nil {
		return ""
	}
	return r.Usage.String()
}

// Catalog holds the listed entities of one server.
type Catalog struct {
	client   *api.Client
	differ   *preview.Differ
	registry *pipeline.Registry
	logger   *zap.Logger
	metrics  domain.MetricsCollector

	mu        sync.RWMutex
	loaded    bool
	subs      []SubscriptionRow
	cols      []domain.Collection
	artifacts []domain.Artifact
}

func New(
	client *api.Client,
	registry *pipeline.Registry,
	logger *zap.Logger,
	metrics domain.MetricsCollector,
) *Catalog {
	if registry == nil {
		registry = pipeline.DefaultRegistry()
	}
	return &Catalog{
		client:   client,
		differ:   preview.NewDiffer(client, logger, metrics),
		registry: registry,
		logger:   logger.With(zap.String("component", "catalog")),
		metrics:  metrics,
	}
}

// Refresh reloads subscriptions and collections, then looks up usage for
// every remote subscription concurrently. A forced refresh drops cached
// usage first. Failed lookups leave their row's usage blank.
func (c *Catalog) Refresh(ctx context.Context, force bool) error {
	if force {
		c.client.ClearCache()
	}

	subs, err := c.client.GetSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	cols, err := c.client.GetCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	rows := make([]SubscriptionRow, len(subs))
	for i, sub := range subs {
		rows[i] = SubscriptionRow{Subscription: sub}
	}

	c.mu.Lock()
	c.subs = rows
	c.cols = cols
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("Catalog refreshed",
		zap.Int("subscriptions", len(subs)),
		zap.Int("collections", len(cols)))

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		if sub.Source == domain.SourceLocal || sub.URL == "" {
			continue
		}
		sub := sub
		g.Go(func() error {
			u, err := c.client.Usage(gctx, sub.URL)
			if err != nil {
				c.logger.Warn("Usage lookup failed",
					zap.String("subscription", sub.Name),
					zap.Error(err))
				return nil
			}
			c.setUsage(sub.Name, sub.URL, u)
			return nil
		})
	}
	return g.Wait()
}

// setUsage updates only the row still showing name with url.
func (c *Catalog) setUsage(name, url string, u usage.Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.subs {
		if c.subs[i].Subscription.Name == name && c.subs[i].Subscription.URL == url {
			c.subs[i].Usage = &u
			return
		}
	}
}

func (c *Catalog) Subscriptions() []SubscriptionRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]SubscriptionRow(nil), c.subs...)
}

func (c *Catalog) Collections() []domain.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Collection(nil), c.cols...)
}

func (c *Catalog) Artifacts() []domain.Artifact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Artifact(nil), c.artifacts...)
}

// names lists the known subscription and collection names, nil for both
// before the first refresh so editors skip existence checks.
func (c *Catalog) names() (subs, cols []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, nil
	}
	subs = make([]string, 0, len(c.subs))
	for _, r := range c.subs {
		subs = append(subs, r.Subscription.Name)
	}
	cols = make([]string, 0, len(c.cols))
	for _, col := range c.cols {
		cols = append(cols, col.Name)
	}
	return subs, cols
}

func (c *Catalog) RefreshArtifacts(ctx context.Context) error {
	artifacts, err := c.client.GetArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	c.mu.Lock()
	c.artifacts = artifacts
	c.mu.Unlock()
	return nil
}

func (c *Catalog) refreshFor(kind domain.Kind) func(context.Context) error {
	if kind == domain.KindArtifact {
		return c.RefreshArtifacts
	}
	return func(ctx context.Context) error {
		return c.Refresh(ctx, false)
	}
}

func (c *Catalog) editorOptions(kind domain.Kind) []editor.Option {
	return []editor.Option{
		editor.WithRegistry(c.registry),
		editor.WithLogger(c.logger),
		editor.WithMetrics(c.metrics),
		editor.OnSaved(c.refreshFor(kind)),
	}
}

// Edit loads the server copy of name into an editor whose successful
// save refreshes the catalog.
func (c *Catalog) Edit(ctx context.Context, kind domain.Kind, name string) (editor.Session, error) {
	subs, cols := c.names()
	opts := c.editorOptions(kind)
	switch kind {
	case domain.KindSubscription:
		return session(editor.Fetch(ctx, editor.SubscriptionCapability(), c.client, c.client, name, opts...))
	case domain.KindCollection:
		return session(editor.Fetch(ctx, editor.CollectionCapability(subs), c.client, c.client, name, opts...))
	case domain.KindArtifact:
		return session(editor.Fetch(ctx, editor.ArtifactCapability(subs, cols), c.client, c.client, name, opts...))
	default:
		return nil, fmt.Errorf("unsupported kind: %s", kind)
	}
}

func session[T any](ed *editor.Editor[T], err error) (editor.Session, error) {
	if err != nil {
		return nil, err
	}
	return ed, nil
}

// Add opens an editor on a new entity of kind.
func (c *Catalog) Add(kind domain.Kind) (editor.Session, error) {
	subs, cols := c.names()
	opts := c.editorOptions(kind)
	switch kind {
	case domain.KindSubscription:
		return editor.New(editor.SubscriptionCapability(), c.client, opts...), nil
	case domain.KindCollection:
		return editor.New(editor.CollectionCapability(subs), c.client, opts...), nil
	case domain.KindArtifact:
		return editor.New(editor.ArtifactCapability(subs, cols), c.client, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported kind: %s", kind)
	}
}

// Delete removes name after confirm approves, then refreshes. It
// reports whether the entity was deleted.
func (c *Catalog) Delete(ctx context.Context, kind domain.Kind, name string, confirm Confirm) (bool, error) {
	if confirm != nil && !confirm(fmt.Sprintf("Delete %s %q?", kind, name)) {
		return false, nil
	}
	if err := c.client.Delete(ctx, kind, name); err != nil {
		return false, err
	}
	c.logger.Info("Deleted", zap.String("kind", kind.String()), zap.String("name", name))
	return true, c.refreshFor(kind)(ctx)
}

// SetArtifactSync toggles the sync flag of a listed artifact through an
// editor, so concurrent toggles hit the save lock.
func (c *Catalog) SetArtifactSync(ctx context.Context, name string, on bool) error {
	var found *domain.Artifact
	for _, a := range c.Artifacts() {
		if a.Name == name {
			found = &a
			break
		}
	}
	if found == nil {
		return fmt.Errorf("artifact %q not found", name)
	}

	ed := editor.Load(editor.ArtifactCapability(nil, nil), c.client, *found, c.editorOptions(domain.KindArtifact)...)
	if err := ed.Set("sync", strconv.FormatBool(on)); err != nil {
		return err
	}
	return ed.Save(ctx)
}

func (c *Catalog) SyncArtifact(ctx context.Context, name string) error {
	if err := c.client.SyncArtifact(ctx, name); err != nil {
		return fmt.Errorf("failed to sync artifact %q: %w", name, err)
	}
	return c.RefreshArtifacts(ctx)
}

func (c *Catalog) SyncAll(ctx context.Context) error {
	if err := c.client.SyncArtifacts(ctx); err != nil {
		return fmt.Errorf("failed to sync artifacts: %w", err)
	}
	return c.RefreshArtifacts(ctx)
}

// Preview previews the listed copy of name, refreshing the catalog first
// when the server copy has changed.
func (c *Catalog) Preview(ctx context.Context, kind domain.Kind, name string) (preview.Result, error) {
	local, ok := c.lookup(kind, name)
	if !ok {
		return preview.Result{}, fmt.Errorf("%s %q not found", kind, name)
	}
	return c.differ.Preview(ctx, kind, name, local, c.refreshFor(kind))
}

func (c *Catalog) lookup(kind domain.Kind, name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch kind {
	case domain.KindSubscription:
		for _, r := range c.subs {
			if r.Subscription.Name == name {
				return r.Subscription, true
			}
		}
	case domain.KindCollection:
		for _, col := range c.cols {
			if col.Name == name {
				return col, true
			}
		}
	}
	return nil, false
}
