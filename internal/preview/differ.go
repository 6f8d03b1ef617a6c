package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"substore-client/internal/domain"
)

type RowKind int

const (
	RowPaired RowKind = iota
	RowAdded
	RowRemoved
)

func (k RowKind) String() string {
	switch k {
	case RowPaired:
		return "paired"
	case RowAdded:
		return "added"
	case RowRemoved:
		return "removed"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Row is one line of a preview. Original is nil for added rows and
// Processed is nil for removed rows.
type Row struct {
	Kind      RowKind
	ID        string
	Original  domain.Node
	Processed domain.Node
}

// Label returns the text shown for the row, "processed ← original" for
// paired rows.
func (r Row) Label() string {
	switch r.Kind {
	case RowAdded:
		return "+ " + r.Processed.Name()
	case RowRemoved:
		return "- " + r.Original.Name()
	default:
		return r.Processed.Name() + " ← " + r.Original.Name()
	}
}

// Diff renders a structural diff of the two node records, empty when
// they are equal.
func (r Row) Diff() string {
	return cmp.Diff(map[string]any(r.Original), map[string]any(r.Processed))
}

type Result struct {
	// Stale is set when the server copy differed from the local copy and
	// the preview ran against the server copy.
	Stale bool
	Rows  []Row
}

// Pair matches processed nodes with original nodes by id. Rows follow
// processed order; original nodes left unmatched are appended as
// removed rows in original order.
func Pair(result domain.PreviewResult) []Row {
	byID := make(map[string]int, len(result.Original))
	for i, n := range result.Original {
		if id, ok := n.ID(); ok {
			if _, dup := byID[id]; !dup {
				byID[id] = i
			}
		}
	}

	used := make([]bool, len(result.Original))
	rows := make([]Row, 0, len(result.Processed)+len(result.Original))
	for _, n := range result.Processed {
		id, ok := n.ID()
		if ok {
			if i, found := byID[id]; found && !used[i] {
				used[i] = true
				rows = append(rows, Row{Kind: RowPaired, ID: id, Original: result.Original[i], Processed: n})
				continue
			}
		}
		rows = append(rows, Row{Kind: RowAdded, ID: id, Processed: n})
	}

	for i, n := range result.Original {
		if used[i] {
			continue
		}
		id, _ := n.ID()
		rows = append(rows, Row{Kind: RowRemoved, ID: id, Original: n})
	}
	return rows
}

// Client is the subset of *api.Client the differ needs.
type Client interface {
	Get(ctx context.Context, kind domain.Kind, name string, out any) error
	Preview(ctx context.Context, kind domain.Kind, entity any) (domain.PreviewResult, error)
}

type Differ struct {
	client  Client
	logger  *zap.Logger
	metrics domain.MetricsCollector
}

func NewDiffer(client Client, logger *zap.Logger, metrics domain.MetricsCollector) *Differ {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Differ{
		client:  client,
		logger:  logger.With(zap.String("component", "preview")),
		metrics: metrics,
	}
}

// Preview compares local with the server copy of name, calling refresh
// when they differ, then previews the server copy. Fields the local
// type does not model are ignored by the comparison.
func (d *Differ) Preview(ctx context.Context, kind domain.Kind, name string, local any, refresh func(context.Context) error) (Result, error) {
	var raw json.RawMessage
	if err := d.client.Get(ctx, kind, name, &raw); err != nil {
		return Result{}, fmt.Errorf("failed to fetch %s %q: %w", kind, name, err)
	}

	var server map[string]any
	if err := json.Unmarshal(raw, &server); err != nil {
		return Result{}, fmt.Errorf("failed to decode %s %q: %w", kind, name, err)
	}

	want, err := normalize(local)
	if err != nil {
		return Result{}, err
	}
	got, err := normalizeAs(raw, local)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if !cmp.Equal(want, got) {
		res.Stale = true
		d.metrics.RecordStaleRefresh(kind)
		d.logger.Info("Local copy is stale, refreshing",
			zap.String("kind", kind.String()),
			zap.String("name", name),
			zap.String("diff", cmp.Diff(want, got)))
		if refresh != nil {
			if err := refresh(ctx); err != nil {
				d.logger.Warn("Refresh failed", zap.Error(err))
			}
		}
	}

	result, err := d.client.Preview(ctx, kind, server)
	if err != nil {
		return Result{}, err
	}
	res.Rows = Pair(result)
	return res, nil
}

// normalize round-trips v through JSON so values compare by their wire
// form.
func normalize(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode local copy: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode local copy: %w", err)
	}
	return out, nil
}

// normalizeAs decodes raw into a value of like's type before
// normalizing it.
func normalizeAs(raw []byte, like any) (map[string]any, error) {
	t := reflect.TypeOf(like)
	if t == nil {
		return nil, fmt.Errorf("local copy cannot be nil")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	typed := reflect.New(t)
	if err := json.Unmarshal(raw, typed.Interface()); err != nil {
		return nil, fmt.Errorf("failed to decode server copy: %w", err)
	}
	return normalize(typed.Elem().Interface())
}
