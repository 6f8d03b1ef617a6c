package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"substore-client/internal/api"
	"substore-client/internal/domain"
)

func TestPair(t *testing.T) {
	result := domain.PreviewResult{
		Original: []domain.Node{
			{"id": float64(1), "name": "o1"},
			{"id": float64(2), "name": "o2"},
		},
		Processed: []domain.Node{
			{"id": float64(1), "name": "n1"},
		},
	}

	rows := Pair(result)
	require.Len(t, rows, 2)

	assert.Equal(t, RowPaired, rows[0].Kind)
	assert.Equal(t, "1", rows[0].ID)
	assert.Equal(t, "n1", rows[0].Processed.Name())
	assert.Equal(t, "o1", rows[0].Original.Name())
	assert.Equal(t, "n1 ← o1", rows[0].Label())

	assert.Equal(t, RowRemoved, rows[1].Kind)
	assert.Equal(t, "2", rows[1].ID)
	assert.Nil(t, rows[1].Processed)
	assert.Equal(t, "- o2", rows[1].Label())
}

func TestPairUnmatchedProcessed(t *testing.T) {
	tests := []struct {
		name      string
		result    domain.PreviewResult
		wantKinds []RowKind
	}{
		{
			name: "Processed without id",
			result: domain.PreviewResult{
				Original:  []domain.Node{{"name": "o"}},
				Processed: []domain.Node{{"name": "n"}},
			},
			wantKinds: []RowKind{RowAdded, RowRemoved},
		},
		{
			name: "Processed with unknown id",
			result: domain.PreviewResult{
				Original:  []domain.Node{{"id": "a", "name": "o"}},
				Processed: []domain.Node{{"id": "b", "name": "n"}, {"id": "a", "name": "n2"}},
			},
			wantKinds: []RowKind{RowAdded, RowPaired},
		},
		{
			name: "Duplicate processed id pairs once",
			result: domain.PreviewResult{
				Original:  []domain.Node{{"id": "a"}},
				Processed: []domain.Node{{"id": "a"}, {"id": "a"}},
			},
			wantKinds: []RowKind{RowPaired, RowAdded},
		},
		{
			name:      "Empty",
			result:    domain.PreviewResult{},
			wantKinds: []RowKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Pair(tt.result)
			kinds := make([]RowKind, 0, len(rows))
			for _, r := range rows {
				kinds = append(kinds, r.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}
}

func TestRowDiff(t *testing.T) {
	row := Row{
		Kind:      RowPaired,
		Original:  domain.Node{"id": "1", "name": "o1", "port": float64(443)},
		Processed: domain.Node{"id": "1", "name": "n1", "port": float64(443)},
	}
	diff := row.Diff()
	assert.Contains(t, diff, "o1")
	assert.Contains(t, diff, "n1")

	same := Row{Original: domain.Node{"id": "1"}, Processed: domain.Node{"id": "1"}}
	assert.Empty(t, same.Diff())
}

func previewServer(t *testing.T, stored map[string]any) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var previewed atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sub/A":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": stored})
		case r.Method == http.MethodPost && r.URL.Path == "/api/preview/sub":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			previewed.Store(body)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": map[string]any{
				"original":  []any{map[string]any{"id": 1, "name": "o1"}, map[string]any{"id": 2, "name": "o2"}},
				"processed": []any{map[string]any{"id": 1, "name": "n1"}},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &previewed
}

func TestDifferPreview(t *testing.T) {
	local := domain.Subscription{
		Name:    "A",
		Source:  domain.SourceRemote,
		URL:     "http://x/y",
		Process: domain.ProcessChain{},
	}

	tests := []struct {
		name      string
		stored    map[string]any
		wantStale bool
		wantURL   string
	}{
		{
			name: "Up to date with extra server fields",
			stored: map[string]any{
				"name": "A", "source": "remote", "url": "http://x/y", "process": []any{}, "tag": []any{"x"},
			},
			wantStale: false,
			wantURL:   "http://x/y",
		},
		{
			name: "Edited by another client",
			stored: map[string]any{
				"name": "A", "source": "remote", "url": "http://x/z", "process": []any{},
			},
			wantStale: true,
			wantURL:   "http://x/z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, previewed := previewServer(t, tt.stored)
			client, err := api.New(server.URL)
			require.NoError(t, err)

			refreshed := 0
			differ := NewDiffer(client, nil, nil)
			res, err := differ.Preview(context.Background(), domain.KindSubscription, "A", local,
				func(ctx context.Context) error {
					refreshed++
					return nil
				})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStale, res.Stale)
			if tt.wantStale {
				assert.Equal(t, 1, refreshed)
			} else {
				assert.Zero(t, refreshed)
			}

			body := previewed.Load().(map[string]any)
			assert.Equal(t, tt.wantURL, body["url"])

			require.Len(t, res.Rows, 2)
			assert.Equal(t, RowPaired, res.Rows[0].Kind)
			assert.Equal(t, RowRemoved, res.Rows[1].Kind)
		})
	}
}

func TestDifferPreviewFetchError(t *testing.T) {
	server, _ := previewServer(t, nil)
	client, err := api.New(server.URL)
	require.NoError(t, err)

	_, err = NewDiffer(client, nil, nil).Preview(context.Background(), domain.KindSubscription, "missing", domain.Subscription{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrAPI)
}
