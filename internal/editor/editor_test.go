package editor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"substore-client/internal/api"
	"substore-client/internal/domain"
)

type saveCall struct {
	Method string
	Kind   domain.Kind
	Name   string
	Body   any
}

type fakeSaver struct {
	mu    sync.Mutex
	calls []saveCall
	err   error
}

func (f *fakeSaver) Create(ctx context.Context, kind domain.Kind, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, saveCall{Method: http.MethodPost, Kind: kind, Body: body})
	return f.err
}

func (f *fakeSaver) Update(ctx context.Context, kind domain.Kind, name string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, saveCall{Method: http.MethodPatch, Kind: kind, Name: name, Body: body})
	return f.err
}

func (f *fakeSaver) Calls() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saveCall(nil), f.calls...)
}

func TestSaveRequiresName(t *testing.T) {
	tests := []struct {
		name    string
		session func(s Saver) Session
	}{
		{"Subscription", func(s Saver) Session {
			return Load(SubscriptionCapability(), s, domain.Subscription{Source: domain.SourceRemote, URL: "http://x/y"})
		}},
		{"Collection", func(s Saver) Session {
			return Load(CollectionCapability(nil), s, domain.Collection{})
		}},
		{"Artifact", func(s Saver) Session {
			return Load(ArtifactCapability(nil, nil), s, domain.Artifact{Type: "subscription", Platform: "Clash", Source: "A"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			ed := tt.session(saver)

			err := ed.Save(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "name", verr.Field)
			assert.Equal(t, "required", verr.Rule)

			assert.Empty(t, saver.Calls())
			assert.Equal(t, StateEditing, ed.State())
		})
	}
}

func TestSaveNewSubscriptionPostsQuickSetting(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path = r.Method, r.URL.Path
		_ = json.Unmarshal(data, &body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"success","data":null}`))
	}))
	defer server.Close()

	client, err := api.New(server.URL)
	require.NoError(t, err)

	ed := New(SubscriptionCapability(), client)
	require.True(t, ed.IsNew())
	require.NoError(t, ed.Set("name", "A"))
	require.NoError(t, ed.Set("source", "remote"))
	require.NoError(t, ed.Set("url", "http://x/y"))

	require.NoError(t, ed.Save(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/subs", path)
	assert.Equal(t, "A", body["name"])
	assert.Equal(t, "http://x/y", body["url"])
	assert.NotContains(t, body, "content")
	assert.Equal(t, []any{
		map[string]any{
			"type": "Quick Setting Operator",
			"args": map[string]any{
				"useless":    "DISABLED",
				"udp":        "DEFAULT",
				"scert":      "DEFAULT",
				"tfo":        "DEFAULT",
				"vmess aead": "DEFAULT",
			},
		},
	}, body["process"])

	assert.Equal(t, StateSaved, ed.State())
	assert.False(t, ed.IsNew())
	assert.False(t, ed.Dirty())
}

func TestSaveRejectsConcurrentSave(t *testing.T) {
	var requests atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
		}
		<-release
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client, err := api.New(server.URL)
	require.NoError(t, err)

	ed := Load(CollectionCapability(nil), client, domain.Collection{Name: "C"})

	first := make(chan error, 1)
	go func() {
		first <- ed.Save(context.Background())
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first save never reached the server")
	}

	assert.Equal(t, StateSaving, ed.State())
	assert.ErrorIs(t, ed.Save(context.Background()), ErrTaskInProgress)
	assert.ErrorIs(t, ed.Set("icon", "x"), ErrTaskInProgress)

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, StateSaved, ed.State())
}

// blockingSaver holds every save until release is closed.
type blockingSaver struct {
	fakeSaver
	started chan struct{}
	release chan struct{}
}

func (b *blockingSaver) Update(ctx context.Context, kind domain.Kind, name string, body any) error {
	close(b.started)
	<-b.release
	return b.fakeSaver.Update(ctx, kind, name, body)
}

func TestPipelineEditsRejectedDuringSave(t *testing.T) {
	saver := &blockingSaver{started: make(chan struct{}), release: make(chan struct{})}
	ed := Load(SubscriptionCapability(), saver, domain.Subscription{
		Name:   "A",
		Source: domain.SourceRemote,
		URL:    "https://example.com/a",
	})

	done := make(chan error, 1)
	go func() {
		done <- ed.Save(context.Background())
	}()

	select {
	case <-saver.started:
	case <-time.After(5 * time.Second):
		t.Fatal("save never reached the saver")
	}

	p := ed.Pipeline()
	require.NotNil(t, p)
	assert.ErrorIs(t, p.SetQuickSetting("udp", "ENABLE"), ErrTaskInProgress)
	_, err := p.InsertOperator(0, nil)
	assert.ErrorIs(t, err, ErrTaskInProgress)

	close(saver.release)
	require.NoError(t, <-done)

	calls := saver.Calls()
	require.Len(t, calls, 1)
	sub := calls[0].Body.(domain.Subscription)
	require.Len(t, sub.Process, 1)
	assert.Equal(t, "DEFAULT", sub.Process[0].Args["udp"])

	require.NoError(t, p.SetQuickSetting("udp", "ENABLE"))
	assert.True(t, ed.Dirty())
}

func TestSaveRenameUsesOriginalName(t *testing.T) {
	saver := &fakeSaver{}
	ed := Load(SubscriptionCapability(), saver, domain.Subscription{
		Name:    "old",
		Source:  domain.SourceLocal,
		URL:     "http://stale",
		Content: "ss://node",
	})

	require.NoError(t, ed.Set("name", "new"))
	assert.True(t, ed.Dirty())
	require.NoError(t, ed.Save(context.Background()))
	require.NoError(t, ed.Save(context.Background()))

	calls := saver.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPatch, calls[0].Method)
	assert.Equal(t, "old", calls[0].Name)
	assert.Equal(t, "new", calls[1].Name)

	sent, ok := calls[0].Body.(domain.Subscription)
	require.True(t, ok)
	assert.Equal(t, "new", sent.Name)
	assert.Empty(t, sent.URL)
	assert.Equal(t, "ss://node", sent.Content)
	assert.Equal(t, domain.QuickSettingType, sent.Process[0].Type)
}

func TestSaveFailureReturnsToEditing(t *testing.T) {
	saver := &fakeSaver{err: errors.New("boom")}
	ed := Load(CollectionCapability(nil), saver, domain.Collection{Name: "C"})

	err := ed.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, ed.State())
	assert.Equal(t, err, ed.Err())

	require.NoError(t, ed.Set("icon", "https://icon"))
	assert.Equal(t, StateEditing, ed.State())

	saver.err = nil
	require.NoError(t, ed.Save(context.Background()))
	assert.Len(t, saver.Calls(), 2)
	assert.NoError(t, ed.Err())
}

func TestCompletionRunsAfterUnlock(t *testing.T) {
	saver := &fakeSaver{}
	var completed bool
	var ed *Editor[domain.Collection]
	ed = Load(CollectionCapability(nil), saver, domain.Collection{Name: "C"},
		OnSaved(func(ctx context.Context) error {
			completed = true
			assert.Equal(t, StateSaved, ed.State())
			assert.NoError(t, ed.Set("icon", "after"))
			return errors.New("refresh failed")
		}))

	require.NoError(t, ed.Save(context.Background()))
	assert.True(t, completed)
}

func TestSubscriptionSourceRules(t *testing.T) {
	tests := []struct {
		name      string
		sub       domain.Subscription
		wantField string
	}{
		{"Remote without url", domain.Subscription{Name: "A", Source: "remote", Content: "x"}, "url"},
		{"Local without content", domain.Subscription{Name: "A", Source: "local", URL: "http://x"}, "content"},
		{"Unknown source", domain.Subscription{Name: "A", Source: "ftp"}, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			err := Load(SubscriptionCapability(), saver, tt.sub).Save(context.Background())

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, saver.Calls())
		})
	}
}

func TestArtifactSourceMustMatchType(t *testing.T) {
	subs := []string{"A"}
	cols := []string{"C"}

	tests := []struct {
		name     string
		artifact domain.Artifact
		wantErr  bool
	}{
		{"Subscription source", domain.Artifact{Name: "X", Type: "subscription", Platform: "Clash", Source: "A"}, false},
		{"Collection source", domain.Artifact{Name: "X", Type: "collection", Platform: "sing-box", Source: "C"}, false},
		{"Type mismatch", domain.Artifact{Name: "X", Type: "subscription", Platform: "Clash", Source: "C"}, true},
		{"Missing source", domain.Artifact{Name: "X", Type: "collection", Platform: "Clash"}, true},
		{"Unknown platform", domain.Artifact{Name: "X", Type: "subscription", Platform: "Netscape", Source: "A"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			err := Load(ArtifactCapability(subs, cols), saver, tt.artifact).Save(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Empty(t, saver.Calls())
				return
			}
			require.NoError(t, err)
			assert.Len(t, saver.Calls(), 1)
		})
	}
}

func TestEditAppliesFormValues(t *testing.T) {
	saver := &fakeSaver{}
	ed := New(CollectionCapability([]string{"A", "B"}), saver)

	form := FormFunc(func(ctx context.Context, fields []Field, values map[string]string) (map[string]string, error) {
		require.Len(t, fields, 4)
		assert.Equal(t, "", values["name"])
		return map[string]string{"name": "C", "subscriptions": "A, B"}, nil
	})
	require.NoError(t, ed.Edit(context.Background(), form))
	assert.Equal(t, []string{"A", "B"}, ed.Entity().Subscriptions)

	_, err := ed.Pipeline().InsertOperator(0, nil)
	require.NoError(t, err)
	require.NoError(t, ed.Save(context.Background()))

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	sent := calls[0].Body.(domain.Collection)
	require.Len(t, sent.Process, 2)
	assert.Equal(t, "Flag Operator", sent.Process[1].Type)

	require.NoError(t, ed.Set("subscriptions", "A,Z"))
	err = ed.Save(context.Background())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "subscriptions", verr.Field)
}

func TestSetUnknownField(t *testing.T) {
	ed := New(ArtifactCapability(nil, nil), &fakeSaver{})
	assert.Error(t, ed.Set("color", "red"))
	assert.ErrorIs(t, ed.Set("sync", "maybe"), domain.ErrValidation)
	require.NoError(t, ed.Set("sync", "true"))
	assert.True(t, ed.Entity().Sync)
	assert.Nil(t, ed.Pipeline())
}

type fakeGetter map[string]string

func (f fakeGetter) Get(ctx context.Context, kind domain.Kind, name string, out any) error {
	data, ok := f[name]
	if !ok {
		return errors.New("not found")
	}
	return json.Unmarshal([]byte(data), out)
}

func TestFetch(t *testing.T) {
	getter := fakeGetter{
		"A": `{"name":"A","source":"remote","url":"http://x/y","process":[{"type":"Quick Setting Operator","args":{"udp":"ENABLED"}},{"type":"Sort Operator","args":{"order":"desc"}}]}`,
	}

	ed, err := Fetch(context.Background(), SubscriptionCapability(), getter, &fakeSaver{}, "A")
	require.NoError(t, err)
	assert.False(t, ed.IsNew())
	assert.Equal(t, "A", ed.OriginalName())
	assert.Equal(t, 1, ed.Pipeline().Len())
	assert.Equal(t, "ENABLED", ed.Pipeline().QuickSettings()["udp"])

	_, err = Fetch(context.Background(), SubscriptionCapability(), getter, &fakeSaver{}, "missing")
	assert.Error(t, err)
}
