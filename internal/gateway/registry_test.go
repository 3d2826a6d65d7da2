package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCustomSource struct {
	models []ModelConfig
	err    error
}

func (s stubCustomSource) CustomModels(ctx context.Context) ([]ModelConfig, error) {
	return s.models, s.err
}

func TestMergeDefinitions(t *testing.T) {
	base := []ModelConfig{{ID: "m1"}, {ID: "m2"}}

	merged := MergeDefinitions(base, []ModelConfig{{ID: "m2", Name: "override"}})
	assert.Equal(t, []ModelConfig{{ID: "m1"}, {ID: "m2", Name: "override"}}, merged)

	merged = MergeDefinitions(base, []ModelConfig{{ID: "m3"}})
	assert.Equal(t, []ModelConfig{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}, merged)

	// 输入不被修改
	assert.Equal(t, []ModelConfig{{ID: "m1"}, {ID: "m2"}}, base)
}

func TestMergeDefinitionsReplacesWholeEntry(t *testing.T) {
	base := []ModelConfig{{ID: "m1", Name: "remote", Family: FamilyText, ContextWindow: 8000}}
	merged := MergeDefinitions(base, []ModelConfig{{ID: "m1", Name: "custom"}})

	require.Len(t, merged, 1)
	assert.Equal(t, ModelConfig{ID: "m1", Name: "custom"}, merged[0])
}

func TestFallbackModels(t *testing.T) {
	models := FallbackModels()
	require.NotEmpty(t, models)

	var defaults int
	var asyncFound bool
	for _, m := range models {
		if m.IsDefault {
			defaults++
		}
		if m.IsAsync() {
			asyncFound = true
			assert.NotNil(t, m.Endpoints.Generate)
		}
		if !m.IsNative() {
			assert.NoError(t, ValidateModel(m), m.ID)
		}
	}
	assert.Equal(t, 1, defaults)
	assert.True(t, asyncFound)

	// 每次返回副本
	models[0].Name = "changed"
	assert.NotEqual(t, "changed", FallbackModels()[0].Name)
}

func TestFetchDefinitionsFallsBack(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	serverError := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer serverError.Close()

	wrongShape := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not_models": []}`))
	}))
	defer wrongShape.Close()

	notArray := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": {"id": "m1"}}`))
	}))
	defer notArray.Close()

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer malformed.Close()

	cases := map[string]string{
		"transport error": closedURL,
		"status 500":      serverError.URL,
		"wrong shape":     wrongShape.URL,
		"not an array":    notArray.URL,
		"malformed":       malformed.URL,
		"not configured":  "",
	}

	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			registry := NewRegistry(url, nil)
			assert.Equal(t, FallbackModels(), registry.FetchDefinitions(context.Background()))
		})
	}
}

func TestFetchDefinitionsRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"id":"remote-1","name":"Remote","provider":"openai_compatible",
			"endpoints":{"generate":{"url":"https://x","paramMapping":{"prompt":"{{prompt}}"}}}}]}`))
	}))
	defer server.Close()

	models := NewRegistry(server.URL, nil).FetchDefinitions(context.Background())
	require.Len(t, models, 1)
	assert.Equal(t, "remote-1", models[0].ID)
	assert.Equal(t, map[string]any{"prompt": "hi"}, models[0].Endpoints.Generate.ParamMapping.Build(Inputs{"prompt": "hi"}))
}

func TestFetchDefinitionsAcceptsEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	models := NewRegistry(server.URL, nil).FetchDefinitions(context.Background())
	assert.NotNil(t, models)
	assert.Empty(t, models)
}

func TestFetchDefinitionsConcurrentCallers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"id":"r","name":"R","provider":"google_native"}]}`))
	}))
	defer server.Close()

	registry := NewRegistry(server.URL, nil)

	var wg sync.WaitGroup
	results := make([][]ModelConfig, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = registry.FetchDefinitions(context.Background())
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "r", r[0].ID)
	}
}

func TestFetchDefinitionsIgnoresOtherCallerCancellation(t *testing.T) {
	requested := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case requested <- struct{}{}:
		default:
		}
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"models":[{"id":"remote-only","name":"Remote","provider":"google_native"}]}`))
	}))
	defer server.Close()

	registry := NewRegistry(server.URL, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	resultA := make(chan []ModelConfig, 1)
	go func() { resultA <- registry.FetchDefinitions(ctxA) }()

	<-requested
	resultB := make(chan []ModelConfig, 1)
	go func() { resultB <- registry.FetchDefinitions(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancelA()

	// 取消的调用方自己回退到内置列表
	assert.Equal(t, FallbackModels(), <-resultA)

	modelsB := <-resultB
	require.Len(t, modelsB, 1)
	assert.Equal(t, "remote-only", modelsB[0].ID)
}

func TestRefreshCancelledDoesNotStoreFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"models":[{"id":"remote-only","name":"Remote","provider":"google_native"}]}`))
	}))
	defer server.Close()

	registry := NewRegistry(server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := registry.Models(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	models, err := registry.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "remote-only", models[0].ID)
}

func TestRegistryModelsMergesCustom(t *testing.T) {
	registry := NewRegistry("", nil)
	registry.SetCustomSource(stubCustomSource{models: []ModelConfig{
		{ID: "gpt-4o-mini", Name: "My GPT", Provider: "openai_compatible"},
		{ID: "local-llama", Name: "Llama", Provider: "ollama"},
	}})

	models, err := registry.Models(context.Background())
	require.NoError(t, err)

	fallback := FallbackModels()
	require.Len(t, models, len(fallback)+1)
	assert.Equal(t, "local-llama", models[len(models)-1].ID)

	found, ok, err := registry.Lookup(context.Background(), "gpt-4o-mini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "My GPT", found.Name)
	assert.Nil(t, found.Endpoints)

	_, ok, err = registry.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	def, ok, err := registry.Default(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, def.IsDefault)
}

func TestRegistryDefaultFallsBackToFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"id":"a","name":"A","provider":"x"},{"id":"b","name":"B","provider":"x"}]}`))
	}))
	defer server.Close()

	def, ok, err := NewRegistry(server.URL, nil).Default(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", def.ID)
}

func TestRegistryCustomSourceError(t *testing.T) {
	registry := NewRegistry("", nil)
	registry.SetCustomSource(stubCustomSource{err: errors.New("disk unavailable")})

	_, err := registry.Models(context.Background())
	assert.Error(t, err)
}
