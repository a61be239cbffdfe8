package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/api"
	"github.com/ppiankov/claimgraph/internal/cycle"
	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/stream"
)

func newTestViper(t *testing.T, configPath string) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, registerDefaults(v))
	bindEnv(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  origin: https://research.example.com
  workspace_id: team-a
layout:
  strategy: rows
focus:
  search_debounce: 150ms
`), 0644))
	t.Setenv("CLAIMGRAPH_LAYOUT_MIN_CONFIDENCE", "0.4")
	t.Setenv("CLAIMGRAPH_SERVER_TRANSPORT", "nats")

	cfg, err := loadConfig(newTestViper(t, path))
	require.NoError(t, err)

	assert.Equal(t, "https://research.example.com", cfg.Server.Origin)
	assert.Equal(t, "team-a", cfg.Server.WorkspaceID)
	assert.Equal(t, "nats", cfg.Server.Transport)
	assert.Equal(t, "rows", cfg.Layout.Strategy)
	assert.Equal(t, 0.4, cfg.Layout.MinConfidence)
	assert.Equal(t, 150*time.Millisecond, cfg.Focus.SearchDebounce)
	// Untouched keys keep their defaults
	assert.Equal(t, 5, cfg.Stream.MaxReconnectAttempts)
	assert.Equal(t, "/ws/events", cfg.Server.EventsPath)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Setenv("CLAIMGRAPH_LAYOUT_STRATEGY", "radial")
	_, err := loadConfig(newTestViper(t, ""))
	assert.ErrorContains(t, err, "layout.strategy")
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	cfg, err := loadConfig(newTestViper(t, path))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)

	err = writeDefaultConfig(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestNewTransport(t *testing.T) {
	cfg := model.DefaultConfig()
	tr, err := newTransport(cfg)
	require.NoError(t, err)
	ws, ok := tr.(*stream.WebSocketTransport)
	require.True(t, ok)
	require.NotNil(t, ws.Dialer)
	assert.NotNil(t, ws.Dialer.Proxy)

	cfg.HTTP.Proxy = "ftp://nope"
	_, err = newTransport(cfg)
	assert.Error(t, err)
	_, err = newClient(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Server.Transport = "nats"
	tr, err = newTransport(cfg)
	require.NoError(t, err)
	nt, ok := tr.(*stream.NATSTransport)
	require.True(t, ok)
	assert.Equal(t, cfg.Server.NATSURL, nt.URL)
}

func TestBuildViewAndWrite(t *testing.T) {
	forest := model.Forest{{
		ID: "a", Claim: "Root", Confidence: 0.9,
		Children: []*model.ClaimNode{{ID: "b", Claim: "Weak", Confidence: 0.1}},
	}}
	cfg := model.DefaultConfig()
	cfg.Layout.MinConfidence = 0.5

	v, err := buildView(forest, cfg, focus.Query{})
	require.NoError(t, err)
	require.Len(t, v.Nodes, 1)
	assert.Empty(t, v.Edges)

	var buf bytes.Buffer
	require.NoError(t, writeView(&buf, "json", v, "w"))
	assert.Contains(t, buf.String(), `"workspace": "w"`)

	buf.Reset()
	require.NoError(t, writeView(&buf, "svg", v, "w"))
	assert.Contains(t, buf.String(), "<svg")

	assert.Error(t, writeView(&buf, "png", v, "w"))
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.svg")
	require.NoError(t, writeSVGFile(path, focus.View{}, "empty"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "</svg>")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestPrintHits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHits(&buf, nil))
	assert.Equal(t, "No matching claims.\n", buf.String())

	buf.Reset()
	require.NoError(t, printHits(&buf, []api.SearchHit{
		{Score: 0.93, Node: model.ClaimNode{ID: "n1", Claim: "Sea level rise accelerates", Confidence: 0.8, NodeType: model.NodeTypeHypothesis}},
		{Score: 0.41, Node: model.ClaimNode{ID: "n2", Claim: "Untyped", Confidence: 0.3}},
	}))
	out := buf.String()
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "hypothesis")
	assert.Contains(t, out, "Sea level rise accelerates")
	assert.Contains(t, out, "0.410")
}

type mapFetcher map[string]model.ClaimNode

func (m mapFetcher) FetchNode(ctx context.Context, id string) (*model.ClaimNode, error) {
	n, ok := m[id]
	if !ok {
		return nil, errors.Join(api.ErrNotFound, errors.New(id))
	}
	return &n, nil
}

func TestResolveNodes(t *testing.T) {
	fetcher := mapFetcher{
		"n1": {ID: "n1", Claim: "Oceans absorb heat", Confidence: 0.7, Status: model.NodeStatusActive},
		"n2": {ID: "n2", Claim: "Ice sheets thin", Description: "From altimetry", Confidence: 0.55, NodeType: model.NodeTypeSupporting, EvidenceCount: 3},
	}
	found, missing := resolveNodes(context.Background(), fetcher, model.DefaultConfig(), slog.Default(), []string{"n2", "gone", "n1"})
	require.Len(t, found, 2)
	assert.Equal(t, "n2", found[0].ID)
	assert.Equal(t, "n1", found[1].ID)
	assert.Equal(t, []string{"gone"}, missing)

	var buf bytes.Buffer
	require.NoError(t, printNodes(&buf, found, missing))
	out := buf.String()
	assert.Contains(t, out, "Ice sheets thin")
	assert.Contains(t, out, "From altimetry")
	assert.Contains(t, out, "supporting")
	assert.Contains(t, out, "0.55")
	assert.Contains(t, out, "gone: not found")
}

func TestPrintEvent(t *testing.T) {
	ev := stream.Event{Type: stream.TypeNodeUpdated, WorkspaceID: "w1", Payload: stream.NodeUpdated{NodeID: "n1", NewConfidence: 0.8}}
	snap := cycle.Snapshot{Status: model.IdleStatus()}

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, snap, ev, true))
	back, err := stream.Decode(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ev.Payload, back.Payload)
	assert.Equal(t, "w1", back.WorkspaceID)

	buf.Reset()
	require.NoError(t, printEvent(&buf, snap, ev, false))
	assert.Contains(t, buf.String(), stream.TypeNodeUpdated)
	assert.Contains(t, buf.String(), "idle")
}
