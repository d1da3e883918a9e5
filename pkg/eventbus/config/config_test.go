package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, config.New(nil).Raw())
	assert.Empty(t, config.New(nil).Keys())
}

func TestString(t *testing.T) {
	cfg := config.New(map[string]any{"mode": "async", "count": 3})

	assert.Equal(t, "async", cfg.String("mode", "posting"))
	assert.Equal(t, "posting", cfg.String("missing", "posting"))
	assert.Equal(t, "posting", cfg.String("count", "posting"))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "15ms", 15 * time.Millisecond},
		{"string seconds", "2s", 2 * time.Second},
		{"int millis", 25, 25 * time.Millisecond},
		{"int64 millis", int64(40), 40 * time.Millisecond},
		{"float millis", 2.5, 2500 * time.Microsecond},
		{"duration", 3 * time.Second, 3 * time.Second},
		{"invalid string", "soon", time.Minute},
		{"wrong type", true, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"slice": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("slice", time.Minute))
		})
	}

	assert.Equal(t, time.Minute, config.New(nil).Duration("slice", time.Minute))
}

func TestBool(t *testing.T) {
	cfg := config.New(map[string]any{"on": true, "off": false, "text": "true"})

	assert.True(t, cfg.Bool("on", false))
	assert.False(t, cfg.Bool("off", true))
	assert.True(t, cfg.Bool("text", true))
	assert.False(t, cfg.Bool("missing", false))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int
	}{
		{"int", 8, 8},
		{"int64", int64(9), 9},
		{"whole float", 16.0, 16},
		{"fractional float", 16.5, -1},
		{"string", "16", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"limit": tt.val})
			assert.Equal(t, tt.want, cfg.Int("limit", -1))
		})
	}
}

func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"eventbus": map[string]any{"strict_handler_verification": true},
		"flat":     "value",
	})

	assert.True(t, cfg.Sub("eventbus").Bool("strict_handler_verification", false))
	assert.Empty(t, cfg.Sub("flat").Keys())
	assert.Empty(t, cfg.Sub("missing").Keys())
	assert.True(t, cfg.Has("flat"))
	assert.False(t, cfg.Has("missing"))
}

func TestUnknown(t *testing.T) {
	cfg := config.New(map[string]any{"b": 1, "a": 2, "typo": 3})

	assert.Equal(t, []string{"a", "b", "typo"}, cfg.Keys())
	assert.Equal(t, []string{"typo"}, cfg.Unknown("a", "b"))
	assert.Nil(t, cfg.Unknown("a", "b", "typo"))
}

func TestParse_YAML(t *testing.T) {
	cfg, err := config.Parse([]byte(`
eventbus:
  event_type_hierarchy: false
  async_pool_limit: 8
  main_time_slice: 5ms
`), config.YAML)
	require.NoError(t, err)

	bus := cfg.Sub("eventbus")
	assert.False(t, bus.Bool("event_type_hierarchy", true))
	assert.Equal(t, 8, bus.Int("async_pool_limit", 0))
	assert.Equal(t, 5*time.Millisecond, bus.Duration("main_time_slice", 0))

	_, err = config.Parse([]byte("eventbus: [unclosed"), config.YAML)
	assert.ErrorContains(t, err, "parse yaml")
}

func TestParse_JSON(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"eventbus": {"async_pool_limit": 4, "main_time_slice": 20}}`), config.JSON)
	require.NoError(t, err)

	bus := cfg.Sub("eventbus")
	assert.Equal(t, 4, bus.Int("async_pool_limit", 0))
	assert.Equal(t, 20*time.Millisecond, bus.Duration("main_time_slice", 0))

	_, err = config.Parse([]byte("{"), config.JSON)
	assert.ErrorContains(t, err, "parse json")

	_, err = config.Parse([]byte("a: 1"), config.Format("toml"))
	assert.ErrorContains(t, err, `unsupported config format "toml"`)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("EVENTBUS_POOL", "12")

	cfg, err := config.Parse([]byte("async_pool_limit: ${EVENTBUS_POOL}\nmetrics: ${EVENTBUS_UNSET_BACKEND}\n"), config.YAML)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Int("async_pool_limit", 0))
	assert.Equal(t, "none", cfg.String("metrics", "none"))
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]config.Format{
		"bus.yaml": config.YAML,
		"bus.YML":  config.YAML,
		"bus.json": config.JSON,
	} {
		got, err := config.FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := config.FormatOf("bus")
	assert.Error(t, err)
}

func TestLoadSection(t *testing.T) {
	dir := t.TempDir()
	wrapped := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(wrapped, []byte("eventbus:\n  async_pool_limit: 3\nother: 1\n"), 0o644))
	bare := filepath.Join(dir, "eventbus.yaml")
	require.NoError(t, os.WriteFile(bare, []byte("async_pool_limit: 5\n"), 0o644))

	cfg, err := config.LoadSection(wrapped, "eventbus")
	require.NoError(t, err)
	assert.Equal(t, []string{"async_pool_limit"}, cfg.Keys())
	assert.Equal(t, 3, cfg.Int("async_pool_limit", 0))

	cfg, err = config.LoadSection(bare, "eventbus")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Int("async_pool_limit", 0))

	_, err = config.LoadSection(filepath.Join(dir, "missing.yaml"), "eventbus")
	assert.ErrorContains(t, err, "read config file")
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bus.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte("emit_failure_event: false\n"), 0o644))
	jsonPath := filepath.Join(dir, "bus.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"emit_failure_event": false}`), 0o644))
	txtPath := filepath.Join(dir, "bus.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))

	for _, path := range []string{yamlPath, jsonPath} {
		cfg, err := config.FromFile(path)
		require.NoError(t, err, path)
		assert.False(t, cfg.Bool("emit_failure_event", true), path)
	}

	_, err := config.FromFile(txtPath)
	assert.ErrorContains(t, err, "unsupported config file extension: .txt")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
