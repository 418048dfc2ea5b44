package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "days", value: "7d", want: 7 * 24 * time.Hour},
		{name: "go duration", value: "90m", want: 90 * time.Minute},
		{name: "invalid", value: "soon", want: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getDuration("TEST_DURATION", time.Hour))
		})
	}

	assert.Equal(t, time.Hour, getDuration("TEST_DURATION_UNSET", time.Hour))
}

func TestGetList(t *testing.T) {
	t.Setenv("TEST_LIST", " it, fr ,,de ")
	assert.Equal(t, []string{"it", "fr", "de"}, getList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"default"}, getList("TEST_LIST", []string{"default"}))
}

func TestDefaultMagentoStoreViews(t *testing.T) {
	assert.Equal(t, []string{"all", "it", "en", "de"}, DefaultMagentoStoreViews)
	assert.NotContains(t, DefaultMagentoStoreViews, "default")
}

func TestGetBoolAndNumbers(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getBool("TEST_BOOL", true))
	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, getBool("TEST_BOOL", true))

	t.Setenv("TEST_INT", "3")
	assert.Equal(t, 3, getInt("TEST_INT", 0))
	t.Setenv("TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, getFloat("TEST_FLOAT", 1))
}

func TestConfigured(t *testing.T) {
	assert.False(t, BackMarketConfig{BaseURL: "https://example.com"}.Configured())
	assert.True(t, RefurbedConfig{Token: "x"}.Configured())
	assert.False(t, OctopiaConfig{ClientID: "id", ClientSecret: "secret"}.Configured())
	assert.False(t, MagentoConfig{Token: "x"}.Configured())
	assert.True(t, MagentoConfig{BaseURL: "https://shop", Token: "x"}.Configured())
}
