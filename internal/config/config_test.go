package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests configuration loading
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) TestLoadWithDefaults() {
	cfg, err := Load(New(), filepath.Join(suite.tempDir, "missing.yaml"))
	require.Error(suite.T(), err, "an explicit config path must exist")
	assert.Nil(suite.T(), cfg)

	cfg, err = Load(New(), "")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), BackendAzure, cfg.Engine.Backend)
	assert.Equal(suite.T(), PlaceholderEndpoint, cfg.Engine.Endpoint)
	assert.Equal(suite.T(), PlaceholderAPIKey, cfg.Engine.APIKey)
	assert.Equal(suite.T(), "2024-02-15-preview", cfg.Engine.APIVersion)
	assert.Equal(suite.T(), "gpt-4o", cfg.Engine.Model)
	assert.InDelta(suite.T(), 0.7, cfg.Engine.Temperature, 1e-9)
	assert.Equal(suite.T(), 400, cfg.Engine.MaxTokens)
	assert.Equal(suite.T(), 60*time.Second, cfg.Engine.Timeout)
	assert.Equal(suite.T(), MaxSearchResults, cfg.Search.Count)
	assert.Equal(suite.T(), 10*time.Minute, cfg.Search.CacheTTL)
	assert.False(suite.T(), cfg.Session.SearchEnabled)
}

func (suite *ConfigTestSuite) TestLegacyEnvironmentNames() {
	suite.T().Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	suite.T().Setenv("AZURE_OPENAI_API_KEY", "secret")
	suite.T().Setenv("BING_SUBSCRIPTION_KEY", "bing-secret")

	cfg, err := Load(New(), "")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "https://example.openai.azure.com", cfg.Engine.Endpoint)
	assert.Equal(suite.T(), "secret", cfg.Engine.APIKey)
	assert.Equal(suite.T(), "bing-secret", cfg.Search.SubscriptionKey)
}

func (suite *ConfigTestSuite) TestPrefixedEnvironmentNames() {
	suite.T().Setenv("SEARCHCHAT_ENGINE_BACKEND", "ollama")
	suite.T().Setenv("SEARCHCHAT_SEARCH_COUNT", "3")

	cfg, err := Load(New(), "")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), BackendOllama, cfg.Engine.Backend)
	assert.Equal(suite.T(), "llama3:latest", cfg.Engine.Model)
	assert.Equal(suite.T(), 3, cfg.Search.Count)
}

func (suite *ConfigTestSuite) TestModelDefaultFollowsBackend() {
	suite.T().Setenv("SEARCHCHAT_ENGINE_BACKEND", "anthropic")

	cfg, err := Load(New(), "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "claude-sonnet-4-20250514", cfg.Engine.Model)

	suite.T().Setenv("SEARCHCHAT_ENGINE_MODEL", "claude-3-5-haiku-latest")
	cfg, err = Load(New(), "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "claude-3-5-haiku-latest", cfg.Engine.Model)
}

func (suite *ConfigTestSuite) TestLoadWithFile() {
	content := `
engine:
  backend: openai
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
  max_tokens: 256
search:
  count: 2
  timeout: 5s
session:
  search_enabled: true
`
	path := filepath.Join(suite.tempDir, "searchchat.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), BackendOpenAI, cfg.Engine.Backend)
	assert.Equal(suite.T(), "gpt-4o-mini", cfg.Engine.Model)
	assert.Equal(suite.T(), 256, cfg.Engine.MaxTokens)
	assert.Equal(suite.T(), 2, cfg.Search.Count)
	assert.Equal(suite.T(), 5*time.Second, cfg.Search.Timeout)
	assert.True(suite.T(), cfg.Session.SearchEnabled)
}

func (suite *ConfigTestSuite) TestValidateRejectsOversizedResultCount() {
	suite.T().Setenv("SEARCHCHAT_SEARCH_COUNT", "6")

	_, err := Load(New(), "")
	assert.ErrorContains(suite.T(), err, "search.count")
}

func (suite *ConfigTestSuite) TestValidateRejectsUnknownBackend() {
	suite.T().Setenv("SEARCHCHAT_ENGINE_BACKEND", "gemini")

	_, err := Load(New(), "")
	assert.ErrorContains(suite.T(), err, "unknown backend")
}

func TestIsBackend(t *testing.T) {
	for _, b := range Backends {
		assert.True(t, IsBackend(b), b)
	}
	assert.False(t, IsBackend(""))
}
