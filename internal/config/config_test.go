package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasman/usajobs-digest/internal/errs"
)

func TestLoad_Defaults(t *testing.T) {
	// Shield the test from ambient operator configuration.
	for _, key := range []string{
		"USAJOBS_BASE_URL", "SEARCH_TITLES", "SEARCH_KEYWORDS",
		"STORAGE_DRIVER", "DB_PATH", "TABLE_NAME", "REPORT_PATH",
		"MAIL_RECIPIENT", "SMTP_PORT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.usajobs.gov/api", cfg.API.BaseURL)
	assert.Equal(t, DefaultTitles, cfg.Search.Titles)
	assert.Equal(t, DefaultKeywords, cfg.Search.Keywords)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "tasman.db", cfg.Storage.Path)
	assert.Equal(t, "positions", cfg.Storage.TableName)
	assert.Equal(t, "reports/digest.txt", cfg.Report.Path)
	assert.Equal(t, "test@example.com", cfg.Mail.Recipient)
	assert.Equal(t, 1025, cfg.Mail.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("USAJOBS_API_KEY", "key-from-env")
	t.Setenv("SEARCH_TITLES", "Statistician, ML Engineer")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.API.Key)
	assert.Equal(t, []string{"Statistician", "ML Engineer"}, cfg.Search.Titles)
	assert.Equal(t, 2525, cfg.Mail.Port)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1025, cfg.Mail.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := Load()
		cfg.API.Key = "key"
		cfg.API.UserAgent = "op@example.com"
		return cfg
	}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := valid()
		cfg.API.Key = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrConfig))
	})

	t.Run("missing user agent", func(t *testing.T) {
		cfg := valid()
		cfg.API.UserAgent = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrConfig))
	})

	t.Run("postgres without uri", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Driver = "postgres"
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrConfig))
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Driver = "etcd"
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrConfig))
	})

	t.Run("missing recipient", func(t *testing.T) {
		cfg := valid()
		cfg.Mail.Recipient = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrConfig))
	})
}

func TestLoadCriteriaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"titles:\n  - Statistician\nkeywords:\n  - statistics\n  - modeling\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.LoadCriteriaFile(path))

	assert.Equal(t, []string{"Statistician"}, cfg.Search.Titles)
	assert.Equal(t, []string{"statistics", "modeling"}, cfg.Search.Keywords)
}

func TestLoadCriteriaFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte("titles:\n  - Statistician\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.LoadCriteriaFile(path))

	assert.Equal(t, []string{"Statistician"}, cfg.Search.Titles)
	assert.Equal(t, DefaultKeywords, cfg.Search.Keywords)
}

func TestLoadCriteriaFile_Missing(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.LoadCriteriaFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrConfig))
}
