package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBooksConfig(t *testing.T) {
	cfg := DefaultBooksConfig()
	require.NoError(t, validateBooksConfig(cfg))

	month, day := cfg.FiscalYearStartMonth()
	assert.Equal(t, time.April, month)
	assert.Equal(t, 1, day)
	assert.Equal(t, "JV-{YYYY}-{SEQ4}", cfg.Template("journal"))
	assert.Equal(t, "ADJUSTMENT-{SEQ6}", cfg.Template("adjustment"))
}

func TestDecodeBooksConfigMergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
books:
  fiscalYearStart:
    month: 1
    day: 1
  voucherNumbering:
    journal: "J-{YY}{MM}-{SEQ5}"
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeBooksConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.FiscalYearStart.Month)
	assert.Equal(t, "J-{YY}{MM}-{SEQ5}", cfg.Template("journal"))
	assert.Equal(t, "RV-{YYYY}-{SEQ4}", cfg.Template("receipt"))
}

func TestValidateBooksConfigRejectsTemplateWithoutSequence(t *testing.T) {
	cfg := DefaultBooksConfig()
	cfg.VoucherNumbering["journal"] = "JV-{YYYY}"
	assert.Error(t, validateBooksConfig(cfg))

	cfg = DefaultBooksConfig()
	cfg.FiscalYearStart.Month = 13
	assert.Error(t, validateBooksConfig(cfg))
}
