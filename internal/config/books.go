package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BooksConfig holds bookkeeping policy that operators may change without a redeploy.
type BooksConfig struct {
	FiscalYearStart  FiscalYearStart   `mapstructure:"fiscalYearStart"`
	VoucherNumbering map[string]string `mapstructure:"voucherNumbering"`
}

type FiscalYearStart struct {
	Month int `mapstructure:"month"`
	Day   int `mapstructure:"day"`
}

func DefaultBooksConfig() BooksConfig {
	return BooksConfig{
		FiscalYearStart: FiscalYearStart{Month: int(time.April), Day: 1},
		VoucherNumbering: map[string]string{
			"journal":     "JV-{YYYY}-{SEQ4}",
			"receipt":     "RV-{YYYY}-{SEQ4}",
			"payment":     "PV-{YYYY}-{SEQ4}",
			"sales":       "SV-{YYYY}-{SEQ4}",
			"purchase":    "PU-{YYYY}-{SEQ4}",
			"contra":      "CV-{YYYY}-{SEQ4}",
			"credit_note": "CN-{YYYY}-{SEQ4}",
			"debit_note":  "DN-{YYYY}-{SEQ4}",
		},
	}
}

// Template returns the voucher number template for a voucher type.
func (c BooksConfig) Template(voucherType string) string {
	if tmpl := strings.TrimSpace(c.VoucherNumbering[strings.ToLower(voucherType)]); tmpl != "" {
		return tmpl
	}
	return strings.ToUpper(voucherType) + "-{SEQ6}"
}

// FiscalYearStartMonth returns the configured start as a time.Month.
func (c BooksConfig) FiscalYearStartMonth() (time.Month, int) {
	return time.Month(c.FiscalYearStart.Month), c.FiscalYearStart.Day
}

type BooksConfigHolder struct {
	current atomic.Value // holds BooksConfig
}

func NewBooksConfigHolder(log *zap.Logger) (*BooksConfigHolder, error) {
	log = log.Named("books.config")
	v := viper.New()

	v.SetConfigName("books")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/bookkeeper/config")
	v.AddConfigPath("/etc/bookkeeper")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBooksConfig()
	v.SetDefault("books.fiscalYearStart.month", defaults.FiscalYearStart.Month)
	v.SetDefault("books.fiscalYearStart.day", defaults.FiscalYearStart.Day)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBooksConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBooksConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBooksConfig(v)
		if err != nil {
			log.Warn("reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticBooksConfigHolder wraps a fixed config.
func NewStaticBooksConfigHolder(cfg BooksConfig) *BooksConfigHolder {
	holder := &BooksConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BooksConfigHolder) Get() BooksConfig {
	return h.current.Load().(BooksConfig)
}

func decodeBooksConfig(v *viper.Viper) (BooksConfig, error) {
	var cfg BooksConfig
	if err := v.UnmarshalKey("books", &cfg); err != nil {
		return BooksConfig{}, err
	}

	merged := DefaultBooksConfig()
	if cfg.FiscalYearStart != (FiscalYearStart{}) {
		merged.FiscalYearStart = cfg.FiscalYearStart
	}
	for key, tmpl := range cfg.VoucherNumbering {
		merged.VoucherNumbering[strings.ToLower(key)] = tmpl
	}
	if err := validateBooksConfig(merged); err != nil {
		return BooksConfig{}, err
	}
	return merged, nil
}

func validateBooksConfig(cfg BooksConfig) error {
	month, day := cfg.FiscalYearStart.Month, cfg.FiscalYearStart.Day
	if month < 1 || month > 12 {
		return errors.New("books.fiscalYearStart.month must be 1-12")
	}
	// February 29 would not exist in most years.
	if day < 1 || day > 28 {
		return errors.New("books.fiscalYearStart.day must be 1-28")
	}
	for key, tmpl := range cfg.VoucherNumbering {
		if !strings.Contains(tmpl, "{SEQ") {
			return fmt.Errorf("books.voucherNumbering.%s must contain a {SEQ} token", key)
		}
	}
	return nil
}
