package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBPath            string          `json:"dbPath"`
	ListenAddr        string          `json:"listenAddr"`
	Locale            string          `json:"locale"`
	Timezone          string          `json:"timezone"`
	UnpaidAgingDays   int             `json:"unpaidAgingDays"`
	UnpaidAlertAmount decimal.Decimal `json:"unpaidAlertAmount"`
	StorageRetries    int             `json:"storageRetries"`
	LogLevel          string          `json:"logLevel"`
	OpenBrowser       bool            `json:"openBrowser"`
}

var (
	cfg = defaults()
	mu  sync.RWMutex
)

var configFilePath = "./almacen_config.json"

func defaults() Config {
	return Config{
		DBPath:            "./almacen.db",
		ListenAddr:        ":8080",
		Locale:            "es-AR",
		Timezone:          "America/Argentina/Buenos_Aires",
		UnpaidAgingDays:   30,
		UnpaidAlertAmount: decimal.NewFromInt(50000),
		StorageRetries:    5,
		LogLevel:          "info",
	}
}

// fillDefaults はゼロ値の項目に既定値を入れます。
func fillDefaults(c *Config) {
	d := defaults()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.Locale == "" {
		c.Locale = d.Locale
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.UnpaidAgingDays <= 0 {
		c.UnpaidAgingDays = d.UnpaidAgingDays
	}
	if c.UnpaidAlertAmount.IsZero() {
		c.UnpaidAlertAmount = d.UnpaidAlertAmount
	}
	if c.StorageRetries <= 0 {
		c.StorageRetries = d.StorageRetries
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// applyEnv は .env と環境変数の値で設定を上書きします。
func applyEnv(c *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ALMACEN_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ALMACEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ALMACEN_LOCALE"); v != "" {
		c.Locale = v
	}
	if v := os.Getenv("ALMACEN_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("ALMACEN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v, err := strconv.Atoi(os.Getenv("ALMACEN_UNPAID_AGING_DAYS")); err == nil {
		c.UnpaidAgingDays = v
	}
	if v, err := decimal.NewFromString(os.Getenv("ALMACEN_UNPAID_ALERT_AMOUNT")); err == nil {
		c.UnpaidAlertAmount = v
	}
	if v, err := strconv.Atoi(os.Getenv("ALMACEN_STORAGE_RETRIES")); err == nil {
		c.StorageRetries = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ALMACEN_OPEN_BROWSER"))); v != "" {
		c.OpenBrowser = v == "1" || v == "true" || v == "yes"
	}
}

func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	var tempCfg Config
	file, err := os.ReadFile(configFilePath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := json.Unmarshal(file, &tempCfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&tempCfg)
	fillDefaults(&tempCfg)
	cfg = tempCfg
	return cfg, nil
}

func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	fillDefaults(&newCfg)

	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(configFilePath, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

// Location は集計で日付の区切りに使うタイムゾーンです。不正な値の場合は UTC です。
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// SetFilePath は設定ファイルの場所を変更します (テスト用)。
func SetFilePath(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFilePath = path
}
