package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/render"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

type configRequest struct {
	DBPath            string          `json:"dbPath"`
	ListenAddr        string          `json:"listenAddr"`
	Locale            string          `json:"locale"`
	Timezone          string          `json:"timezone"`
	UnpaidAgingDays   int             `json:"unpaidAgingDays" validate:"gte=0,lte=3650"`
	UnpaidAlertAmount decimal.Decimal `json:"unpaidAlertAmount" validate:"gte=0"`
	StorageRetries    int             `json:"storageRetries" validate:"gte=0,lte=100"`
	LogLevel          string          `json:"logLevel" validate:"omitempty,oneof=trace debug info warn warning error"`
	OpenBrowser       bool            `json:"openBrowser"`
}

// ConfigHandler は GET で現在の設定を返し、POST で設定を保存します。
func ConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			render.JSON(w, http.StatusOK, config.GetConfig())
		case http.MethodPost:
			saveConfig(w, r)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

func saveConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := render.DecodeJSON(r, &req); err != nil {
		render.Error(w, err)
		return
	}
	if err := validateConfig(req); err != nil {
		render.Error(w, err)
		return
	}

	newCfg := config.GetConfig()
	newCfg.DBPath = req.DBPath
	newCfg.ListenAddr = req.ListenAddr
	newCfg.Locale = req.Locale
	newCfg.Timezone = req.Timezone
	newCfg.UnpaidAgingDays = req.UnpaidAgingDays
	newCfg.UnpaidAlertAmount = req.UnpaidAlertAmount
	newCfg.StorageRetries = req.StorageRetries
	newCfg.LogLevel = req.LogLevel
	newCfg.OpenBrowser = req.OpenBrowser

	if err := config.SaveConfig(newCfg); err != nil {
		config.LogError(config.GetLogger(), "main", "saveConfig", "save config", req, err)
		render.Message(w, http.StatusInternalServerError, "設定の保存に失敗しました。")
		return
	}
	config.SetLogLevel(config.GetConfig().LogLevel)
	render.Message(w, http.StatusOK, "設定を保存しました。DB パスと待受アドレスの変更は再起動後に反映されます。")
}

func validateConfig(req configRequest) error {
	if req.Locale != "" {
		if _, err := language.Parse(req.Locale); err != nil {
			return apperr.Invalid("unknown locale %q", req.Locale).WithDetail("locale", req.Locale)
		}
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return apperr.Invalid("unknown timezone %q", req.Timezone).WithDetail("timezone", req.Timezone)
		}
	}
	return validateFolderPath(req.DBPath)
}

// validateFolderPath は DB ファイルを置くフォルダが存在するか確認します。
func validateFolderPath(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Invalid("folder %s does not exist", dir).WithDetail("dbPath", dbPath)
		}
		return err
	}
	if !info.IsDir() {
		return apperr.Invalid("%s is not a folder", dir).WithDetail("dbPath", dbPath)
	}
	return nil
}
