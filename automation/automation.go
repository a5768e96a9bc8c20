// Package automation はブラウザでの画面表示と、未払い超過の定期確認を行います。
package automation

import (
	"context"
	"fmt"
	"time"

	"almacen/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// OpenUI は専用のブラウザウィンドウで url を開きます。ブラウザを起動できない場合は
// OS 既定のブラウザで開きます。戻り値の関数でウィンドウを閉じます。
func OpenUI(ctx context.Context, url string) (func(), error) {
	log := config.GetLogger()

	// Leakless(false) でセキュリティソフト対策
	controlURL, err := launcher.New().
		Headless(false).
		Leakless(false).
		Set("app", url).
		Context(ctx).
		Launch()
	if err != nil {
		log.WithError(err).Warn("failed to launch browser, falling back to system browser")
		launcher.Open(url)
		return func() {}, nil
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	pages, err := browser.Pages()
	if err != nil || len(pages) == 0 {
		if _, err := browser.Page(proto.TargetCreateTarget{URL: url}); err != nil {
			browser.Close()
			return nil, fmt.Errorf("failed to open %s: %w", url, err)
		}
	} else if err := pages.First().WaitStable(500 * time.Millisecond); err != nil {
		log.WithError(err).Debug("page did not settle")
	}

	log.WithField("url", url).Info("UI opened in browser")
	return func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Debug("browser close failed")
		}
	}, nil
}
