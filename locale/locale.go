// Package locale は利用者向けの文言を config.Locale の言語で組み立てます。
// キーは日本語の原文で、訳がない言語では原文のまま表示されます。
package locale

import (
	"almacen/config"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type translation struct {
	es string
	en string
}

var messages = map[string]translation{
	// エラー種別
	"入力内容が不正です。":             {"Los datos ingresados no son válidos.", "The submitted data is invalid."},
	"対象のデータが見つかりません。":        {"No se encontró el registro solicitado.", "The requested record was not found."},
	"在庫が不足しています。":            {"Stock insuficiente.", "Insufficient stock."},
	"販売合計が明細と一致しません。":        {"El total de la venta no coincide con los ítems.", "The sale total does not match its items."},
	"持分の合計は100%%である必要があります。": {"Los porcentajes deben sumar 100%%.", "Ownership shares must add up to 100%%."},
	"この販売は既に支払済みです。":         {"La venta ya fue pagada.", "The sale has already been paid."},
	"他のデータと矛盾するため処理できません。":   {"La operación entra en conflicto con otros datos.", "The operation conflicts with existing data."},
	"データベースが混み合っています。しばらくしてから再試行してください。": {
		"La base de datos está ocupada. Intente nuevamente en unos instantes.",
		"The database is busy. Please try again shortly.",
	},
	"サーバー内部でエラーが発生しました。": {"Ocurrió un error interno del servidor.", "An internal server error occurred."},
	"許可されていないメソッドです。":    {"Método no permitido.", "Method not allowed."},

	// 処理結果
	"%s %d を削除しました。": {"%s %d eliminado.", "%s %d deleted."},
	"商品":             {"Producto", "Product"},
	"仕入先":            {"Proveedor", "Supplier"},
	"得意先":            {"Cliente", "Customer"},
	"オーナー":           {"Dueño", "Owner"},
	"経費":             {"Gasto", "Expense"},
	"設定の保存に失敗しました。": {"No se pudo guardar la configuración.", "Failed to save the configuration."},
	"設定を保存しました。DB パスと待受アドレスの変更は再起動後に反映されます。": {
		"Configuración guardada. Los cambios de ruta de base de datos y dirección se aplican al reiniciar.",
		"Configuration saved. Database path and listen address changes apply after a restart.",
	},
	"マイグレーションを適用しました。": {"Migraciones aplicadas.", "Migrations applied."},

	// 通知
	"在庫僅少: %s": {"Stock bajo: %s", "Low stock: %s"},
	"%s の在庫が %d になりました (閾値 %d)。": {"%s quedó con %d unidades (mínimo %d).", "%s is down to %d units (threshold %d)."},
	"未払い超過: %s": {"Deuda vencida: %s", "Overdue balance: %s"},
	"%s の未払いが %d 件、合計 $%.2f あります (最古 %s)。": {
		"%s tiene %d ventas impagas por $%.2f (la más antigua %s).",
		"%s has %d unpaid sales totalling $%.2f (oldest %s).",
	},
}

var cat = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Japanese))
	for key, tr := range messages {
		b.SetString(language.Japanese, key, key)
		b.SetString(language.Spanish, key, tr.es)
		b.SetString(language.English, key, tr.en)
	}
	return b
}

// PrinterFor は tag の言語と数値書式で文言を組み立てる Printer を返します。
// 解釈できないロケールはスペイン語として扱います。
func PrinterFor(tag string) *message.Printer {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.Spanish
	}
	return message.NewPrinter(t, message.Catalog(cat))
}

func Printer() *message.Printer {
	return PrinterFor(config.GetConfig().Locale)
}

// Sprintf は現在のロケールで key を翻訳して書式化します。
func Sprintf(key string, args ...interface{}) string {
	return Printer().Sprintf(key, args...)
}
