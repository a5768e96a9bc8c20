package main

import (
	"net/http"

	"almacen/automation"
	"almacen/catalog"
	"almacen/inventory"
	"almacen/journal"
	"almacen/loader"
	"almacen/notification"
	"almacen/ownership"
	"almacen/payment"
	"almacen/report"

	"github.com/jmoiron/sqlx"
)

// services はハンドラが使うサービス一式です。
type services struct {
	db        *sqlx.DB
	catalog   *catalog.Catalog
	ledger    *ownership.Ledger
	journal   *journal.Journal
	tracker   *payment.Tracker
	emitter   *notification.Emitter
	reports   *report.Service
	scheduler *automation.Scheduler
}

func SetupRoutes(mux *http.ServeMux, s *services) {
	mux.HandleFunc("/api/products", catalog.ProductsHandler(s.catalog))
	mux.HandleFunc("/api/products/threshold", inventory.AdjustThresholdHandler(s.db))
	mux.HandleFunc("/api/products/low_stock", inventory.LowStockHandler(s.db))
	mux.HandleFunc("/api/suppliers", catalog.SuppliersHandler(s.catalog))
	mux.HandleFunc("/api/customers", catalog.CustomersHandler(s.catalog))
	mux.HandleFunc("/api/owners", catalog.OwnersHandler(s.catalog))

	mux.HandleFunc("/api/shares", ownership.SharesHandler(s.ledger))
	mux.HandleFunc("/api/distribution", ownership.DistributionHandler(s.ledger))

	mux.HandleFunc("/api/purchases", journal.PurchasesHandler(s.journal))
	mux.HandleFunc("/api/sales", journal.SalesHandler(s.journal))
	mux.HandleFunc("/api/sales/table", journal.SalesTableHandler(s.journal))
	mux.HandleFunc("/api/sales/void", journal.VoidSaleHandler(s.journal))
	mux.HandleFunc("/api/expenses", journal.ExpensesHandler(s.journal))

	mux.HandleFunc("/api/sales/pay", payment.MarkPaidHandler(s.tracker))
	mux.HandleFunc("/api/bills/pay", payment.PayBillHandler(s.tracker))
	mux.HandleFunc("/api/bills/monthly", payment.MonthlyUnpaidHandler(s.tracker))
	mux.HandleFunc("/api/bills/aging", payment.CheckAgingHandler(s.tracker))
	mux.HandleFunc("/api/payments", payment.PaymentsHandler(s.tracker))
	mux.HandleFunc("/api/automation/aging", automation.AgingHandler(s.scheduler))

	mux.HandleFunc("/api/notifications", notification.ListHandler(s.emitter))
	mux.HandleFunc("/api/notifications/read", notification.MarkReadHandler(s.emitter))

	mux.HandleFunc("/api/reports/balance", report.BalanceHandler(s.reports))
	mux.HandleFunc("/api/reports/daily", report.DailyHandler(s.reports))
	mux.HandleFunc("/api/reports/monthly", report.MonthlyHandler(s.reports))
	mux.HandleFunc("/api/reports/valuation", report.ValuationHandler(s.reports))
	mux.HandleFunc("/api/reports/owners", ownership.OwnerRevenueHandler(s.ledger))

	mux.HandleFunc("/api/schema", loader.SchemaStatusHandler(s.db))
	mux.HandleFunc("/api/schema/migrate", loader.MigrateHandler(s.db))

	mux.HandleFunc("/api/config", ConfigHandler())
}
