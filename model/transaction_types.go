package model

import "github.com/shopspring/decimal"

// PaymentMethod は支払方法です。
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentTransfer    PaymentMethod = "transfer"
	PaymentCard        PaymentMethod = "card"
	PaymentMercadoPago PaymentMethod = "mercadopago"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentMercadoPago:
		return true
	}
	return false
}

// TimeLayout は created_at などの TEXT 日時カラムの書式です (SQLite の CURRENT_TIMESTAMP と同じ)。
const TimeLayout = "2006-01-02 15:04:05"

type Purchase struct {
	ID            int64           `db:"id" json:"id"`
	ProductID     int64           `db:"product_id" json:"productId"`
	SupplierID    *int64          `db:"supplier_id" json:"supplierId"`
	CreatedAt     string          `db:"created_at" json:"createdAt"`
	Quantity      int64           `db:"quantity" json:"quantity"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"paymentMethod"`
}

// Sale は sales テーブルのレコードです。支払状態 (is_paid 以降) だけが確定後に変化します。
type Sale struct {
	ID            int64               `db:"id" json:"id"`
	CustomerID    *int64              `db:"customer_id" json:"customerId"`
	CreatedAt     string              `db:"created_at" json:"createdAt"`
	Total         decimal.Decimal     `db:"total" json:"total"`
	PaymentMethod PaymentMethod       `db:"payment_method" json:"paymentMethod"`
	IsPaid        bool                `db:"is_paid" json:"isPaid"`
	PaidAt        *string             `db:"paid_at" json:"paidAt,omitempty"`
	Surcharge     decimal.Decimal     `db:"surcharge" json:"surcharge"`
	PaidAmount    decimal.NullDecimal `db:"paid_amount" json:"paidAmount"`
	Voided        bool                `db:"voided" json:"voided"`
	Items         []SaleItem          `db:"-" json:"items,omitempty"`
}

// SaleItem は販売時点の単価を保持します。
type SaleItem struct {
	SaleID      int64           `db:"sale_id" json:"saleId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int64           `db:"quantity" json:"quantity"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// SaleVoid は未払い販売の取消記録です。元の販売行は変更しません。
type SaleVoid struct {
	SaleID    int64  `db:"sale_id" json:"saleId"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	Reason    string `db:"reason" json:"reason"`
}

type Expense struct {
	ID            int64           `db:"id" json:"id"`
	CreatedAt     string          `db:"created_at" json:"createdAt"`
	Category      string          `db:"category" json:"category"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Description   *string         `db:"description" json:"description,omitempty"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	Shares        []Share         `db:"-" json:"shares,omitempty"`
}

// Payment は月次請求の精算1回分の記録です。追記のみで、更新・削除はしません。
// Method が nil の場合は各販売の支払方法のまま精算されています。
type Payment struct {
	ID           int64           `db:"id" json:"id"`
	CustomerID   *int64          `db:"customer_id" json:"customerId"`
	CustomerName *string         `db:"customer_name" json:"customerName,omitempty"`
	CreatedAt    string          `db:"created_at" json:"createdAt"`
	Period       string          `db:"period" json:"period"`
	Method       *PaymentMethod  `db:"method" json:"method,omitempty"`
	Surcharge    decimal.Decimal `db:"surcharge" json:"surcharge"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	SaleCount    int             `db:"sale_count" json:"saleCount"`
}
