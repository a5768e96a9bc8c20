package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"almacen/apperr"
	"almacen/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("bad"), http.StatusBadRequest},
		{apperr.NotFound("sale", 1), http.StatusNotFound},
		{apperr.New(apperr.KindInsufficientStock, "short"), http.StatusConflict},
		{apperr.New(apperr.KindInvalidSaleTotal, "total"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.KindInvalidShareSum, "sum"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.KindAlreadyPaid, "paid"), http.StatusConflict},
		{apperr.Conflict("dup"), http.StatusConflict},
		{apperr.StorageUnavailable(errors.New("busy")), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("owner", 2)), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperr.New(apperr.KindInsufficientStock, "insufficient stock").WithDetail("items", []int{7}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	assert.Equal(t, "Stock insuficiente.", body["message"])
	assert.Contains(t, body["details"], "items")

	rec = httptest.NewRecorder()
	Error(rec, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

type sample struct {
	Name   string              `json:"name" validate:"required"`
	Amount decimal.Decimal     `json:"amount" validate:"gt=0"`
	Method model.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
}

func TestDecodeJSONValidates(t *testing.T) {
	decode := func(body string) (sample, error) {
		var s sample
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return s, DecodeJSON(r, &s)
	}

	_, err := decode(`{"name":"a","amount":"10.5","paymentMethod":"card"}`)
	require.NoError(t, err)

	_, err = decode(`{"name":"a","amount":"0","paymentMethod":"cheque"}`)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	fields := ae.Details["fields"].(map[string]string)
	assert.Equal(t, "gt", fields["amount"])
	assert.Equal(t, "payment_method", fields["paymentMethod"])

	_, err = decode(`{"name":`)
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestQueryID(t *testing.T) {
	id, err := QueryID(httptest.NewRequest(http.MethodGet, "/?id=42", nil), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, q := range []string{"", "?id=", "?id=-1", "?id=x"} {
		_, err := QueryID(httptest.NewRequest(http.MethodGet, "/"+q, nil), "id")
		assert.ErrorIs(t, err, apperr.ErrInvalid, q)
	}
}

func TestRenderSalesTableHTML(t *testing.T) {
	customer := int64(3)
	out := RenderSalesTableHTML([]model.Sale{
		{ID: 1, CustomerID: &customer, CreatedAt: "2024-03-15 12:00:00", Total: decimal.NewFromInt(10), PaymentMethod: model.PaymentCash},
		{ID: 2, Total: decimal.NewFromInt(5), PaymentMethod: model.PaymentCard, IsPaid: true},
		{ID: 3, Total: decimal.NewFromInt(1), PaymentMethod: model.PaymentCash, Voided: true},
	}, map[int64]string{3: "<Ana>"})

	assert.Contains(t, out, "&lt;Ana&gt;")
	assert.NotContains(t, out, "<Ana>")
	assert.Contains(t, out, "未払い")
	assert.Contains(t, out, "支払済")
	assert.Contains(t, out, "取消")

	assert.Contains(t, RenderSalesTableHTML(nil, nil), "登録されたデータはありません。")
}
