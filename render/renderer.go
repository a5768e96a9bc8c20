package render

import (
	"html"
	"strconv"
	"strings"

	"almacen/model"
)

// RenderSalesTableHTML は販売一覧の HTML テーブル文字列を生成します。
// customerMap は得意先IDと得意先名のマップです。
func RenderSalesTableHTML(sales []model.Sale, customerMap map[int64]string) string {
	var sb strings.Builder

	sb.WriteString(`
    <thead>
        <tr>
            <th class="col-id">No.</th>
            <th class="col-date">日付</th>
            <th class="col-customer">得意先</th>
            <th class="col-method">支払方法</th>
            <th class="col-amount">金額</th>
            <th class="col-surcharge">手数料(%)</th>
            <th class="col-status">状態</th>
        </tr>
    </thead>`)

	sb.WriteString(`<tbody>`)
	if len(sales) == 0 {
		sb.WriteString(`<tr><td colspan="7">登録されたデータはありません。</td></tr>`)
	} else {
		for _, s := range sales {
			customerName := "－"
			if s.CustomerID != nil {
				if name, ok := customerMap[*s.CustomerID]; ok {
					customerName = name
				}
			}

			var status, rowClass string
			switch {
			case s.Voided:
				status, rowClass = "取消", "row-voided"
			case s.IsPaid:
				status, rowClass = "支払済", "row-paid"
			default:
				status, rowClass = "未払い", "row-unpaid"
			}

			amount := s.Total
			if s.PaidAmount.Valid {
				amount = s.PaidAmount.Decimal
			}

			sb.WriteString(`<tr class="` + rowClass + `" data-sale-id="` + strconv.FormatInt(s.ID, 10) + `">`)
			sb.WriteString(`<td class="right">` + strconv.FormatInt(s.ID, 10) + `</td>`)
			sb.WriteString(`<td>` + html.EscapeString(s.CreatedAt) + `</td>`)
			sb.WriteString(`<td class="left">` + html.EscapeString(customerName) + `</td>`)
			sb.WriteString(`<td>` + html.EscapeString(string(s.PaymentMethod)) + `</td>`)
			sb.WriteString(`<td class="right">` + amount.StringFixedBank(2) + `</td>`)
			sb.WriteString(`<td class="right">` + s.Surcharge.StringFixedBank(2) + `</td>`)
			sb.WriteString(`<td>` + status + `</td>`)
			sb.WriteString(`</tr>`)
		}
	}
	sb.WriteString(`</tbody>`)
	return sb.String()
}
