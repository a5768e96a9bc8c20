package report

import (
	"fmt"
	"net/http"
	"time"

	"almacen/apperr"
	"almacen/database"
)

const dateLayout = "2006-01-02"

// Range はローカル日付の範囲 [From, To) です。
type Range struct {
	From time.Time
	To   time.Time
}

// NewRange は from から to (両端を含む) までのローカル日付範囲を作ります。
func NewRange(from, to time.Time, loc *time.Location) (Range, error) {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !f.Before(t) {
		return Range{}, apperr.Invalid("from must not be after to").
			WithDetail("from", from.Format(dateLayout)).
			WithDetail("to", to.Format(dateLayout))
	}
	return Range{From: f, To: t}, nil
}

// ParseRange は ?from=YYYY-MM-DD&to=YYYY-MM-DD を読み取ります。
// 省略時は当月1日から今日までです。
func ParseRange(r *http.Request, now time.Time, loc *time.Location) (Range, error) {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	to := local

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return Range{}, apperr.Invalid("from must be YYYY-MM-DD").WithDetail("from", v)
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return Range{}, apperr.Invalid("to must be YYYY-MM-DD").WithDetail("to", v)
		}
		to = t
	}
	return NewRange(from, to, loc)
}

// Filter は保存形式 (UTC) の created_at 範囲に変換します。
func (rg Range) Filter() database.PeriodFilter {
	return database.PeriodFilter{
		From: database.FormatTime(rg.From),
		To:   database.FormatTime(rg.To),
	}
}

// Modifier は UTC の created_at をローカル時刻にする SQLite の修飾子です。
// 範囲の開始時点のオフセットを使います。
func (rg Range) Modifier() string {
	_, offset := rg.From.Zone()
	return fmt.Sprintf("%+d minutes", offset/60)
}
