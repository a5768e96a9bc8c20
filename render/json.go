package render

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"almacen/apperr"
	"almacen/config"
	"almacen/locale"
	"almacen/model"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator はリクエスト検証用の共有インスタンスを返します。
// decimal.Decimal は float64 として gt/gte などのタグで検証できます。
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
		validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
			if d, ok := v.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return model.PaymentMethod(fl.Field().String()).Valid()
		})
	})
	return validate
}

// DecodeJSON はリクエストボディを dst に読み込み、validate タグで検証します。
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Invalid("malformed request body").Wrap(err)
	}
	return Validate(dst)
}

func Validate(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperr.Invalid("invalid request").Wrap(err)
	}
	ae := apperr.Invalid("request validation failed")
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		fields[fe.Field()] = fe.Tag()
	}
	return ae.WithDetail("fields", fields)
}

// QueryID はクエリ文字列の整数 ID を読み取ります。
func QueryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("query parameter %q must be a positive integer", key).WithDetail(key, raw)
	}
	return id, nil
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.GetLogger().WithError(err).Warn("failed to encode JSON response")
	}
}

// Message は key を現在のロケールで書式化し、{"message": ...} 形式で応答します。
func Message(w http.ResponseWriter, status int, key string, args ...interface{}) {
	JSON(w, status, map[string]string{"message": locale.Sprintf(key, args...)})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInvalid:             http.StatusBadRequest,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindInsufficientStock:   http.StatusConflict,
	apperr.KindInvalidSaleTotal:    http.StatusUnprocessableEntity,
	apperr.KindInvalidShareSum:     http.StatusUnprocessableEntity,
	apperr.KindAlreadyPaid:         http.StatusConflict,
	apperr.KindConstraintViolation: http.StatusConflict,
	apperr.KindStorageUnavailable:  http.StatusServiceUnavailable,
}

// kindMessage は locale の翻訳キーです。
var kindMessage = map[apperr.Kind]string{
	apperr.KindInvalid:             "入力内容が不正です。",
	apperr.KindNotFound:            "対象のデータが見つかりません。",
	apperr.KindInsufficientStock:   "在庫が不足しています。",
	apperr.KindInvalidSaleTotal:    "販売合計が明細と一致しません。",
	apperr.KindInvalidShareSum:     "持分の合計は100%%である必要があります。",
	apperr.KindAlreadyPaid:         "この販売は既に支払済みです。",
	apperr.KindConstraintViolation: "他のデータと矛盾するため処理できません。",
	apperr.KindStorageUnavailable:  "データベースが混み合っています。しばらくしてから再試行してください。",
}

// StatusOf はエラーに対応する HTTP ステータスを返します。
func StatusOf(err error) int {
	if kind, ok := apperr.KindOf(err); ok {
		if status, ok := kindStatus[kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Error はエラーを JSON で返します。業務エラー以外はログに残し詳細を隠します。
func Error(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		JSON(w, StatusOf(err), map[string]interface{}{
			"code":    ae.Kind,
			"message": locale.Sprintf(kindMessage[ae.Kind]),
			"detail":  ae.Message,
			"details": ae.Details,
		})
		return
	}
	config.GetLogger().WithError(err).Error("unhandled error in request")
	Message(w, http.StatusInternalServerError, "サーバー内部でエラーが発生しました。")
}

// MethodNotAllowed は許可されていないメソッドへの応答です。
func MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	Message(w, http.StatusMethodNotAllowed, "許可されていないメソッドです。")
}
