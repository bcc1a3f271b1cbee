package closure

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod is a closed set of tender types accepted at the till.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodTransfer   PaymentMethod = "transfer"
	MethodCheck      PaymentMethod = "check"
	MethodVoucher    PaymentMethod = "voucher"
	MethodFleetCard  PaymentMethod = "fleet_card"
	MethodQR         PaymentMethod = "qr"
	MethodOther      PaymentMethod = "other"
)

// Bucket is one of the four reporting categories.
type Bucket string

const (
	BucketCash     Bucket = "cash"
	BucketCard     Bucket = "card"
	BucketTransfer Bucket = "transfer"
	BucketOther    Bucket = "other"
)

// Buckets lists the reporting categories in display order.
var Buckets = []Bucket{BucketCash, BucketCard, BucketTransfer, BucketOther}

var methodAliases = map[string]PaymentMethod{
	"cash":            MethodCash,
	"efectivo":        MethodCash,
	"contado":         MethodCash,
	"debit":           MethodDebitCard,
	"debit_card":      MethodDebitCard,
	"debito":          MethodDebitCard,
	"débito":          MethodDebitCard,
	"tarjeta_debito":  MethodDebitCard,
	"credit":          MethodCreditCard,
	"credit_card":     MethodCreditCard,
	"credito":         MethodCreditCard,
	"crédito":         MethodCreditCard,
	"tarjeta_credito": MethodCreditCard,
	"card":            MethodCreditCard,
	"tarjeta":         MethodCreditCard,
	"transfer":        MethodTransfer,
	"bank_transfer":   MethodTransfer,
	"transferencia":   MethodTransfer,
	"check":           MethodCheck,
	"cheque":          MethodCheck,
	"voucher":         MethodVoucher,
	"vale":            MethodVoucher,
	"fleet_card":      MethodFleetCard,
	"flota":           MethodFleetCard,
	"tarjeta_flota":   MethodFleetCard,
	"qr":              MethodQR,
	"codigo_qr":       MethodQR,
	"other":           MethodOther,
	"otro":            MethodOther,
}

// ParsePaymentMethod resolves a declared method name. Unknown names map to
// MethodOther with ok=false so the caller can warn.
func ParsePaymentMethod(name string) (PaymentMethod, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	method, ok := methodAliases[key]
	if !ok {
		return MethodOther, false
	}
	return method, true
}

// Bucket maps a method onto its reporting category.
func (m PaymentMethod) Bucket() Bucket {
	switch m {
	case MethodCash:
		return BucketCash
	case MethodDebitCard, MethodCreditCard, MethodFleetCard:
		return BucketCard
	case MethodTransfer, MethodQR:
		return BucketTransfer
	case MethodCheck, MethodVoucher, MethodOther:
		return BucketOther
	default:
		return BucketOther
	}
}

// BucketAmount is the money attributed to one category.
type BucketAmount struct {
	Bucket     Bucket          `json:"bucket"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MethodBreakdown is a declared method after parsing.
type MethodBreakdown struct {
	Declared   string          `json:"declared"`
	Method     PaymentMethod   `json:"method"`
	Bucket     Bucket          `json:"bucket"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Reconciliation compares declared money against calculated sales.
type Reconciliation struct {
	DeclaredTotal     decimal.Decimal   `json:"declared_total"`
	CalculatedTotal   decimal.Decimal   `json:"calculated_total"`
	Variance          decimal.Decimal   `json:"variance"`
	MethodSum         decimal.Decimal   `json:"method_sum"`
	MethodDiscrepancy decimal.Decimal   `json:"method_discrepancy"`
	Balanced          bool              `json:"balanced"`
	Buckets           []BucketAmount    `json:"buckets"`
	Methods           []MethodBreakdown `json:"methods"`
}
