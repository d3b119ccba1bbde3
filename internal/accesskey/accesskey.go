// Package accesskey строит ключ доступа фискального документа с контрольной цифрой mod 11.
package accesskey

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/rental-billing/internal/validation"
)

const (
	// BaseLength задаёт длину ключа без контрольной цифры.
	BaseLength = 42
	// Length задаёт полную длину ключа доступа.
	Length = BaseLength + 1
	// DocumentModel задаёт код модели документа NF-e.
	DocumentModel = "55"

	issuerRootDigits = 8
	issuerFieldWidth = 14
	maxNumber        = 999_999_999
	numericCodeMod   = 100_000_000
)

var weights = [10]int{2, 9, 8, 7, 6, 5, 4, 3, 2, 1}

var (
	// ErrInvalidRegion возвращается, если код региона не из двух цифр.
	ErrInvalidRegion = errors.New("region code must be two digits")
	// ErrInvalidTaxID возвращается, если ИНН эмитента содержит посторонние символы.
	ErrInvalidTaxID = errors.New("issuer tax id must be numeric")
	// ErrInvalidSeries возвращается, если серия не число от 0 до 999.
	ErrInvalidSeries = errors.New("series must be a number between 0 and 999")
	// ErrInvalidNumber возвращается, если номер вне диапазона 1..999999999.
	ErrInvalidNumber = errors.New("number must be between 1 and 999999999")
)

// Input содержит атрибуты документа, из которых строится ключ.
type Input struct {
	RegionCode  string
	IssuedAt    time.Time
	IssuerTaxID string
	Series      string
	Number      int64
}

// Generate строит 43-значный ключ доступа. Одинаковые входные данные всегда дают одинаковый ключ.
func Generate(in Input) (string, error) {
	base, err := Base(in)
	if err != nil {
		return "", err
	}
	return base + strconv.Itoa(CheckDigit(base)), nil
}

// Base строит 42-значную основу ключа из полей фиксированной ширины:
// регион(2) год(2) месяц(2) корень ИНН(8, дополненный нулями до 14) модель(2) серия(3) номер(9) код(8).
func Base(in Input) (string, error) {
	if len(in.RegionCode) != 2 || !numeric(in.RegionCode) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, in.RegionCode)
	}

	taxDigits, ok := validation.Digits(in.IssuerTaxID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaxID, in.IssuerTaxID)
	}
	root := issuerRoot(taxDigits)

	series, err := strconv.Atoi(in.Series)
	if err != nil || series < 0 || series > 999 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeries, in.Series)
	}
	if in.Number < 1 || in.Number > maxNumber {
		return "", fmt.Errorf("%w: %d", ErrInvalidNumber, in.Number)
	}

	var b strings.Builder
	b.Grow(BaseLength)
	b.WriteString(in.RegionCode)
	fmt.Fprintf(&b, "%02d%02d", in.IssuedAt.Year()%100, int(in.IssuedAt.Month()))
	b.WriteString(root)
	b.WriteString(strings.Repeat("0", issuerFieldWidth-issuerRootDigits))
	b.WriteString(DocumentModel)
	fmt.Fprintf(&b, "%03d%09d%08d", series, in.Number, numericCode(root, series, in.Number))

	return b.String(), nil
}

// CheckDigit вычисляет контрольную цифру: веса 2,9,8,7,6,5,4,3,2,1 по позиции mod 10,
// затем 11 - (сумма mod 11), где 10 и 11 заменяются на 0.
func CheckDigit(base string) int {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weights[i%len(weights)]
	}

	dv := 11 - sum%11
	if dv >= 10 {
		return 0
	}
	return dv
}

// Valid проверяет длину ключа и его контрольную цифру.
func Valid(key string) bool {
	if len(key) != Length || !numeric(key) {
		return false
	}
	return CheckDigit(key[:BaseLength]) == int(key[BaseLength]-'0')
}

func issuerRoot(taxDigits string) string {
	if len(taxDigits) >= issuerRootDigits {
		return taxDigits[:issuerRootDigits]
	}
	return strings.Repeat("0", issuerRootDigits-len(taxDigits)) + taxDigits
}

func numericCode(root string, series int, number int64) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%d", root, series, number)
	return h.Sum32() % numericCodeMod
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
