// Package validation содержит функции валидации входных данных.
package validation

import "strings"

var (
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Digits убирает из номера разделители форматирования ('.', '-', '/', пробелы).
// Возвращает false, если номер содержит другие нецифровые символы.
func Digits(taxID string) (string, bool) {
	var b strings.Builder
	for _, ch := range taxID {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '.' || ch == '-' || ch == '/' || ch == ' ':
		default:
			return "", false
		}
	}
	return b.String(), true
}

// IsValidTaxID проверяет CPF (11 цифр) или CNPJ (14 цифр) по контрольным цифрам mod 11.
func IsValidTaxID(taxID string) bool {
	digits, ok := Digits(taxID)
	if !ok {
		return false
	}

	switch len(digits) {
	case 11:
		return isValidCPF(digits)
	case 14:
		return isValidCNPJ(digits)
	default:
		return false
	}
}

func isValidCPF(digits string) bool {
	if repeated(digits) {
		return false
	}

	first := mod11Digit(digits[:9], descending(10, 9))
	if first != int(digits[9]-'0') {
		return false
	}
	second := mod11Digit(digits[:10], descending(11, 10))
	return second == int(digits[10]-'0')
}

func isValidCNPJ(digits string) bool {
	if repeated(digits) {
		return false
	}

	first := mod11Digit(digits[:12], cnpjFirstWeights)
	if first != int(digits[12]-'0') {
		return false
	}
	second := mod11Digit(digits[:13], cnpjSecondWeights)
	return second == int(digits[13]-'0')
}

func mod11Digit(digits string, weights []int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func descending(from, n int) []int {
	w := make([]int, n)
	for i := range w {
		w[i] = from - i
	}
	return w
}

func repeated(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
