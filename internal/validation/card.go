// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidCardNumber проверяет номер платёжной карты: длина от 13 до 19 цифр
// и контрольная сумма по алгоритму Луна.
func IsValidCardNumber(number string) bool {
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// IsValidCVV проверяет код безопасности карты: три или четыре цифры.
func IsValidCVV(cvv string) bool {
	if len(cvv) != 3 && len(cvv) != 4 {
		return false
	}
	return allDigits(cvv)
}

// IsValidZipCode проверяет почтовый индекс США: пять цифр, опционально
// с четырёхзначным расширением через дефис.
func IsValidZipCode(zip string) bool {
	switch len(zip) {
	case 5:
		return allDigits(zip)
	case 10:
		return allDigits(zip[:5]) && zip[5] == '-' && allDigits(zip[6:])
	default:
		return false
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}
