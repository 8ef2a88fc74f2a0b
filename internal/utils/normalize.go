package utils

import "strings"

// NormalizeEmail — нижний регистр + trim.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone — оставляем только цифры и ведущий +.
// "+998 (90) 123-45-67" -> "+998901234567", "998901234567" -> "+998901234567".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "+" {
		return ""
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}

// NormalizeIdentifier — email, если есть @, иначе телефон.
func NormalizeIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return NormalizeEmail(identifier)
	}
	return NormalizePhone(identifier)
}

// IsEmail — грубая проверка, достаточная для выбора канала.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
