package services

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// codeHasher — bcrypt-хэширование кодов. Отключается конфигом
// (otp.hash_codes: false) для окружений без бюджета на bcrypt;
// тогда код хранится как есть, сравнение — constant-time.
type codeHasher struct {
	enabled bool
	cost    int
}

func newCodeHasher(enabled bool, cost int) codeHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return codeHasher{enabled: enabled, cost: cost}
}

func (h codeHasher) Hash(code string) (string, error) {
	if !h.enabled {
		return code, nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

func (h codeHasher) Compare(stored, code string) bool {
	if !h.enabled {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(code)) == nil
}
