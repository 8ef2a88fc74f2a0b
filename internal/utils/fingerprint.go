package utils

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceFingerprint — класс устройства + ОС + клиент из User-Agent,
// в нижнем регистре, без не-алфавитно-цифровых символов.
// Один и тот же браузер на том же устройстве даёт один отпечаток,
// поэтому повторный вход перезаписывает сессию, а не плодит новую.
func DeviceFingerprint(uaString string) string {
	ua := useragent.New(uaString)

	device := "desktop"
	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	}

	os := ua.OS()
	if os == "" {
		os = "unknown"
	}
	name, _ := ua.Browser()
	if name == "" {
		name = "unknown"
	}

	return sanitizeFingerprint(device + os + name)
}

func sanitizeFingerprint(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
