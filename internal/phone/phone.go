// Package phone приводит номера телефонов к каноническому международному виду
// (+966...) и строит варианты записи для поиска клиентов.
package phone

import (
	"fmt"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

const (
	CountryCode = "966"
	loginDomain = "phone.auth"
)

var stripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")

// Normalize приводит номер к виду +<код страны><номер>.
//
//	0501234567     -> +966501234567
//	501234567      -> +966501234567
//	966501234567   -> +966501234567
//	00966501234567 -> +966501234567
//	+966501234567  -> без изменений
func Normalize(raw string) (string, error) {
	s := stripper.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty phone number", domain.ErrInvalidInput)
	}

	var out string
	switch {
	case strings.HasPrefix(s, "+"):
		out = s
	case strings.HasPrefix(s, "00"):
		out = "+" + s[2:]
	case strings.HasPrefix(s, CountryCode):
		out = "+" + s
	case strings.HasPrefix(s, "0"):
		out = "+" + CountryCode + s[1:]
	default:
		out = "+" + CountryCode + s
	}

	if !allDigits(out[1:]) || len(out) < 8 {
		return "", fmt.Errorf("%w: malformed phone number %q", domain.ErrInvalidInput, raw)
	}
	return out, nil
}

// Variants возвращает различные записи одного номера, под которыми он мог
// сохраниться у клиента: +9665..., 9665..., 05..., 5... и исходную строку.
func Variants(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	normalized, err := Normalize(raw)
	if err != nil {
		add(strings.TrimSpace(raw))
		return out
	}

	add(normalized)
	add(normalized[1:])
	if national, ok := strings.CutPrefix(normalized, "+"+CountryCode); ok {
		add("0" + national)
		add(national)
	}
	add(strings.TrimSpace(raw))
	return out
}

// LoginEmail синтетический логин для входа по номеру: <цифры>@phone.auth
func LoginEmail(normalized string) string {
	return strings.TrimPrefix(normalized, "+") + "@" + loginDomain
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
