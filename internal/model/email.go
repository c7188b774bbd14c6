package model

import (
	"net/mail"
	"strings"
)

// maxEmailLen はメールアドレスの最大長（RFC 5321の上限）。
const maxEmailLen = 320

// ParseEmail はフォームから受け取ったメールアドレスを検証し、前後の空白を除いた値を返す。
// 表示名付きの形式（"Name <a@b>"）は受け付けない。不正な場合はNewInvalidEmailErrorを返す。
func ParseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxEmailLen {
		return "", NewInvalidEmailError()
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", NewInvalidEmailError()
	}
	return addr.Address, nil
}
