// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はフォームの自由記述欄からHTMLを取り除き、プレーンテキストとして
// 保存・メール送信できる形に整える。URLGuard は外部URLの静的検証と、
// SSRF防止付きクライアントによる到達確認を行う。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力からHTMLタグを除去するインターフェース。
type TextSanitizer interface {
	// Clean は全てのタグを取り除いたプレーンテキストを返す。
	// 前後の空白は除去する。同一入力に対して常に同一出力を返す。
	Clean(s string) string
}

// textSanitizer はbluemondayのStrictPolicyを使用するTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに使用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、bluemondayがエスケープした実体参照を元の文字に戻す。
// 結果はHTMLとして出力しないこと。
func (s *textSanitizer) Clean(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}
