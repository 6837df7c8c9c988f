// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力テキスト（メッセージ本文、
// プロフィールのbio・表示名）をサニタイズし、XSS攻撃などの
// セキュリティリスクから他のユーザーを保護する。
// チャットのコンテンツはプレーンテキストとして扱うため、
// bluemondayのStrictPolicyですべてのHTMLタグを除去する。
package security

import "github.com/microcosm-cc/bluemonday"

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// メッセージ保存前およびプロフィール更新時に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力テキストからすべてのHTMLタグを除去して返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// チャットの表示コンテンツはHTMLを許可しないため、StrictPolicy
// （全タグ除去）を使用する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからすべてのHTMLタグを除去して返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
