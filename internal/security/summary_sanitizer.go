// Package security は取り込みパイプラインのセキュリティ機能を提供する。
//
// SummarySanitizerService はフィード記事のサマリーからHTMLタグを
// すべて除去し、プレーンテキストの抜粋として保存できる形にする。
// このシステムはHTML本文のレンダリングを行わないため、
// 許可リストではなく全タグ除去のStrictPolicyを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SummarySanitizerService はサマリーのサニタイズ機能のインターフェースを定義する。
// 記事の保存前に使用される。
type SummarySanitizerService interface {
	// Sanitize はHTMLを含みうるサマリーからタグを除去し、
	// 実体参照をデコードして前後の空白を取り除いたテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// summarySanitizer はSummarySanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type summarySanitizer struct {
	policy *bluemonday.Policy
}

// NewSummarySanitizer はSummarySanitizerServiceの新しいインスタンスを生成する。
func NewSummarySanitizer() *summarySanitizer {
	return &summarySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLを含みうるサマリーをプレーンテキストに変換する。
// StrictPolicyは全タグを除去するが実体参照はエスケープされたまま残るため、
// 除去後にアンエスケープして表示用テキストに揃える。
func (s *summarySanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
