package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// categoryVariant はソースごとに異なるカテゴリのエンコーディング形式を表す。
// 正規化は「形式の判定」と「形式ごとの変換」を分離した2段階で行い、
// 新しい形式の追加は判定分岐と変換関数の追加だけで済むようにする。
type categoryVariant int

const (
	// variantEmpty はカテゴリが存在しない形式。
	variantEmpty categoryVariant = iota
	// variantStringArray は文字列配列（["tech", "go"]）の形式。
	variantStringArray
	// variantJSONEncodedString はJSON配列を文字列として埋め込んだ
	// 形式（"[\"tech\", \"go\"]"）。
	variantJSONEncodedString
	// variantObjectArray はラベル付きオブジェクト配列
	// （[{"label": "tech"}, ...]）の形式。
	variantObjectArray
)

// classifyCategories は生のカテゴリ値がどの形式かを判定する。
func classifyCategories(raw any) categoryVariant {
	switch v := raw.(type) {
	case nil:
		return variantEmpty
	case string:
		if strings.TrimSpace(v) == "" {
			return variantEmpty
		}
		return variantJSONEncodedString
	case []string:
		return variantStringArray
	case []any:
		if len(v) == 0 {
			return variantEmpty
		}
		// 先頭要素で配列全体の形式を判定する。混在した配列は
		// 変換関数側で要素ごとにフォールバックする。
		if _, ok := v[0].(map[string]any); ok {
			return variantObjectArray
		}
		return variantStringArray
	default:
		return variantEmpty
	}
}

// NormalizeCategories は生のカテゴリ値を正規化済みの文字列スライスに変換する。
// 空白のみの要素は除去され、戻り値は常に非nil。未知の形式は空スライスになる。
func NormalizeCategories(raw any) []string {
	var categories []string

	switch classifyCategories(raw) {
	case variantStringArray:
		categories = fromStringArray(raw)
	case variantJSONEncodedString:
		categories = fromJSONEncodedString(raw.(string))
	case variantObjectArray:
		categories = fromObjectArray(raw.([]any))
	}

	result := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		result = append(result, c)
	}
	return result
}

// fromStringArray は文字列配列形式のカテゴリを変換する。
// []string と []any の両方を受け付け、文字列でない要素は
// 文字列表現にフォールバックする。
func fromStringArray(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		categories := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				categories = append(categories, s)
				continue
			}
			categories = append(categories, fmt.Sprintf("%v", e))
		}
		return categories
	default:
		return nil
	}
}

// fromJSONEncodedString はJSON配列を埋め込んだ文字列形式のカテゴリを変換する。
// JSON配列としてパースできない場合は値全体を単一のカテゴリとして扱う。
func fromJSONEncodedString(raw string) []string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "[") {
		var decoded []any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			if len(decoded) > 0 {
				if _, ok := decoded[0].(map[string]any); ok {
					return fromObjectArray(decoded)
				}
			}
			return fromStringArray(decoded)
		}
	}

	return []string{trimmed}
}

// objectLabelKeys はオブジェクト形式のカテゴリからラベルを取り出す
// キーの優先順位。RSS/Atom/JSON Feedの各流儀に対応する。
var objectLabelKeys = []string{"label", "name", "term", "value"}

// fromObjectArray はラベル付きオブジェクト配列形式のカテゴリを変換する。
// ラベルキーが見つからない要素はオブジェクト全体のJSON表現に
// フォールバックする。
func fromObjectArray(raw []any) []string {
	categories := make([]string, 0, len(raw))

	for _, e := range raw {
		obj, ok := e.(map[string]any)
		if !ok {
			if s, isStr := e.(string); isStr {
				categories = append(categories, s)
			}
			continue
		}

		label := ""
		for _, key := range objectLabelKeys {
			if v, exists := obj[key]; exists {
				if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
					label = s
					break
				}
			}
		}

		if label == "" {
			if encoded, err := json.Marshal(obj); err == nil {
				label = string(encoded)
			}
		}
		categories = append(categories, label)
	}

	return categories
}
