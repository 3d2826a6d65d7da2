// internal/gateway/extract.go
package gateway

import (
	"strconv"
	"strings"
)

type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

// parsePath 解析 choices[0].message.content 这类路径
func parsePath(path string) []pathSegment {
	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open != 0 {
				name := part
				if open > 0 {
					name = part[:open]
					part = part[open:]
				} else {
					part = ""
				}
				segments = append(segments, pathSegment{key: name})
				continue
			}

			end := strings.IndexByte(part, ']')
			if end < 0 {
				// 不闭合的方括号按普通键处理
				segments = append(segments, pathSegment{key: part})
				break
			}
			inner := strings.Trim(part[1:end], `"'`)
			if idx, err := strconv.Atoi(inner); err == nil {
				segments = append(segments, pathSegment{key: inner, index: idx, isIndex: true})
			} else {
				segments = append(segments, pathSegment{key: inner})
			}
			part = part[end+1:]
		}
	}
	return segments
}

// Extract 按路径从任意 JSON 结构中取值，任一段缺失返回 (nil, false)
func Extract(obj any, path string) (any, bool) {
	current := obj
	for _, seg := range parsePath(path) {
		if current == nil {
			return nil, false
		}

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg.key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx := seg.index
			if !seg.isIndex {
				parsed, err := strconv.Atoi(seg.key)
				if err != nil {
					return nil, false
				}
				idx = parsed
			}
			if idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// isFalsy 判断提取结果是否可视为"没有值"
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}
