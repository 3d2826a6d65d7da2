// internal/gateway/substitute.go
package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// credentialToken 模板中代表已保存凭据的占位名
const credentialToken = "key"

// URL 与 header 模板允许在字符串任意位置出现多个 {{name}}
var embeddedTokenPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ExpandURL 替换 URL 中每一个 {{name}}：优先取输入值；名称为 key 且凭据非空时取凭据；否则原样保留
func ExpandURL(rawURL string, inputs Inputs, credential string) string {
	return embeddedTokenPattern.ReplaceAllStringFunc(rawURL, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := inputs[name]; ok {
			return stringifyValue(v)
		}
		if name == credentialToken && credential != "" {
			return credential
		}
		return token
	})
}

// ExpandHeaders 只替换 {{key}}，凭据缺失时替换为空字符串；返回新的 map
func ExpandHeaders(headers map[string]string, credential string) map[string]string {
	out := make(map[string]string, len(headers))
	placeholder := "{{" + credentialToken + "}}"
	for name, value := range headers {
		out[name] = strings.ReplaceAll(value, placeholder, credential)
	}
	return out
}

// stringifyValue 把输入值渲染进 URL：字符串原样，其余按 JSON 标量处理
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
