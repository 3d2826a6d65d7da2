// internal/gateway/template.go
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// TemplateNode 请求体模板的封闭变体：
// StringLiteral | Placeholder | TemplateArray | TemplateObject | TemplatePrimitive
type TemplateNode interface {
	templateNode()
}

// StringLiteral 原样输出的字符串
type StringLiteral string

// Placeholder 整串形如 {{name}} 的占位符
type Placeholder struct {
	Name string
	Raw  string
}

// TemplateArray 按顺序逐个求值
type TemplateArray []TemplateNode

// TemplateObject 键原样保留，值逐个求值
type TemplateObject map[string]TemplateNode

// TemplatePrimitive 数字、布尔、null
type TemplatePrimitive struct {
	Value any
}

func (StringLiteral) templateNode()     {}
func (Placeholder) templateNode()       {}
func (TemplateArray) templateNode()     {}
func (TemplateObject) templateNode()    {}
func (TemplatePrimitive) templateNode() {}

// 只识别整串占位符；嵌入在长字符串中的 {{x}} 不在这里替换
var wholePlaceholderPattern = regexp.MustCompile(`^\{\{([^{}]+)\}\}$`)

// ParseTemplate 把解码后的 JSON/YAML 值转换为模板节点
func ParseTemplate(v any) TemplateNode {
	switch t := v.(type) {
	case nil:
		return TemplatePrimitive{Value: nil}
	case string:
		if m := wholePlaceholderPattern.FindStringSubmatch(t); m != nil {
			return Placeholder{Name: m[1], Raw: t}
		}
		return StringLiteral(t)
	case []any:
		arr := make(TemplateArray, len(t))
		for i, elem := range t {
			arr[i] = ParseTemplate(elem)
		}
		return arr
	case map[string]any:
		obj := make(TemplateObject, len(t))
		for k, elem := range t {
			obj[k] = ParseTemplate(elem)
		}
		return obj
	case map[any]any:
		obj := make(TemplateObject, len(t))
		for k, elem := range t {
			obj[fmt.Sprint(k)] = ParseTemplate(elem)
		}
		return obj
	default:
		return TemplatePrimitive{Value: t}
	}
}

// BuildPayload 用输入展开模板。纯函数；模板是有限无环数据，递归必然终止
func BuildPayload(node TemplateNode, inputs Inputs) any {
	switch n := node.(type) {
	case nil:
		return nil
	case StringLiteral:
		return string(n)
	case Placeholder:
		if v, ok := inputs[n.Name]; ok {
			return v
		}
		return n.Raw
	case TemplateArray:
		out := make([]any, len(n))
		for i, elem := range n {
			out[i] = BuildPayload(elem, inputs)
		}
		return out
	case TemplateObject:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			out[k] = BuildPayload(elem, inputs)
		}
		return out
	case TemplatePrimitive:
		return n.Value
	default:
		return nil
	}
}

// templateValue 把节点还原成普通值，用于序列化
func templateValue(node TemplateNode) any {
	switch n := node.(type) {
	case StringLiteral:
		return string(n)
	case Placeholder:
		return n.Raw
	case TemplateArray:
		out := make([]any, len(n))
		for i, elem := range n {
			out[i] = templateValue(elem)
		}
		return out
	case TemplateObject:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			out[k] = templateValue(elem)
		}
		return out
	case TemplatePrimitive:
		return n.Value
	default:
		return nil
	}
}

// Template 包装 TemplateNode，负责 JSON / YAML 编解码
type Template struct {
	Node TemplateNode
}

// NewTemplate 从普通值构造模板
func NewTemplate(v any) *Template {
	return &Template{Node: ParseTemplate(v)}
}

// Build 展开模板；nil 模板表示没有请求体
func (t *Template) Build(inputs Inputs) any {
	if t == nil || t.Node == nil {
		return nil
	}
	return BuildPayload(t.Node, inputs)
}

// Value 返回模板的原始值
func (t *Template) Value() any {
	if t == nil {
		return nil
	}
	return templateValue(t.Node)
}

func (t Template) MarshalJSON() ([]byte, error) {
	return json.Marshal(templateValue(t.Node))
}

func (t *Template) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid paramMapping: %w", err)
	}
	t.Node = ParseTemplate(v)
	return nil
}

func (t Template) MarshalYAML() (interface{}, error) {
	return templateValue(t.Node), nil
}

func (t *Template) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return fmt.Errorf("invalid paramMapping: %w", err)
	}
	t.Node = ParseTemplate(v)
	return nil
}
