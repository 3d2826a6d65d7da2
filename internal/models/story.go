// internal/models/story.go
package models

// StoryBrief 生成请求携带的故事资料，全部字段可选，至少需要标题、梗概或前文之一
type StoryBrief struct {
	Title      string         `json:"title"`
	Logline    string         `json:"logline,omitempty"`
	Genre      string         `json:"genre,omitempty"`
	Tone       string         `json:"tone,omitempty"`
	Format     string         `json:"format,omitempty"`   // feature, short, episode ...
	Language   string         `json:"language,omitempty"` // 输出语言，默认英文
	Characters []Character    `json:"characters,omitempty"`
	Scenes     []SceneOutline `json:"scenes,omitempty"`
	PriorText  string         `json:"prior_text,omitempty"` // 已有的前文或上一步生成的结果
	Notes      string         `json:"notes,omitempty"`      // 编剧的额外要求
}

// IsEmpty 没有任何可供生成的信息
func (b StoryBrief) IsEmpty() bool {
	return b.Title == "" && b.Logline == "" && b.PriorText == "" && len(b.Scenes) == 0
}
