// internal/models/scene.go
package models

// SceneOutline 场景大纲
type SceneOutline struct {
	Heading    string    `json:"heading"` // INT. KITCHEN - NIGHT
	Summary    string    `json:"summary,omitempty"`
	Characters []string  `json:"characters,omitempty"`
	Location   *Location `json:"location,omitempty"`
}

// Location 表示场景中的地点
type Location struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}
