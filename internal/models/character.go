// internal/models/character.go
package models

// Character 剧本中的角色
type Character struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"` // protagonist, antagonist, supporting ...
	Description string `json:"description,omitempty"`
}
