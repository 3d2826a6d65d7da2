// internal/services/prompts.go
package services

import (
	"fmt"
	"strings"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
)

var systemInstructions = map[string]string{
	KindSynopsis: "You are a professional story editor. Write a one-page synopsis in present tense " +
		"covering the setup, the central conflict, the midpoint, the climax and the resolution.",
	KindSceneBreakdown: "You are a professional screenwriter. Break the story into numbered scenes. " +
		"For each scene give a slugline (INT./EXT. LOCATION - TIME), the characters present and a two-sentence summary.",
	KindScreenplay: "You are a professional screenwriter. Write in standard screenplay format: " +
		"sluglines in capitals, action lines in present tense, character names in capitals above their dialogue, " +
		"parentheticals only where necessary. Do not add commentary outside the script.",
	KindContinuityBrief: "You are a script supervisor. List the continuity facts that must stay consistent " +
		"across scenes: character appearance, props, wardrobe, injuries, time of day, weather and established story facts.",
	KindShotList: "You are a director of photography. For each scene produce a numbered shot list with " +
		"shot size, camera angle, camera movement and a short description of the action.",
}

// SystemInstruction 指定类型的系统指令，可附加输出语言
func SystemInstruction(kind, language string) string {
	instruction := systemInstructions[kind]
	if language != "" && !strings.EqualFold(language, "en") && !strings.EqualFold(language, "english") {
		instruction += fmt.Sprintf(" Write the answer in %s.", language)
	}
	return instruction
}

var taskLines = map[string]string{
	KindSynopsis:        "Write the synopsis for this story.",
	KindSceneBreakdown:  "Write the scene breakdown for this story.",
	KindScreenplay:      "Write the screenplay pages for this story.",
	KindContinuityBrief: "Write the continuity brief for this story.",
	KindShotList:        "Write the shot list for these scenes.",
}

// BuildPrompt 把故事资料整理成提示词
func BuildPrompt(kind string, brief models.StoryBrief) string {
	var sb strings.Builder
	sb.WriteString(taskLines[kind])
	sb.WriteString("\n\n")
	writeBrief(&sb, brief)
	return strings.TrimSpace(sb.String())
}

func writeBrief(sb *strings.Builder, brief models.StoryBrief) {
	writeField(sb, "Title", brief.Title)
	writeField(sb, "Logline", brief.Logline)
	writeField(sb, "Genre", brief.Genre)
	writeField(sb, "Tone", brief.Tone)
	writeField(sb, "Format", brief.Format)

	if len(brief.Characters) > 0 {
		sb.WriteString("\nCharacters:\n")
		for _, c := range brief.Characters {
			line := "- " + c.Name
			if c.Role != "" {
				line += " (" + c.Role + ")"
			}
			if c.Description != "" {
				line += ": " + c.Description
			}
			sb.WriteString(line + "\n")
		}
	}

	if len(brief.Scenes) > 0 {
		sb.WriteString("\nScenes:\n")
		for i, scene := range brief.Scenes {
			fmt.Fprintf(sb, "%d. %s", i+1, scene.Heading)
			if scene.Summary != "" {
				sb.WriteString(" - " + scene.Summary)
			}
			if len(scene.Characters) > 0 {
				sb.WriteString(" [" + strings.Join(scene.Characters, ", ") + "]")
			}
			sb.WriteString("\n")
		}
	}

	if brief.PriorText != "" {
		sb.WriteString("\nExisting material:\n")
		sb.WriteString(brief.PriorText)
		sb.WriteString("\n")
	}
	if brief.Notes != "" {
		sb.WriteString("\nNotes from the writer:\n")
		sb.WriteString(brief.Notes)
		sb.WriteString("\n")
	}
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}

// BuildStoryboardPrompt 为指定场景构造图像提示词
func BuildStoryboardPrompt(req StoryboardRequest) (string, error) {
	scenes := req.Brief.Scenes
	if req.SceneIndex < 0 || req.SceneIndex >= len(scenes) {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("scene_index %d is out of range (brief has %d scenes)", req.SceneIndex, len(scenes)), nil)
	}
	scene := scenes[req.SceneIndex]

	parts := []string{"Storyboard frame."}
	if req.Shot != "" {
		parts = append(parts, req.Shot+".")
	}
	parts = append(parts, scene.Heading+".")
	if scene.Summary != "" {
		parts = append(parts, scene.Summary)
	}
	if scene.Location != nil && scene.Location.Description != "" {
		parts = append(parts, "Setting: "+scene.Location.Description+".")
	}
	if req.Brief.Tone != "" {
		parts = append(parts, "Mood: "+req.Brief.Tone+".")
	}
	style := req.Style
	if style == "" {
		style = "cinematic pencil sketch, 16:9"
	}
	parts = append(parts, "Style: "+style+".")
	return strings.Join(parts, " "), nil
}
