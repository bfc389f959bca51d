package prompts

import "strings"

// ============================================================================
// Note polishing prompts
// ============================================================================

// DefaultPolishPrompt is used when polisher.prompt is not configured.
const DefaultPolishPrompt = "Polish this transcript into a clean, readable Markdown document:"

// NoteFieldsInstruction is appended to the configured prompt so the model
// answers with the three fields the note parser expects.
const NoteFieldsInstruction = "\n\nReturn a JSON object with the following fields: " +
	"markdown (the polished markdown text), " +
	"title (a human-friendly title for the transcript), " +
	"and file_name (a short, relevant file name for the markdown, suitable for Obsidian)."

// NoteSystemPrompt is sent as the system message by chat-completion providers
// that separate system and user roles.
const NoteSystemPrompt = `You turn raw speech transcripts into notes.
Answer with a single JSON object and nothing else. Keys:
- "markdown": the polished note as Markdown
- "title": a short human-friendly title
- "file_name": a short file name for the note, ending in .md`

// BuildPolishPrompt returns the user message for one transcript:
// the configured prompt, the field instruction, a blank line, then the transcript.
func BuildPolishPrompt(prompt, transcript string) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPolishPrompt
	}
	return prompt + NoteFieldsInstruction + "\n\n" + transcript
}

// NoteSchema is the JSON schema passed to providers that support structured output.
var NoteSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"markdown":  map[string]interface{}{"type": "string"},
		"title":     map[string]interface{}{"type": "string"},
		"file_name": map[string]interface{}{"type": "string"},
	},
	"required": []string{"markdown", "title", "file_name"},
}
