// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import "strings"

// DefaultInstruction asks for a faithful Markdown transcription.
const DefaultInstruction = "Extract only the text and images visible in the document. " +
	"The result must be in Markdown, preserving the original formatting exactly, " +
	"including headings, lists, tables, bold, italics and any other style present. " +
	"If any part is illegible, mark it as 'illegible text'. " +
	"Do not include any additional content, information about external tools, " +
	"or details that are not present in the document."

// DefaultLanguage is the extraction language used when none is configured.
const DefaultLanguage = "Spanish"

// ComposePrompt joins the instruction with the target-language directive.
func ComposePrompt(instruction, language string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}
	language = strings.TrimSpace(language)
	if language == "" {
		return instruction
	}
	return instruction + " The text is in " + language + "."
}
