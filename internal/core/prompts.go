package core

import (
	"fmt"
	"strings"

	"github.com/modochat/server/internal/store"
)

const generalMode = "general"

// modePrompts maps a chat mode to the instruction prepended to the
// conversation. Modes are opaque tags on the wire; unknown ones fall back to
// the general template.
var modePrompts = map[string]string{
	generalMode: "You are a friendly assistant. Answer the user's messages helpfully and concisely.",
	"study":     "You are a patient tutor. Explain concepts step by step and check understanding before moving on.",
	"creative":  "You are a creative writing partner. Build on the user's ideas with vivid, original suggestions.",
}

func PromptForMode(mode string) string {
	if prompt, ok := modePrompts[mode]; ok {
		return prompt
	}
	return modePrompts[generalMode]
}

// BuildPrompt renders the conversation under the mode template, ending with a
// cue for the bot's next line.
func BuildPrompt(messages []store.Message, template string) string {
	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\n\n")
	for _, m := range messages {
		role := "User"
		if m.Sender == store.SenderBot {
			role = "Bot"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Text)
	}
	b.WriteString("Bot:")
	return b.String()
}
