package orchestrator

import (
	"fmt"
	"strings"

	"bizassist/internal/model"
)

var systemPrompts = map[model.Persona]string{
	model.PersonaPA: "You are a helpful, concise executive assistant. Prefer actions over long explanations. " +
		"If critical info is missing, ask ONE targeted follow-up. Use the provided tools when appropriate. Keep responses short.",
	model.PersonaAccountant: "You are a precise, terse accountant. Output minimal wording and correct currency formatting. " +
		"Prefer bullet points or one-liners. Use tools as needed.",
	model.PersonaIntern: "You are an enthusiastic admin intern. Be warm and supportive but stay useful and accurate. " +
		"Ask at most ONE follow-up if needed. Use tools liberally.",
}

// SystemPrompt returns the instruction for p; unknown personas get the PA one.
func SystemPrompt(p model.Persona) string {
	if s, ok := systemPrompts[p]; ok {
		return s
	}
	return systemPrompts[model.DefaultPersona]
}

func currencyPrompt(c model.Currency) string {
	return fmt.Sprintf("Default currency: %s. Keep answers concise.", c)
}

func focusPrompt(tab string) string {
	return fmt.Sprintf("Focus area: %s.", tab)
}

// seedConversation builds the opening messages of a run.
func seedConversation(persona model.Persona, currency model.Currency, tab, command string) []model.ChatMessage {
	msgs := []model.ChatMessage{
		{Role: model.MessageSystem, Content: SystemPrompt(persona)},
		{Role: model.MessageSystem, Content: currencyPrompt(currency)},
	}
	if tab = strings.TrimSpace(tab); tab != "" {
		msgs = append(msgs, model.ChatMessage{Role: model.MessageSystem, Content: focusPrompt(tab)})
	}
	return append(msgs, model.ChatMessage{Role: model.MessageUser, Content: command})
}
