package tools

import (
	"fmt"

	"bizassist/internal/model"
)

// tone holds the summary templates for one persona.
type tone struct {
	taskCreated     func(title, project string) string
	taskMoved       func(title string, from, to model.TaskStatus) string
	expenseRecorded func(amount, description string) string
	paymentRecorded func(amount, number string, paid bool) string
}

var tones = map[model.Persona]tone{
	model.PersonaPA: {
		taskCreated: func(title, project string) string {
			return fmt.Sprintf("Created task '%s' in %s.", title, project)
		},
		taskMoved: func(title string, from, to model.TaskStatus) string {
			return fmt.Sprintf("Moved '%s' from %s to %s.", title, from, to)
		},
		expenseRecorded: func(amount, description string) string {
			return fmt.Sprintf("Recorded %s for %q.", amount, description)
		},
		paymentRecorded: func(amount, number string, paid bool) string {
			if paid {
				return fmt.Sprintf("Recorded %s against %s. It is now paid.", amount, number)
			}
			return fmt.Sprintf("Recorded %s against %s.", amount, number)
		},
	},
	model.PersonaAccountant: {
		taskCreated: func(title, project string) string {
			return fmt.Sprintf("Task created: '%s' in %s.", title, project)
		},
		taskMoved: func(title string, from, to model.TaskStatus) string {
			return fmt.Sprintf("Moved: '%s' %s -> %s.", title, from, to)
		},
		expenseRecorded: func(amount, description string) string {
			return fmt.Sprintf("Expense recorded: %s, %s.", amount, description)
		},
		paymentRecorded: func(amount, number string, paid bool) string {
			status := "open"
			if paid {
				status = "paid"
			}
			return fmt.Sprintf("Payment: %s -> %s (%s).", amount, number, status)
		},
	},
	model.PersonaIntern: {
		taskCreated: func(title, project string) string {
			return fmt.Sprintf("Added a shiny new task, '%s', to %s. I'll keep it polished!", title, project)
		},
		taskMoved: func(title string, from, to model.TaskStatus) string {
			return fmt.Sprintf("Zoom! Moved '%s' from %s -> %s. Anything else I can tidy?", title, from, to)
		},
		expenseRecorded: func(amount, description string) string {
			return fmt.Sprintf("Logged that expense: %s for %q. I love tidy books!", amount, description)
		},
		paymentRecorded: func(amount, number string, paid bool) string {
			if paid {
				return fmt.Sprintf("Yay, %s landed on %s and it's fully paid!", amount, number)
			}
			return fmt.Sprintf("Logged %s against %s. Getting there!", amount, number)
		},
	},
}

// toneFor returns the templates for p; unknown personas get the PA tone.
func toneFor(p model.Persona) tone {
	if t, ok := tones[p]; ok {
		return t
	}
	return tones[model.DefaultPersona]
}
