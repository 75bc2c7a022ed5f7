package tools

import "bizassist/internal/model"

func currencyEnum() []string {
	out := make([]string, 0, len(model.Currencies))
	for _, c := range model.Currencies {
		out = append(out, string(c))
	}
	return out
}

func statusEnum() []string {
	out := make([]string, 0, len(model.TaskStatuses))
	for _, s := range model.TaskStatuses {
		out = append(out, string(s))
	}
	return out
}

func personaEnum() []string {
	out := make([]string, 0, len(model.Personas))
	for _, p := range model.Personas {
		out = append(out, string(p))
	}
	return out
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
		"required":             required,
	}
}

func dateProperty(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date", "description": description}
}

func findClientInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"query":         map[string]interface{}{"type": "string", "minLength": 1},
		"top_k":         map[string]interface{}{"type": "integer", "minimum": 1, "default": defaultTopK},
		"use_relevance": map[string]interface{}{"type": "boolean", "default": false, "description": "Boost clients with active projects or recent invoices."},
	}, "query")
}

func resolveProjectInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"client_name": map[string]interface{}{"type": "string", "minLength": 1},
	}, "client_name")
}

func lineItemSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"description": map[string]interface{}{"type": "string", "minLength": 1},
		"qty":         map[string]interface{}{"type": "number", "minimum": 0},
		"unit_price":  map[string]interface{}{"type": "number", "minimum": 0},
	}, "description", "qty", "unit_price")
}

func createInvoiceInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"client_id":    map[string]interface{}{"type": "string", "minLength": 1},
		"currency":     map[string]interface{}{"type": "string", "enum": currencyEnum(), "description": "Defaults to the client's currency."},
		"vat_rate":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1, "description": "Defaults to the client's VAT rate."},
		"line_items":   map[string]interface{}{"type": "array", "minItems": 1, "items": lineItemSchema()},
		"due_days":     map[string]interface{}{"type": "integer", "minimum": 0, "default": model.DefaultTermDays},
		"notes":        map[string]interface{}{"type": "string"},
		"invoice_date": dateProperty("Issue date, defaults to today."),
	}, "client_id", "line_items")
}

func suggestInvoiceInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"client_id": map[string]interface{}{"type": "string", "minLength": 1},
	}, "client_id")
}

func chaseLatePayersInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"today": dateProperty("Reference date, defaults to today."),
	})
}

func listTasksInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"project_id": map[string]interface{}{"type": "string", "minLength": 1},
		"status":     map[string]interface{}{"type": "string", "enum": statusEnum()},
	}, "project_id")
}

func createTaskInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"project_id":       map[string]interface{}{"type": "string", "minLength": 1},
		"title":            map[string]interface{}{"type": "string", "minLength": 1},
		"assignee_user_id": map[string]interface{}{"type": "string"},
		"due_date":         dateProperty("Optional due date."),
		"persona":          map[string]interface{}{"type": "string", "enum": personaEnum()},
	}, "project_id", "title")
}

func moveTaskInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"task_query_or_id": map[string]interface{}{"type": "string", "minLength": 1, "description": "Task id or a fragment of its title."},
		"new_status":       map[string]interface{}{"type": "string", "enum": statusEnum()},
		"project_id":       map[string]interface{}{"type": "string", "description": "Restrict title matching to this project."},
		"persona":          map[string]interface{}{"type": "string", "enum": personaEnum()},
	}, "task_query_or_id", "new_status")
}

func recordExpenseInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"amount":      map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
		"currency":    map[string]interface{}{"type": "string", "enum": currencyEnum()},
		"description": map[string]interface{}{"type": "string", "minLength": 1},
		"date_iso":    dateProperty("Expense date, defaults to today."),
		"category":    map[string]interface{}{"type": "string"},
		"project_id":  map[string]interface{}{"type": "string"},
		"client_id":   map[string]interface{}{"type": "string"},
		"persona":     map[string]interface{}{"type": "string", "enum": personaEnum()},
	}, "amount", "currency", "description")
}

func recordPaymentInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"invoice_id": map[string]interface{}{"type": "string", "minLength": 1},
		"amount":     map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
		"date_iso":   dateProperty("Payment date, defaults to today."),
		"persona":    map[string]interface{}{"type": "string", "enum": personaEnum()},
	}, "invoice_id", "amount")
}

func weeklySummaryInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"start_date": dateProperty("Window start; give together with end_date."),
		"end_date":   dateProperty("Window end, inclusive; give together with start_date."),
	})
}
