// Package transform converts source task data into target board shapes.
//
// All functions are pure: they take task and mapping data and return column
// payloads without touching the network or the database. The orchestration
// layer decides what to do with the results.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
)

// typeTable maps a source custom field type to the target column type.
var typeTable = map[string]string{
	"text":       "text",
	"short_text": "text",
	"number":     "numbers",
	"currency":   "numbers",
	"date":       "date",
	"drop_down":  "status",
	"labels":     "tags",
	"users":      "people",
	"checkbox":   "checkbox",
	"url":        "link",
	"email":      "email",
	"phone":      "phone",
	"emoji":      "rating",
	"location":   "location",
}

// MapFieldType returns the target column type for a source field type.
// Unknown types fall back to a plain text column so no field is dropped.
func MapFieldType(sourceType string) string {
	if target, ok := typeTable[sourceType]; ok {
		return target
	}
	return "text"
}

// SanitizeColumnName strips characters the target rejects in column titles,
// keeping letters, digits, spaces, hyphens, and underscores, and truncates
// to the 255-character title limit.
func SanitizeColumnName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if len(cleaned) > 255 {
		cleaned = strings.TrimSpace(cleaned[:255])
	}
	return cleaned
}

// TransformValue converts one custom field value into the payload shape the
// target column type expects. A nil return means the value cannot be
// represented and the column should be omitted from the item.
func TransformValue(fieldType string, value any) any {
	if value == nil {
		return nil
	}

	switch fieldType {
	case "drop_down":
		label := asString(value)
		if label == "" {
			return nil
		}
		return map[string]string{"label": label}

	case "checkbox":
		checked := "false"
		if asBool(value) {
			checked = "true"
		}
		return map[string]string{"checked": checked}

	case "date":
		ms, ok := asInt64(value)
		if !ok || ms <= 0 {
			return nil
		}
		date := time.UnixMilli(ms).UTC().Format("2006-01-02")
		return map[string]string{"date": date}

	case "users":
		ids := asStringSlice(value)
		if len(ids) == 0 {
			return nil
		}
		persons := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			persons = append(persons, map[string]string{"id": id, "kind": "person"})
		}
		return map[string]any{"personsAndTeams": persons}

	case "labels":
		labels := asStringSlice(value)
		if len(labels) == 0 {
			return nil
		}
		return strings.Join(labels, ", ")

	case "number", "currency":
		f, ok := asFloat64(value)
		if !ok {
			return nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64)

	case "url":
		url := asString(value)
		if url == "" {
			return nil
		}
		return map[string]string{"url": url, "text": url}

	case "email":
		email := asString(value)
		if email == "" {
			return nil
		}
		return map[string]string{"email": email, "text": email}

	case "phone":
		phone := asString(value)
		if phone == "" {
			return nil
		}
		return map[string]string{"phone": phone}

	default:
		s := asString(value)
		if s == "" {
			return nil
		}
		return s
	}
}

// priorityLabels maps the 1..4 priority scale onto status labels.
var priorityLabels = map[int]string{
	1: "Urgent",
	2: "High",
	3: "Normal",
	4: "Low",
}

// StandardFields extracts the item name and the built-in field payloads from
// a task. The map is keyed by canonical field name ("status", "due_date",
// "assignees", "priority", "tags"); callers re-key entries onto the actual
// target column ids before sending.
func StandardFields(task services.Task) (string, map[string]any) {
	fields := make(map[string]any)

	if task.Status != "" {
		fields["status"] = map[string]string{"label": task.Status}
	}
	if task.DueDate > 0 {
		fields["due_date"] = TransformValue("date", task.DueDate)
	}
	if len(task.Assignees) > 0 {
		ids := make([]string, 0, len(task.Assignees))
		for _, u := range task.Assignees {
			ids = append(ids, u.ID)
		}
		fields["assignees"] = TransformValue("users", ids)
	}
	if label, ok := priorityLabels[task.Priority]; ok {
		fields["priority"] = map[string]string{"label": label}
	}
	if len(task.Tags) > 0 {
		fields["tags"] = strings.Join(task.Tags, ", ")
	}

	return task.Name, fields
}

// CustomFieldValues converts a task's custom field values into column
// payloads keyed by target column id, using the field mappings established
// during the mapping phase. Values with no mapping or no representable
// payload are skipped.
func CustomFieldValues(task services.Task, mappings map[string]Mapping) map[string]any {
	values := make(map[string]any)

	for _, fv := range task.CustomFields {
		mapping, ok := mappings[fv.FieldName]
		if !ok {
			continue
		}
		payload := TransformValue(fv.Type, fv.Value)
		if payload == nil {
			continue
		}
		values[mapping.TargetColumnID] = payload
	}

	return values
}

// Mapping is the slice of a field mapping the value conversion needs.
type Mapping struct {
	TargetColumnID   string
	TargetColumnType string
}

// asString coerces scalar JSON values to their string form.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// asStringSlice coerces JSON arrays (and comma-joined strings) to a string slice.
func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := asString(item); str != "" {
				out = append(out, str)
			} else if m, ok := item.(map[string]any); ok {
				// Option objects carry their display value under "name" or "label".
				if name := asString(m["name"]); name != "" {
					out = append(out, name)
				} else if label := asString(m["label"]); label != "" {
					out = append(out, label)
				} else if id := asString(m["id"]); id != "" {
					out = append(out, id)
				}
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return nil
	}
}
