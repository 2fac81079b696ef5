package plugin

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chxlky/sentry-trello/integrations"
)

type Widget string

const (
	WidgetText     Widget = "text"
	WidgetPassword Widget = "password"
	WidgetTextarea Widget = "textarea"
	WidgetSelect   Widget = "select"
)

const errRequired = "This field is required."

// Field describes one input of a plugin form. The host decides how to
// render it.
type Field struct {
	Name         string                     `json:"name"`
	Label        string                     `json:"label"`
	Widget       Widget                     `json:"widget"`
	Required     bool                       `json:"required"`
	MaxLength    int                        `json:"max_length,omitempty"`
	Disabled     bool                       `json:"disabled,omitempty"`
	HelpText     string                     `json:"help_text,omitempty"`
	Initial      string                     `json:"initial,omitempty"`
	Choices      []integrations.Option      `json:"choices,omitempty"`
	ChoiceGroups []integrations.OptionGroup `json:"choice_groups,omitempty"`
}

func (f *Field) hasChoices() bool {
	return len(f.Choices) > 0 || len(f.ChoiceGroups) > 0
}

func (f *Field) allowsChoice(value string) bool {
	for _, c := range f.Choices {
		if c.Value == value {
			return true
		}
	}
	for _, g := range f.ChoiceGroups {
		for _, c := range g.Options {
			if c.Value == value {
				return true
			}
		}
	}
	return false
}

// Form is an ordered set of fields. Prefix namespaces the field names when
// several plugin forms share one page, e.g. "trello-key".
type Form struct {
	Prefix string  `json:"prefix,omitempty"`
	Fields []Field `json:"fields"`
}

func (f *Form) Field(name string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Clean validates raw input against the form and returns the trimmed values
// of every enabled field. Disabled fields are skipped entirely.
func (f *Form) Clean(values map[string]string) (map[string]string, error) {
	cleaned := make(map[string]string, len(f.Fields))
	errs := FormErrors{}

	for _, field := range f.Fields {
		if field.Disabled {
			continue
		}
		value := strings.TrimSpace(f.lookup(values, field.Name))

		if value == "" {
			if field.Required {
				errs[field.Name] = errRequired
				continue
			}
			cleaned[field.Name] = ""
			continue
		}
		if field.MaxLength > 0 && utf8.RuneCountInString(value) > field.MaxLength {
			errs[field.Name] = fmt.Sprintf("Ensure this value has at most %d characters (it has %d).",
				field.MaxLength, utf8.RuneCountInString(value))
			continue
		}
		if field.Widget == WidgetSelect && field.hasChoices() && !field.allowsChoice(value) {
			errs[field.Name] = fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", value)
			continue
		}
		cleaned[field.Name] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cleaned, nil
}

// lookup accepts both prefixed and bare field names.
func (f *Form) lookup(values map[string]string, name string) string {
	if f.Prefix != "" {
		if v, ok := values[f.Prefix+"-"+name]; ok {
			return v
		}
	}
	return values[name]
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
