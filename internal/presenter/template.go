package presenter

import (
	"bytes"
	"fmt"
	"text/template"
)

// templateFuncs provides helper functions for schema templates.
var templateFuncs = template.FuncMap{
	"not": func(v any) bool {
		return !toBool(v)
	},
}

// RenderTemplate executes a Go text/template with the given data.
// Returns the rendered string, or empty string on error.
func RenderTemplate(tmpl string, data map[string]any) string {
	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return ""
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// EvalCondition evaluates an affordance "when" template.
func EvalCondition(condition string, data map[string]any) bool {
	if condition == "" {
		return true
	}
	return RenderTemplate(condition, data) == "true"
}

// RenderHeadline selects and renders the headline for the data. Keys other
// than "default" name a boolean field that switches to that template.
func RenderHeadline(schema *EntitySchema, data map[string]any) string {
	for key, tmpl := range schema.Headline {
		if key == "default" || !toBool(data[key]) {
			continue
		}
		if rendered := RenderTemplate(tmpl, data); rendered != "" {
			return rendered
		}
	}
	if tmpl, ok := schema.Headline["default"]; ok {
		if rendered := RenderTemplate(tmpl, data); rendered != "" && rendered != "<no value>" {
			return rendered
		}
	}
	if label := schema.Identity.Label; label != "" {
		if v, ok := data[label]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
