package output

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter runs a jq expression over data and returns every emitted value.
func Filter(expr string, data any) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq expression: %v", err), "See https://jqlang.github.io/jq/manual/")
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ErrUsage(fmt.Sprintf("invalid --jq expression: %v", err))
	}

	input, err := toGeneric(data)
	if err != nil {
		return nil, fmt.Errorf("preparing jq input: %w", err)
	}

	var out []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, ErrUsage(fmt.Sprintf("--jq: %v", err))
		}
		out = append(out, v)
	}
	return out, nil
}

// writeFiltered prints jq results one per line. Strings print raw.
func (w *Writer) writeFiltered(data any) error {
	results, err := Filter(w.opts.JQ, data)
	if err != nil {
		return err
	}
	for _, v := range results {
		if s, ok := v.(string); ok {
			if _, err := fmt.Fprintln(w.opts.Writer, s); err != nil {
				return err
			}
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w.opts.Writer, string(b)); err != nil {
			return err
		}
	}
	return nil
}
