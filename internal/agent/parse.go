package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ziadkadry99/crm-agent/internal/records"
)

const draftSchemaJSON = `{
  "type": "object",
  "properties": {
    "hcp_name":     {"type": "string"},
    "title":        {"type": "string"},
    "speciality":   {"type": "string"},
    "organisation": {"type": "string"},
    "datetime":     {"type": "string"},
    "summary":      {"type": "string"},
    "sentiment":    {"type": "string"},
    "outcome":      {"type": "string"},
    "topics":       {"type": "array", "items": {"type": "string"}},
    "materials": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "material_type": {"type": "string"},
          "quantity":      {"type": "integer", "minimum": 0},
          "notes":         {"type": "string"}
        }
      }
    },
    "samples": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "product_code": {"type": "string"},
          "quantity":     {"type": "integer", "minimum": 0},
          "lot":          {"type": "string"}
        }
      }
    }
  }
}`

var draftSchema = mustCompileSchema("draft.json", draftSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("adding schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling schema %s: %v", name, err))
	}
	return schema
}

// parseDraft reads an extraction reply. raw is the user's input and becomes
// the summary when the model left it empty.
func parseDraft(content, raw string) (ExtractedDraft, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return ExtractedDraft{}, err
	}

	normalizeDraftMap(obj)
	if err := draftSchema.Validate(obj); err != nil {
		return ExtractedDraft{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return ExtractedDraft{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	var d ExtractedDraft
	if err := json.Unmarshal(b, &d); err != nil {
		return ExtractedDraft{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return cleanDraft(d, raw), nil
}

// fallbackDraft is used when extraction output cannot be read.
func fallbackDraft(raw string) ExtractedDraft {
	return ExtractedDraft{
		HCPName:   "",
		Summary:   raw,
		Topics:    []string{},
		Materials: []DraftMaterial{},
		Samples:   []DraftSample{},
	}
}

func cleanDraft(d ExtractedDraft, raw string) ExtractedDraft {
	d.HCPName = strings.TrimSpace(d.HCPName)
	if strings.TrimSpace(d.Summary) == "" {
		d.Summary = raw
	}
	if d.Sentiment != "" {
		d.Sentiment = clampSentiment(d.Sentiment)
	}

	topics := []string{}
	for _, t := range d.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	d.Topics = topics

	materials := []DraftMaterial{}
	for _, m := range d.Materials {
		if m.MaterialType = strings.TrimSpace(m.MaterialType); m.MaterialType != "" {
			materials = append(materials, m)
		}
	}
	d.Materials = materials

	samples := []DraftSample{}
	for _, s := range d.Samples {
		if s.ProductCode = strings.TrimSpace(s.ProductCode); s.ProductCode != "" {
			samples = append(samples, s)
		}
	}
	d.Samples = samples

	return d
}

// normalizeDraftMap coerces the loose shapes small models commonly emit
// (nulls, numeric strings, bare strings instead of lists) before validation.
func normalizeDraftMap(obj map[string]any) {
	for k, v := range obj {
		if v == nil {
			delete(obj, k)
		}
	}
	// Follow-ups come from their own stage.
	delete(obj, "suggested_follow_ups")

	if s, ok := obj["topics"].(string); ok {
		obj["topics"] = splitList(s)
	}
	if list, ok := obj["topics"].([]any); ok {
		out := make([]any, 0, len(list))
		for _, item := range list {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		obj["topics"] = out
	}

	for key, nameField := range map[string]string{"materials": "material_type", "samples": "product_code"} {
		switch v := obj[key].(type) {
		case map[string]any:
			obj[key] = []any{v}
		case string:
			obj[key] = []any{map[string]any{nameField: v}}
		}
		list, ok := obj[key].([]any)
		if !ok {
			continue
		}
		for i, item := range list {
			switch it := item.(type) {
			case string:
				list[i] = map[string]any{nameField: it}
			case map[string]any:
				for k, v := range it {
					if v == nil {
						delete(it, k)
					}
				}
				if q, present := it["quantity"]; present {
					if n, ok := records.CoerceQuantity(q); ok {
						it["quantity"] = float64(n)
					} else {
						delete(it, "quantity")
					}
				}
			}
		}
	}
}

func splitList(s string) []any {
	out := []any{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// span returns the text between the first open and the last close byte.
func span(s string, open, close byte) (string, bool) {
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, close)
	if i < 0 || j <= i {
		return "", false
	}
	return s[i : j+1], true
}

// decodeObject reads a JSON object from a model reply, tolerating code
// fences and prose around it.
func decodeObject(content string) (map[string]any, error) {
	s := stripFences(content)

	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if obj, ok := v.(map[string]any); ok {
			return obj, nil
		}
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrParse, v)
	}

	if sub, ok := span(s, '{', '}'); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(sub), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object found", ErrParse)
}

type arrayParse int

const (
	arrayFound arrayParse = iota
	notAnArray
	unparsable
)

// decodeArray reads a JSON array from a model reply. It distinguishes valid
// JSON of another shape from text that is not JSON at all.
func decodeArray(content string) ([]any, arrayParse) {
	s := stripFences(content)

	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if list, ok := v.([]any); ok {
			return list, arrayFound
		}
		return nil, notAnArray
	}

	if sub, ok := span(s, '[', ']'); ok {
		var list []any
		if err := json.Unmarshal([]byte(sub), &list); err == nil {
			return list, arrayFound
		}
	}
	if sub, ok := span(s, '{', '}'); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(sub), &obj); err == nil {
			return nil, notAnArray
		}
	}
	return nil, unparsable
}
