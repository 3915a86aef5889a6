package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPatch is returned when a patch value has the wrong shape for its
// field.
var ErrInvalidPatch = errors.New("invalid patch")

// mutableFields lists the interaction keys a patch may change. Child
// collections are replaced wholesale.
var mutableFields = map[string]bool{
	"hcp_id":           true,
	"rep_id":           true,
	"mode":             true,
	"datetime":         true,
	"summary":          true,
	"sentiment":        true,
	"topics":           true,
	"outcome":          true,
	"source_raw":       true,
	"materials_shared": true,
	"samples":          true,
	"follow_ups":       true,
}

// FilterPatch returns the subset of patch that UpdateInteraction will apply.
// "materials" is accepted as an alias for "materials_shared".
func FilterPatch(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "materials" {
			key = "materials_shared"
		}
		if mutableFields[key] {
			out[key] = v
		}
	}
	return out
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDatetime parses an ISO-8601 date or date-time. Values without a zone
// are taken as UTC.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyPatch mutates it according to an already filtered patch. It reports
// whether any child collection changed.
func applyPatch(it *Interaction, patch map[string]any) (bool, error) {
	childrenChanged := false

	for key, value := range patch {
		switch key {
		case "hcp_id", "rep_id", "summary", "outcome", "source_raw":
			s, err := optionalString(key, value)
			if err != nil {
				return false, err
			}
			switch key {
			case "hcp_id":
				it.HCPID = s
			case "rep_id":
				it.RepID = s
			case "summary":
				it.Summary = s
			case "outcome":
				it.Outcome = s
			case "source_raw":
				it.SourceRaw = s
			}

		case "mode":
			s, err := optionalString(key, value)
			if err != nil {
				return false, err
			}
			s = strings.ToLower(strings.TrimSpace(s))
			if s != ModeConversational && s != ModeStructured {
				return false, fmt.Errorf("%w: mode %q", ErrInvalidPatch, s)
			}
			it.Mode = s

		case "sentiment":
			s, err := optionalString(key, value)
			if err != nil {
				return false, err
			}
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" && !ValidSentiment(s) {
				return false, fmt.Errorf("%w: sentiment %q", ErrInvalidPatch, s)
			}
			it.Sentiment = s

		case "datetime":
			s, err := optionalString(key, value)
			if err != nil {
				return false, err
			}
			if s == "" {
				it.Datetime = nil
				continue
			}
			t, ok := ParseDatetime(s)
			if !ok {
				return false, fmt.Errorf("%w: datetime %q", ErrInvalidPatch, s)
			}
			it.Datetime = &t

		case "topics":
			topics, err := stringList(value)
			if err != nil {
				return false, err
			}
			it.Topics = topics

		case "materials_shared":
			var materials []Material
			if err := remarshal(coerceChildren(value), &materials); err != nil {
				return false, fmt.Errorf("%w: materials_shared: %v", ErrInvalidPatch, err)
			}
			materials = cleanMaterials(materials)
			if !sameMaterials(it.Materials, materials) {
				it.Materials = materials
				childrenChanged = true
			}

		case "samples":
			var samples []Sample
			if err := remarshal(coerceChildren(value), &samples); err != nil {
				return false, fmt.Errorf("%w: samples: %v", ErrInvalidPatch, err)
			}
			samples = cleanSamples(samples)
			if !sameSamples(it.Samples, samples) {
				it.Samples = samples
				childrenChanged = true
			}

		case "follow_ups":
			var followUps []FollowUp
			if err := remarshal(coerceChildren(value), &followUps); err != nil {
				return false, fmt.Errorf("%w: follow_ups: %v", ErrInvalidPatch, err)
			}
			followUps = cleanFollowUps(followUps)
			if !sameFollowUps(it.FollowUps, followUps) {
				it.FollowUps = followUps
				childrenChanged = true
			}
		}
	}

	return childrenChanged, nil
}

func optionalString(key string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidPatch, key, v)
	}
}

func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: topics must be strings, got %T", ErrInvalidPatch, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: topics must be a list, got %T", ErrInvalidPatch, v)
	}
}

// CoerceQuantity reads a loosely typed quantity: numbers are rounded and
// numeric strings parsed. Negative or unreadable values report false.
func CoerceQuantity(v any) (int, bool) {
	switch q := v.(type) {
	case int:
		return q, q >= 0
	case float64:
		if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return 0, false
		}
		return int(math.Round(q)), true
	case string:
		q = strings.TrimSpace(q)
		if n, err := strconv.Atoi(q); err == nil && n >= 0 {
			return n, true
		}
		if f, err := strconv.ParseFloat(q, 64); err == nil && f >= 0 {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

// coerceChildren normalises child items before they are decoded: quantities
// go through CoerceQuantity (unreadable ones are dropped, leaving 0) and
// string due dates through ParseDatetime. Due dates that do not parse are
// left for the decoder to reject.
func coerceChildren(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		c := make(map[string]any, len(m))
		for k, val := range m {
			c[k] = val
		}
		if q, ok := c["quantity"]; ok {
			if n, ok := CoerceQuantity(q); ok {
				c["quantity"] = n
			} else {
				delete(c, "quantity")
			}
		}
		if d, ok := c["due_date"].(string); ok {
			if strings.TrimSpace(d) == "" {
				c["due_date"] = nil
			} else if t, ok := ParseDatetime(d); ok {
				c["due_date"] = t.Format(time.RFC3339Nano)
			}
		}
		out = append(out, c)
	}
	return out
}

func remarshal(in any, out any) error {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func cleanMaterials(in []Material) []Material {
	out := []Material{}
	for _, m := range in {
		if strings.TrimSpace(m.MaterialType) == "" {
			continue
		}
		if m.Quantity < 0 {
			m.Quantity = 0
		}
		m.ID = ""
		out = append(out, m)
	}
	return out
}

func cleanSamples(in []Sample) []Sample {
	out := []Sample{}
	for _, s := range in {
		if strings.TrimSpace(s.ProductCode) == "" {
			continue
		}
		if s.Quantity < 0 {
			s.Quantity = 0
		}
		s.ID = ""
		out = append(out, s)
	}
	return out
}

func cleanFollowUps(in []FollowUp) []FollowUp {
	out := []FollowUp{}
	for _, f := range in {
		if strings.TrimSpace(f.ActionItem) == "" {
			continue
		}
		if f.Status == "" {
			f.Status = FollowUpStatusOpen
		}
		f.ID = ""
		f.InteractionID = ""
		out = append(out, f)
	}
	return out
}

func sameMaterials(current, next []Material) bool {
	c := make([]Material, len(current))
	for i, m := range current {
		m.ID = ""
		c[i] = m
	}
	return len(c) == len(next) && (len(c) == 0 || reflect.DeepEqual(c, next))
}

func sameSamples(current, next []Sample) bool {
	c := make([]Sample, len(current))
	for i, s := range current {
		s.ID = ""
		c[i] = s
	}
	return len(c) == len(next) && (len(c) == 0 || reflect.DeepEqual(c, next))
}

func sameFollowUps(current, next []FollowUp) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		a, b := current[i], next[i]
		if a.ActionItem != b.ActionItem || a.Owner != b.Owner || a.Status != b.Status {
			return false
		}
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return false
		}
		if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return false
		}
	}
	return true
}
