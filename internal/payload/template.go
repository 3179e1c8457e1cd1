package payload

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IndexKey is the placeholder bound to the burst index of the request.
const IndexKey = "index"

var placeholderPattern = regexp.MustCompile(`\{\{([^}|]+)(?:\|([^}]*))?\}\}`)

// Template renders notifications from entities whose id, type and string
// attribute values may contain {{key}} or {{key|default}} placeholders.
// Keys resolve against {{index}} and the fields of a feeder record.
// Templated values are converted according to the attribute type.
type Template struct {
	entities []Entity
}

// NewTemplate validates entities and returns a Template over them.
func NewTemplate(entities []Entity) (*Template, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("template requires at least one entity")
	}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	copied := make([]Entity, len(entities))
	for i, e := range entities {
		copied[i] = Entity{ID: e.ID, Type: e.Type, Attributes: append([]Attribute(nil), e.Attributes...)}
	}
	return &Template{entities: copied}, nil
}

// Render produces the notification for burst index with the optional record.
func (t *Template) Render(index int, record map[string]string) (Notification, error) {
	lookup := recordLookup(index, record)

	out := Notification{Data: make([]Entity, 0, len(t.entities))}
	for _, tmpl := range t.entities {
		entity := Entity{
			ID:         expand(tmpl.ID, lookup),
			Type:       expand(tmpl.Type, lookup),
			Attributes: make([]Attribute, 0, len(tmpl.Attributes)),
		}
		for _, attr := range tmpl.Attributes {
			value := attr.Value
			if s, ok := value.(string); ok && placeholderPattern.MatchString(s) {
				converted, err := convert(expand(s, lookup), attr.Type)
				if err != nil {
					return Notification{}, fmt.Errorf("entity %s attribute %s: %w", entity.ID, attr.Name, err)
				}
				value = converted
			}
			entity.Attributes = append(entity.Attributes, Attribute{Name: attr.Name, Type: attr.Type, Value: value})
		}
		out.Data = append(out.Data, entity)
	}
	return out, nil
}

// Encode renders and encodes the notification for index.
func (t *Template) Encode(index int, record map[string]string) ([]byte, error) {
	n, err := t.Render(index, record)
	if err != nil {
		return nil, err
	}
	return n.Encode()
}

// Expand substitutes {{index}} and record placeholders in s.
func Expand(s string, index int, record map[string]string) string {
	return expand(s, recordLookup(index, record))
}

func recordLookup(index int, record map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if key == IndexKey {
			return strconv.Itoa(index), true
		}
		val, ok := record[key]
		return val, ok
	}
}

// expand substitutes placeholders. Unknown keys without a default are kept verbatim.
func expand(template string, lookup func(string) (string, bool)) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		key := strings.TrimSpace(parts[1])
		if val, ok := lookup(key); ok {
			return val
		}
		if strings.Contains(match, "|") {
			return parts[2]
		}
		return match
	})
}

func convert(value, attrType string) (interface{}, error) {
	raw := strings.TrimSpace(value)
	switch attrType {
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a Number", raw)
		}
		return f, nil
	case TypeInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an Integer", raw)
		}
		return i, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a Boolean", raw)
		}
		return b, nil
	default:
		return value, nil
	}
}
