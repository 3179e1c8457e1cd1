// Package payload builds the NGSI notification bodies posted to /v2/notify.
//
// A notification is the envelope {"data": [entity, ...]}. Each entity carries an
// id, a type and any number of attributes shaped {"value": v, "type": "Number"}.
// Attribute order is preserved on encode and decode so the emitted document
// matches the ingestion contract key for key.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Common NGSI attribute types.
const (
	TypeNumber   = "Number"
	TypeInteger  = "Integer"
	TypeText     = "Text"
	TypeBoolean  = "Boolean"
	TypeDateTime = "DateTime"
)

// Attribute is one typed entity attribute.
type Attribute struct {
	Name  string
	Type  string
	Value interface{}
}

// Entity is an NGSI entity with ordered attributes.
type Entity struct {
	ID         string
	Type       string
	Attributes []Attribute
}

// Notification is the request body accepted by the notify endpoint.
type Notification struct {
	Data []Entity `json:"data"`
}

// DefaultRoom returns the Room:1 entity posted by the notify scenario.
func DefaultRoom() Entity {
	return Entity{
		ID:   "Room:1",
		Type: "Room",
		Attributes: []Attribute{
			{Name: "temperature", Type: TypeNumber, Value: 23.3},
			{Name: "pressure", Type: TypeInteger, Value: 720},
		},
	}
}

// Encode renders the notification as compact JSON.
func (n Notification) Encode() ([]byte, error) {
	if len(n.Data) == 0 {
		return nil, errors.New("notification requires at least one entity")
	}
	return json.Marshal(n)
}

// Validate checks the entity for fields the notify endpoint rejects.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("entity id is required")
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("entity %s: type is required", e.ID)
	}
	seen := make(map[string]struct{}, len(e.Attributes))
	for _, attr := range e.Attributes {
		name := strings.TrimSpace(attr.Name)
		if name == "" {
			return fmt.Errorf("entity %s: attribute name is required", e.ID)
		}
		if name == "id" || name == "type" {
			return fmt.Errorf("entity %s: attribute name %q is reserved", e.ID, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("entity %s: duplicate attribute %q", e.ID, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// MarshalJSON writes id, type and then the attributes in declaration order.
func (e Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, "id", e.ID); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeField(&buf, "type", e.Type); err != nil {
		return nil, err
	}
	for _, attr := range e.Attributes {
		buf.WriteByte(',')
		if err := writeField(&buf, attr.Name, attributeBody{Value: attr.Value, Type: attr.Type}); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attr.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type attributeBody struct {
	Value interface{} `json:"value"`
	Type  string      `json:"type"`
}

func writeField(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON decodes an entity keeping attribute order.
func (e *Entity) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("entity: invalid JSON")
	}
	entity, err := entityFromResult(gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*e = entity
	return nil
}

func entityFromResult(doc gjson.Result) (Entity, error) {
	if !doc.IsObject() {
		return Entity{}, fmt.Errorf("entity: expected object, got %s", doc.Type)
	}
	var (
		entity Entity
		err    error
	)
	doc.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "id":
			entity.ID = value.String()
		case "type":
			entity.Type = value.String()
		default:
			if !value.IsObject() {
				err = fmt.Errorf("attribute %s: expected object", key.String())
				return false
			}
			attrType := value.Get("type").String()
			entity.Attributes = append(entity.Attributes, Attribute{
				Name:  key.String(),
				Type:  attrType,
				Value: jsonValue(value.Get("value"), attrType),
			})
		}
		return true
	})
	return entity, err
}

func jsonValue(v gjson.Result, attrType string) interface{} {
	if !v.Exists() {
		return nil
	}
	if v.Type == gjson.Number && attrType == TypeInteger && float64(v.Int()) == v.Float() {
		return v.Int()
	}
	return v.Value()
}

// DecodeNotification parses a notification body keeping attribute order.
func DecodeNotification(data []byte) (Notification, error) {
	if !gjson.ValidBytes(data) {
		return Notification{}, errors.New("notification: invalid JSON")
	}
	entities, err := entitiesFromResult(gjson.ParseBytes(data))
	if err != nil {
		return Notification{}, err
	}
	return Notification{Data: entities}, nil
}

// entitiesFromResult accepts either an entity array or a {"data": [...]} envelope.
func entitiesFromResult(doc gjson.Result) ([]Entity, error) {
	if doc.IsObject() {
		data := doc.Get("data")
		if !data.Exists() {
			return nil, errors.New(`expected "data" array`)
		}
		doc = data
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected array of entities, got %s", doc.Type)
	}
	items := doc.Array()
	entities := make([]Entity, 0, len(items))
	for idx, item := range items {
		entity, err := entityFromResult(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
