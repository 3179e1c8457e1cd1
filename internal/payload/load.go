package payload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// LoadEntities reads entity definitions from a YAML or JSON file. The document is
// either a list of entities or a notification envelope with a "data" list.
func LoadEntities(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities file: %w", err)
	}

	var entities []Entity
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("entities file %s: invalid JSON", path)
		}
		entities, err = entitiesFromResult(gjson.ParseBytes(data))
	case ".yaml", ".yml":
		entities, err = decodeYAMLEntities(data)
	default:
		return nil, fmt.Errorf("entities file %s: unsupported extension (use .json, .yaml or .yml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("entities file %s: %w", path, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities file %s: no entities defined", path)
	}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entities file %s: %w", path, err)
		}
	}
	return entities, nil
}

// decodeYAMLEntities walks the node tree directly because mapping order is lost
// once a YAML document is decoded into Go maps.
func decodeYAMLEntities(data []byte) ([]Entity, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		dataNode := mappingValue(root, "data")
		if dataNode == nil {
			return nil, errors.New(`expected "data" list`)
		}
		root = dataNode
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected list of entities at line %d", root.Line)
	}

	entities := make([]Entity, 0, len(root.Content))
	for idx, item := range root.Content {
		entity, err := decodeYAMLEntity(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func decodeYAMLEntity(node *yaml.Node) (Entity, error) {
	if node.Kind != yaml.MappingNode {
		return Entity{}, fmt.Errorf("expected mapping at line %d", node.Line)
	}
	var entity Entity
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "id":
			entity.ID = value.Value
		case "type":
			entity.Type = value.Value
		default:
			if value.Kind != yaml.MappingNode {
				return Entity{}, fmt.Errorf("attribute %s: expected mapping at line %d", key.Value, value.Line)
			}
			attr := Attribute{Name: key.Value}
			if typeNode := mappingValue(value, "type"); typeNode != nil {
				attr.Type = typeNode.Value
			}
			if valueNode := mappingValue(value, "value"); valueNode != nil {
				if err := valueNode.Decode(&attr.Value); err != nil {
					return Entity{}, fmt.Errorf("attribute %s: %w", key.Value, err)
				}
			}
			entity.Attributes = append(entity.Attributes, attr)
		}
	}
	return entity, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
