package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValueType is the declared type tag of an attribute. The runtime never
// interprets it beyond mapping known tags to a value kind for type-checking.
type ValueType string

const (
	ValueTypeUnspecified ValueType = ""
	ValueTypeString      ValueType = "STRING"
	ValueTypeInt64       ValueType = "INT64"
	ValueTypeDouble      ValueType = "DOUBLE"
	ValueTypeBool        ValueType = "BOOL"
	ValueTypeTimestamp   ValueType = "TIMESTAMP"
	ValueTypeDuration    ValueType = "DURATION"
	ValueTypeIPAddress   ValueType = "IP_ADDRESS"
	ValueTypeEmail       ValueType = "EMAIL_ADDRESS"
	ValueTypeURI         ValueType = "URI"
	ValueTypeDNSName     ValueType = "DNS_NAME"
	ValueTypeStringMap   ValueType = "STRING_MAP"
)

// Kind maps the tag to the value kind attribute values of this type carry.
// Unknown or unspecified tags map to KindNull, meaning "any".
func (t ValueType) Kind() Kind {
	switch t {
	case ValueTypeString, ValueTypeTimestamp, ValueTypeDuration, ValueTypeIPAddress,
		ValueTypeEmail, ValueTypeURI, ValueTypeDNSName:
		return KindString
	case ValueTypeInt64, ValueTypeDouble:
		return KindNumber
	case ValueTypeBool:
		return KindBool
	case ValueTypeStringMap:
		return KindMap
	default:
		return KindNull
	}
}

// AttributeManifest declares the attributes one component promises to produce.
type AttributeManifest struct {
	Revision   string                   `json:"revision" yaml:"revision"`
	Name       string                   `json:"name" yaml:"name"`
	Attributes map[string]AttributeInfo `json:"attributes" yaml:"attributes"`
}

// AttributeInfo describes a single attribute.
type AttributeInfo struct {
	Description string    `json:"description" yaml:"description"`
	ValueType   ValueType `json:"valueType" yaml:"valueType"`
}

// attributeInfoWire accepts both the camelCase and the original snake_case
// spelling of the value type field.
type attributeInfoWire struct {
	Description    string    `json:"description" yaml:"description"`
	ValueType      ValueType `json:"valueType" yaml:"valueType"`
	ValueTypeSnake ValueType `json:"value_type" yaml:"value_type"`
}

func (w attributeInfoWire) info() AttributeInfo {
	vt := w.ValueType
	if vt == "" {
		vt = w.ValueTypeSnake
	}
	return AttributeInfo{Description: w.Description, ValueType: vt}
}

// UnmarshalJSON implements json.Unmarshaler. Unknown keys are rejected.
func (a *AttributeInfo) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w attributeInfoWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*a = w.info()
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Unknown keys are rejected.
func (a *AttributeInfo) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			switch key.Value {
			case "description", "valueType", "value_type":
			default:
				return fmt.Errorf("line %d: field %s not found in type schema.AttributeInfo", key.Line, key.Value)
			}
		}
	}

	var w attributeInfoWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*a = w.info()
	return nil
}

// Rule is a match predicate plus the actions to run when it holds.
// An empty Match always holds.
type Rule struct {
	Match   string   `json:"match" yaml:"match"`
	Actions []Action `json:"actions" yaml:"actions"`
}

// Action binds built instances to a target handler.
type Action struct {
	Handler   string   `json:"handler" yaml:"handler"`
	Instances []string `json:"instances" yaml:"instances"`
}

// Instance is a named, template-typed value built by evaluating Params
// against the attributes of a request.
type Instance struct {
	Name     string `json:"name" yaml:"name"`
	Template string `json:"template" yaml:"template"`
	Params   Value  `json:"params" yaml:"params"`
}

// Handler is a named external sink, served by the adapter it names.
type Handler struct {
	Name    string `json:"name" yaml:"name"`
	Adapter string `json:"adapter" yaml:"adapter"`
	Params  Value  `json:"params" yaml:"params"`
}

// Config is one complete configuration: the unit that is validated and
// activated as a snapshot.
type Config struct {
	Manifests []AttributeManifest `json:"manifests" yaml:"manifests"`
	Rules     []Rule              `json:"rules" yaml:"rules"`
	Instances []Instance          `json:"instances" yaml:"instances"`
	Handlers  []Handler           `json:"handlers" yaml:"handlers"`
}

// Merge appends the contents of other to c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	c.Manifests = append(c.Manifests, other.Manifests...)
	c.Rules = append(c.Rules, other.Rules...)
	c.Instances = append(c.Instances, other.Instances...)
	c.Handlers = append(c.Handlers, other.Handlers...)
}

// Normalize replaces absent collections and params with their empty forms so
// that decoded configurations compare equal regardless of which optional
// fields were spelled out.
func (c *Config) Normalize() {
	if c.Manifests == nil {
		c.Manifests = []AttributeManifest{}
	}
	if c.Rules == nil {
		c.Rules = []Rule{}
	}
	if c.Instances == nil {
		c.Instances = []Instance{}
	}
	if c.Handlers == nil {
		c.Handlers = []Handler{}
	}
	for i := range c.Manifests {
		if c.Manifests[i].Attributes == nil {
			c.Manifests[i].Attributes = map[string]AttributeInfo{}
		}
	}
	for i := range c.Rules {
		if c.Rules[i].Actions == nil {
			c.Rules[i].Actions = []Action{}
		}
		for j := range c.Rules[i].Actions {
			if c.Rules[i].Actions[j].Instances == nil {
				c.Rules[i].Actions[j].Instances = []string{}
			}
		}
	}
	for i := range c.Instances {
		if c.Instances[i].Params.IsNull() {
			c.Instances[i].Params = Map(nil)
		}
	}
	for i := range c.Handlers {
		if c.Handlers[i].Params.IsNull() {
			c.Handlers[i].Params = Map(nil)
		}
	}
}
