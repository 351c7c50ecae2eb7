// Package schema defines the configuration vocabulary of the mixer runtime:
// attribute manifests, rules, actions, instances and handlers, together with
// the structured Value type used for params and attribute values.
//
// # Encoding
//
// Configurations are read and written with the proto3 JSON field names
// (valueType, match, actions, handler, instances, template, params, adapter).
// Absent optional fields decode to their empty forms, so an encode/decode
// round trip is lossless:
//
//	cfg, err := schema.DecodeYAML(data)
//	if err != nil {
//	    return err
//	}
//	out, err := schema.EncodeJSON(cfg)
//
// A YAML stream may contain several documents; each is a fragment of the
// same Config and fragments are merged in order.
package schema
