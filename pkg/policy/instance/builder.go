package instance

import (
	"fmt"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/expr"
	"mercator-hq/mixer/pkg/schema"
)

// Instance is a concrete instance built for one request.
type Instance struct {
	Name     string `json:"name"`
	Template string `json:"template"`

	// Fields is a map value holding the evaluated params.
	Fields schema.Value `json:"fields"`
}

// Builder builds concrete instances from compiled definitions.
type Builder interface {
	Build(def *Definition, bag attribute.Bag) (*Instance, error)
}

// DefaultBuilder evaluates every param expression against the bag and checks
// each top-level field against the kind declared by the template.
type DefaultBuilder struct{}

// Build implements Builder. Build is pure and never blocks.
func (DefaultBuilder) Build(def *Definition, bag attribute.Bag) (*Instance, error) {
	fields := make(map[string]schema.Value, len(def.order))
	for _, name := range def.order {
		v, err := def.fields[name].eval(name, bag)
		if err != nil {
			return nil, &BuildError{Instance: def.Name, Field: err.Field, Cause: err.Err}
		}

		if def.Template != nil {
			spec, _ := def.Template.Field(name)
			if spec.Kind != schema.KindNull && v.Kind() != spec.Kind {
				return nil, &BuildError{
					Instance: def.Name,
					Field:    name,
					Cause:    fmt.Errorf("%w: want %s, got %s", ErrFieldKind, spec.Kind, v.Kind()),
				}
			}
		}
		fields[name] = v
	}

	inst := &Instance{Name: def.Name, Fields: schema.Map(fields)}
	if def.Template != nil {
		inst.Template = def.Template.Name
	} else {
		inst.Template = def.Source.Template
	}
	return inst, nil
}

func (p *param) eval(path string, bag attribute.Bag) (schema.Value, *FieldError) {
	switch {
	case p.expr != nil:
		v, err := expr.Eval(p.expr, bag)
		if err != nil {
			return schema.Value{}, &FieldError{Field: path, Err: err}
		}
		return v, nil

	case p.kind == schema.KindMap:
		out := make(map[string]schema.Value, len(p.fields))
		for _, name := range p.order {
			v, err := p.fields[name].eval(path+"."+name, bag)
			if err != nil {
				return schema.Value{}, err
			}
			out[name] = v
		}
		return schema.Map(out), nil

	case p.kind == schema.KindList:
		out := make([]schema.Value, len(p.items))
		for i, item := range p.items {
			v, err := item.eval(fmt.Sprintf("%s[%d]", path, i), bag)
			if err != nil {
				return schema.Value{}, err
			}
			out[i] = v
		}
		return schema.List(out...), nil
	}

	return p.value, nil
}
