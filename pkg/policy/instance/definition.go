package instance

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/mixer/pkg/expr"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/templates"
)

// param is one compiled node of a params tree. Non-blank string leaves
// carry expr, other leaves carry a constant value. Map nodes visit fields
// in order, which is sorted.
type param struct {
	expr   expr.Node
	value  schema.Value
	fields map[string]*param
	order  []string
	items  []*param
	kind   schema.Kind
}

// Definition is a compiled instance. It is immutable.
type Definition struct {
	Name     string
	Template *templates.Template
	Source   schema.Instance

	fields map[string]*param
	order  []string
}

// Fields returns the top-level param names, sorted.
func (d *Definition) Fields() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Expressions returns the parsed expression of every string leaf keyed by
// its dotted field path.
func (d *Definition) Expressions() map[string]expr.Node {
	out := make(map[string]expr.Node)
	for _, name := range d.order {
		d.fields[name].collect(name, out)
	}
	return out
}

func (p *param) collect(path string, out map[string]expr.Node) {
	switch {
	case p.expr != nil:
		out[path] = p.expr
	case p.kind == schema.KindMap:
		for _, name := range p.order {
			p.fields[name].collect(path+"."+name, out)
		}
	case p.kind == schema.KindList:
		for i, item := range p.items {
			item.collect(fmt.Sprintf("%s[%d]", path, i), out)
		}
	}
}

// Compile parses the params of inst against tmpl. Every problem is reported
// in a single *CompileError: expressions that do not parse, params the
// template does not declare, and required fields that are missing. A nil
// tmpl accepts any params.
func Compile(inst schema.Instance, tmpl *templates.Template) (*Definition, error) {
	def := &Definition{
		Name:     inst.Name,
		Template: tmpl,
		Source:   inst,
		fields:   make(map[string]*param),
	}

	params := inst.Params
	if params.IsNull() {
		params = schema.Map(nil)
	}
	if params.Kind() != schema.KindMap {
		return nil, &CompileError{Instance: inst.Name, Fields: []*FieldError{{Err: ErrNotMap}}}
	}

	var problems []*FieldError
	for _, name := range params.Keys() {
		v, _ := params.Field(name)
		if tmpl != nil {
			if _, declared := tmpl.Field(name); !declared {
				problems = append(problems, &FieldError{Field: name, Err: ErrUnknownField})
				continue
			}
		}
		p, errs := compileParam(name, v)
		problems = append(problems, errs...)
		def.fields[name] = p
		def.order = append(def.order, name)
	}

	if tmpl != nil {
		for _, name := range tmpl.Required() {
			if _, set := def.fields[name]; !set {
				problems = append(problems, &FieldError{Field: name, Err: ErrMissingField})
			}
		}
	}

	if len(problems) > 0 {
		sort.SliceStable(problems, func(i, j int) bool { return problems[i].Field < problems[j].Field })
		return nil, &CompileError{Instance: inst.Name, Fields: problems}
	}
	return def, nil
}

func compileParam(path string, v schema.Value) (*param, []*FieldError) {
	switch v.Kind() {
	case schema.KindString:
		s, _ := v.Str()
		if strings.TrimSpace(s) == "" {
			return &param{value: v, kind: schema.KindString}, nil
		}
		node, err := expr.Parse(s)
		if err != nil {
			return nil, []*FieldError{{Field: path, Err: err}}
		}
		return &param{expr: node, kind: schema.KindString}, nil

	case schema.KindMap:
		p := &param{kind: schema.KindMap, fields: make(map[string]*param)}
		var errs []*FieldError
		for _, name := range v.Keys() {
			f, _ := v.Field(name)
			child, childErrs := compileParam(path+"."+name, f)
			errs = append(errs, childErrs...)
			p.fields[name] = child
			p.order = append(p.order, name)
		}
		return p, errs

	case schema.KindList:
		p := &param{kind: schema.KindList}
		var errs []*FieldError
		for i, item := range v.Items() {
			child, childErrs := compileParam(fmt.Sprintf("%s[%d]", path, i), item)
			errs = append(errs, childErrs...)
			p.items = append(p.items, child)
		}
		return p, errs

	default:
		return &param{value: v, kind: v.Kind()}, nil
	}
}
