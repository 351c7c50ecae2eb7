package expr

import (
	"errors"
	"testing"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/schema"
)

func testRegistry(t *testing.T) *attribute.Registry {
	t.Helper()
	r := attribute.NewRegistry()
	err := r.Register(schema.AttributeManifest{
		Name: "proxy",
		Attributes: map[string]schema.AttributeInfo{
			"destination.service": {ValueType: schema.ValueTypeString},
			"response.code":       {ValueType: schema.ValueTypeInt64},
			"context.secure":      {ValueType: schema.ValueTypeBool},
			"request.headers":     {ValueType: schema.ValueTypeStringMap},
			"request.custom":      {ValueType: schema.ValueType("OPAQUE")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCheckPredicate(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{name: "empty", src: ""},
		{name: "string compare", src: `destination.service == "ratings*"`},
		{name: "number compare", src: `response.code != 500`},
		{name: "bool attribute", src: `context.secure && !context.secure`},
		{name: "opaque type compares with anything", src: `request.custom == 1 || request.custom == "x"`},
		{name: "unknown attribute", src: `source.nothing == "x"`, wantErr: ErrUnknownAttribute},
		{name: "string vs number", src: `destination.service == 1`, wantErr: ErrTypeMismatch},
		{name: "pattern vs number", src: `response.code == "5*"`, wantErr: ErrTypeMismatch},
		{name: "non boolean predicate", src: `destination.service`, wantErr: ErrTypeMismatch},
		{name: "non boolean in and", src: `context.secure && response.code`, wantErr: ErrTypeMismatch},
		{name: "default mismatch", src: `destination.service | 1 == "x"`, wantErr: ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPredicate(MustParse(tt.src), r)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckPredicate(%q) error = %v", tt.src, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckPredicate(%q) error = %v, want %v", tt.src, err, tt.wantErr)
			}
		})
	}
}

func TestCheck_Kinds(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		src  string
		want schema.Kind
	}{
		{`destination.service`, schema.KindString},
		{`response.code`, schema.KindNumber},
		{`request.headers`, schema.KindMap},
		{`request.custom`, schema.KindNull},
		{`request.custom | "x"`, schema.KindString},
		{`"1"`, schema.KindString},
		{`response.code == 200`, schema.KindBool},
	}

	for _, tt := range tests {
		got, err := Check(MustParse(tt.src), r)
		if err != nil {
			t.Errorf("Check(%q) error = %v", tt.src, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}
