package core

import (
	"errors"
	"testing"
)

// Registry tests use their own entity names: the registry is global and other
// tests in this binary rely on the registered CRM entities.

func widgetSchema(entity string) *Schema {
	return &Schema{
		Entity:  entity,
		Label:   "Widgets",
		IDField: "id",
		Fields: []FieldSpec{
			{Name: "id", Type: FieldText},
			{Name: "sku", Type: FieldText, Required: true},
			{Name: "parts", Type: FieldJSON},
		},
		NaturalKey: []string{"sku"},
		Child: &ChildSpec{
			Field:      "parts",
			Entity:     entity + "_parts",
			ForeignKey: "widget_id",
			Fields:     []FieldSpec{{Name: "part", Type: FieldText}},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	before := EntityCount()
	Register(widgetSchema("test_widgets"))

	if EntityCount() != before+1 {
		t.Errorf("EntityCount() = %d, want %d", EntityCount(), before+1)
	}

	s, err := Lookup("test_widgets")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if s.Label != "Widgets" {
		t.Errorf("Label = %q", s.Label)
	}

	child, ok := ChildOf("test_widgets_parts")
	if !ok || child.ForeignKey != "widget_id" {
		t.Errorf("ChildOf() = %+v, %v", child, ok)
	}

	_, err = Lookup("no_such_entity")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Lookup(unknown) error = %v, want ErrUnknownEntity", err)
	}

	all := All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Entity > all[i].Entity {
			t.Errorf("All() not sorted: %s before %s", all[i-1].Entity, all[i].Entity)
		}
	}
}

func TestRegisterPanics(t *testing.T) {
	tests := []struct {
		name   string
		schema func() *Schema
	}{
		{
			name: "duplicate",
			schema: func() *Schema {
				Register(widgetSchema("test_dupes"))
				return widgetSchema("test_dupes")
			},
		},
		{
			name: "no natural key",
			schema: func() *Schema {
				s := widgetSchema("test_nokey")
				s.NaturalKey = nil
				return s
			},
		},
		{
			name: "natural key not a field",
			schema: func() *Schema {
				s := widgetSchema("test_badkey")
				s.NaturalKey = []string{"serial"}
				return s
			},
		},
		{
			name: "child column not json",
			schema: func() *Schema {
				s := widgetSchema("test_badchild")
				s.Child.Field = "sku"
				return s
			},
		},
		{
			name: "child without foreign key",
			schema: func() *Schema {
				s := widgetSchema("test_nofk")
				s.Child.ForeignKey = ""
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := tt.schema()
			defer func() {
				if recover() == nil {
					t.Error("Register() did not panic")
				}
			}()
			Register(schema)
		})
	}
}

func TestSchemaHelpers(t *testing.T) {
	s := testMeetingSchema()

	data := s.DataFields()
	for _, f := range data {
		if f.Name == "id" || f.Name == "action_items" {
			t.Errorf("DataFields() includes %s", f.Name)
		}
	}
	if len(data) != 3 {
		t.Errorf("DataFields() = %d fields, want 3", len(data))
	}

	cols := s.Columns()
	if cols[0] != "id" || cols[len(cols)-1] != "action_items" {
		t.Errorf("Columns() = %v", cols)
	}

	f, _ := s.Field("start_time")
	if f.Column() != "start_time" || f.DisplayName() != "Start Time" {
		t.Errorf("field = %+v", f)
	}
	if (FieldSpec{Name: "Start Time"}).Column() != "start_time" {
		t.Error("Column() should snake_case the name")
	}

	info := s.Info()
	if info.Child != "action_items" || len(info.NaturalKey) != 2 {
		t.Errorf("Info() = %+v", info)
	}
	if s.TableName() != "meetings" || s.Child.TableName() != "action_items" {
		t.Error("table names should default to entity names")
	}
	if FieldIDRef.String() != "id-reference" || FieldType(99).String() != "unknown" {
		t.Error("FieldType.String()")
	}
}
