package core

import (
	"strings"
	"testing"
)

func TestDecodeChildren(t *testing.T) {
	spec := testMeetingSchema().Child

	tests := []struct {
		name    string
		cell    string
		want    []map[string]string
		wantErr bool
	}{
		{
			name: "empty cell",
			cell: "  ",
		},
		{
			name: "empty array",
			cell: "[]",
			want: []map[string]string{},
		},
		{
			name: "canonical keys",
			cell: `[{"description":"Send deck","due_date":"2024-03-31"}]`,
			want: []map[string]string{{"description": "Send deck", "due_date": "2024-03-31"}},
		},
		{
			name: "labels and synonyms",
			cell: `[{"Description":"Send deck","Assignee":"Jane","deadline":"2024-03-31"}]`,
			want: []map[string]string{{"description": "Send deck", "assignee_id": "Jane", "due_date": "2024-03-31"}},
		},
		{
			name: "exact key wins over synonym",
			cell: `[{"title":"from synonym","description":"exact"}]`,
			want: []map[string]string{{"description": "exact"}},
		},
		{
			name: "non-string values",
			cell: `[{"description":42,"status":true,"due_date":null}]`,
			want: []map[string]string{{"description": "42", "status": "true", "due_date": ""}},
		},
		{
			name: "nested value kept as JSON",
			cell: `[{"description":{"text":"a"}}]`,
			want: []map[string]string{{"description": `{"text":"a"}`}},
		},
		{
			name: "unknown keys dropped and null items skipped",
			cell: `[null,{"description":"x","colour":"red"}]`,
			want: []map[string]string{{"description": "x"}},
		},
		{
			name:    "not an array",
			cell:    `{"description":"x"}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			cell:    "call Bob",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeChildren(tt.cell, spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeChildren() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if len(got[i]) != len(tt.want[i]) {
					t.Errorf("row %d = %v, want %v", i, got[i], tt.want[i])
					continue
				}
				for k, v := range tt.want[i] {
					if got[i][k] != v {
						t.Errorf("row %d %s = %q, want %q", i, k, got[i][k], v)
					}
				}
			}
		})
	}
}

func TestEncodeChildren(t *testing.T) {
	spec := testMeetingSchema().Child

	got, err := EncodeChildren([]map[string]string{
		{"description": "Send deck", "due_date": "2024-03-31", "status": "Open", "meeting_id": "ignored"},
	}, spec)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"assignee_id":"","description":"Send deck","due_date":"2024-03-31","status":"Open"}]`
	if got != want {
		t.Errorf("EncodeChildren() = %s, want %s", got, want)
	}

	empty, err := EncodeChildren(nil, spec)
	if err != nil {
		t.Fatal(err)
	}
	if empty != "[]" {
		t.Errorf("no children = %q, want []", empty)
	}
}

func TestEncodeDecodeChildren(t *testing.T) {
	spec := testMeetingSchema().Child
	rows := []map[string]string{
		{"description": `Quote "this", please`, "due_date": "2024-01-02", "status": "Done", "assignee_id": ""},
		{"description": "Second\nline", "due_date": "", "status": "Open", "assignee_id": ""},
	}

	cell, err := EncodeChildren(rows, spec)
	if err != nil {
		t.Fatal(err)
	}
	back, err := decodeChildren(cell, spec)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		for k, v := range rows[i] {
			if back[i][k] != v {
				t.Errorf("row %d %s = %q, want %q", i, k, back[i][k], v)
			}
		}
	}
	if !strings.HasPrefix(cell, "[") {
		t.Errorf("cell = %q", cell)
	}
}
