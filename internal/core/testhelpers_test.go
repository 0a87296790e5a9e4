package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}

// testLeadSchema mirrors the registered lead schema without touching the registry.
func testLeadSchema() *Schema {
	return &Schema{
		Entity:  "leads",
		Label:   "Leads",
		IDField: "id",
		Fields: []FieldSpec{
			{Name: "id", Label: "ID", Type: FieldText},
			{Name: "name", Label: "Lead Name", Type: FieldText, Required: true, Synonyms: []string{"leadname", "fullname"}},
			{Name: "company", Label: "Company", Type: FieldText, Required: true, Synonyms: []string{"companyname", "organization"}},
			{Name: "email", Label: "Email", Type: FieldText, Synonyms: []string{"emailaddress", "email"}},
			{Name: "status", Label: "Status", Type: FieldEnum, EnumValues: []string{"New", "Contacted", "Qualified"}, Synonyms: []string{"leadstatus"}},
			{Name: "estimated_value", Label: "Estimated Value", Type: FieldNumber, Synonyms: []string{"amount", "dealvalue"}},
			{Name: "expected_close_date", Label: "Expected Close Date", Type: FieldDate, Synonyms: []string{"closedate"}},
			{Name: "owner_id", Label: "Owner", Type: FieldIDRef, Synonyms: []string{"owner", "salesrep"}},
			{Name: "last_contacted_at", Label: "Last Contacted", Type: FieldDateTime},
			{Name: "notes", Label: "Notes", Type: FieldText},
		},
		NaturalKey: []string{"name", "company"},
	}
}

// testMeetingSchema is a meeting schema with embedded action items.
func testMeetingSchema() *Schema {
	return &Schema{
		Entity:  "meetings",
		Label:   "Meetings",
		IDField: "id",
		Fields: []FieldSpec{
			{Name: "id", Label: "ID", Type: FieldText},
			{Name: "title", Label: "Title", Type: FieldText, Required: true, Synonyms: []string{"subject"}},
			{Name: "start_time", Label: "Start Time", Type: FieldDateTime, Required: true, Synonyms: []string{"start"}},
			{Name: "organizer_id", Label: "Organizer", Type: FieldIDRef, Synonyms: []string{"organizer"}},
			{Name: "action_items", Label: "Action Items", Type: FieldJSON, Synonyms: []string{"actionitems", "tasks"}},
		},
		NaturalKey: []string{"title", "start_time"},
		Child: &ChildSpec{
			Field:      "action_items",
			Entity:     "action_items",
			ForeignKey: "meeting_id",
			Fields: []FieldSpec{
				{Name: "description", Label: "Description", Type: FieldText, Required: true, Synonyms: []string{"text", "task", "title"}},
				{Name: "assignee_id", Label: "Assignee", Type: FieldIDRef, Synonyms: []string{"assignee", "owner"}},
				{Name: "due_date", Label: "Due Date", Type: FieldDate, Synonyms: []string{"due", "deadline"}},
				{Name: "status", Label: "Status", Type: FieldEnum, EnumValues: []string{"Open", "Done"}, Synonyms: []string{"state"}},
			},
		},
	}
}

// fakeDirectory resolves names from a fixed map and counts lookups.
type fakeDirectory struct {
	mu      sync.Mutex
	users   map[string]string // lowercased text -> id
	calls   int
	failing bool
}

func newFakeDirectory(users map[string]string) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]string, len(users))}
	for k, v := range users {
		d.users[strings.ToLower(k)] = v
	}
	return d
}

func (d *fakeDirectory) Resolve(_ context.Context, text string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failing {
		return "", false, errors.New("directory unavailable")
	}
	id, ok := d.users[strings.ToLower(strings.TrimSpace(text))]
	return id, ok, nil
}

func (d *fakeDirectory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
