package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/store/memstore"
)

const meetingsCSV = `Title,Start,Location,Type,Action Items
Kickoff,01/03/2024,"Room 1, 2nd floor",video call,"[{""description"":""Send deck"",""due"":""2024-03-08""},{""description"":""Book room"",""status"":""Done""}]"
Review,2024-03-05 14:30:00,,In Person,
`

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	c := reconcileCase{store: store}
	mustRun(t, c, "meetings", meetingsCSV)

	schema, _ := core.Lookup("meetings")
	file, err := core.NewExporter(store).Export(ctx, schema)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if file.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", file.RecordCount)
	}
	if !strings.HasPrefix(file.FileName, "meetings_export_") || !strings.HasSuffix(file.FileName, ".csv") {
		t.Errorf("FileName = %q", file.FileName)
	}

	table, err := core.Parse(file.Content)
	if err != nil {
		t.Fatalf("Parse(export) error = %v", err)
	}
	if strings.Join(table.Headers, ",") != strings.Join(schema.Columns(), ",") {
		t.Errorf("headers = %v, want %v", table.Headers, schema.Columns())
	}

	col := func(name string) int {
		for i, h := range table.Headers {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	kickoff := table.Rows[0]
	if kickoff[col("start_time")] != "2024-01-03 00:00:00" {
		t.Errorf("start_time = %q", kickoff[col("start_time")])
	}
	if kickoff[col("location")] != "Room 1, 2nd floor" {
		t.Errorf("location = %q", kickoff[col("location")])
	}
	if kickoff[col("meeting_type")] != "Video Call" {
		t.Errorf("meeting_type = %q", kickoff[col("meeting_type")])
	}
	items := kickoff[col("action_items")]
	if !strings.Contains(items, `"description":"Send deck"`) || !strings.Contains(items, `"due_date":"2024-03-08"`) {
		t.Errorf("action_items = %s", items)
	}
	if got := table.Rows[1][col("action_items")]; got != "[]" {
		t.Errorf("meeting without items = %q, want []", got)
	}

	// Re-importing the export updates every record in place.
	res := mustRun(t, c, "meetings", file.Content)
	if res.UpdateCount != 2 || res.SuccessCount != 0 || res.ErrorCount != 0 {
		t.Errorf("re-import = %+v", res)
	}
	if store.Count("meetings") != 2 {
		t.Errorf("meetings = %d, want 2", store.Count("meetings"))
	}

	again, err := core.NewExporter(store).Export(ctx, schema)
	if err != nil {
		t.Fatal(err)
	}
	if again.Content != file.Content {
		t.Errorf("export changed after re-import:\n%s\nvs\n%s", again.Content, file.Content)
	}

	// Into an empty store the same file inserts, with children.
	fresh := memstore.New()
	res = mustRun(t, reconcileCase{store: fresh}, "meetings", file.Content)
	if res.SuccessCount != 2 {
		t.Errorf("fresh import = %+v", res)
	}
	recs, _ := fresh.List(ctx, "meetings")
	ids := []string{recs[0].ID, recs[1].ID}
	children, _ := fresh.ListChildren(ctx, "action_items", ids)
	if len(children[recs[0].ID]) != 2 {
		t.Errorf("children in fresh store = %v", children)
	}
}

func TestExportLeads(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	mustRun(t, reconcileCase{store: store}, "leads",
		"name,company,estimated_value,expected_close_date,last_contacted_at,notes\n"+
			`"Doe, John",Acme,"$12,500",31-12-2024,2024-01-15T12:30:00+02:00,"said ""call me"""`+"\n")

	schema, _ := core.Lookup("leads")
	file, err := core.NewExporter(store).Export(ctx, schema)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(file.Content, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("export = %q", file.Content)
	}
	if lines[0] != strings.Join(schema.Columns(), ",") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{`"Doe, John"`, ",12500,", ",2024-12-31,", ",2024-01-15 10:30:00,", `"said ""call me"""`} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %s", lines[1], want)
		}
	}
}

func TestExportEmpty(t *testing.T) {
	schema, _ := core.Lookup("leads")
	file, err := core.NewExporter(memstore.New()).Export(context.Background(), schema)
	if err != nil {
		t.Fatal(err)
	}
	if file.RecordCount != 0 || file.Content != core.Template(schema) {
		t.Errorf("empty export = %+v", file)
	}
}

func TestExportFileName(t *testing.T) {
	got := core.ExportFileName("leads", time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC))
	if got != "leads_export_2024-01-15.csv" {
		t.Errorf("ExportFileName() = %q", got)
	}
}
