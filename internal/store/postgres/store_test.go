package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	_ "github.com/JonMunkholm/crmsync/internal/core/entities"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantIs     error
		wantPrefix string
	}{
		{"no rows", pgx.ErrNoRows, core.ErrNotFound, ""},
		{"insufficient privilege", &pgconn.PgError{Code: "42501", Message: "permission denied for table leads"}, core.ErrPermissionDenied, "insert leads"},
		{"read only", &pgconn.PgError{Code: "25006", Message: "cannot execute INSERT in a read-only transaction"}, core.ErrPermissionDenied, "insert leads"},
		{"other", errors.New("connection reset by peer"), nil, "insert leads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapError("insert leads", tt.err)
			if tt.wantIs != nil && !errors.Is(got, tt.wantIs) {
				t.Errorf("wrapError() = %v, want wrapping %v", got, tt.wantIs)
			}
			if tt.wantIs == nil && (errors.Is(got, core.ErrPermissionDenied) || errors.Is(got, core.ErrNotFound)) {
				t.Errorf("wrapError() = %v, classified unexpectedly", got)
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(got.Error(), tt.wantPrefix) {
				t.Errorf("wrapError() = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}

	if wrapError("x", nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
}

func TestSelectExpr(t *testing.T) {
	tests := []struct {
		field core.FieldSpec
		want  string
	}{
		{core.FieldSpec{Name: "name", Type: core.FieldText}, `"name"::text`},
		{core.FieldSpec{Name: "expected_close_date", Type: core.FieldDate}, `to_char("expected_close_date", 'YYYY-MM-DD')`},
		{core.FieldSpec{Name: "start_time", Type: core.FieldDateTime}, `to_char("start_time" AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`},
		{core.FieldSpec{Name: "owner_id", Type: core.FieldIDRef}, `"owner_id"::text`},
	}
	for _, tt := range tests {
		t.Run(tt.field.Name, func(t *testing.T) {
			if got := selectExpr(tt.field); got != tt.want {
				t.Errorf("selectExpr() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAssignmentsSkipsUnsuppliedFields(t *testing.T) {
	schema, err := core.Lookup("leads")
	if err != nil {
		t.Fatal(err)
	}
	cols, args := assignments(schema, map[string]string{"company": "Acme", "name": "Jane", "bogus": "x"})
	if strings.Join(cols, ",") != `"name","company"` {
		t.Errorf("cols = %v, want schema order name, company", cols)
	}
	if len(args) != 2 {
		t.Errorf("len(args) = %d, want 2", len(args))
	}
}

// setupStore connects to CRMSYNC_TEST_DATABASE_URL, migrates and truncates.
func setupStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("CRMSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CRMSYNC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Open(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE action_items, meetings, leads, users, audit_log"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return New(pool)
}

func TestStoreRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "meetings", map[string]string{
		"title":      "Kickoff",
		"start_time": "2024-03-01T09:30:00Z",
		"status":     "Scheduled",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.FindByNaturalKey(ctx, "meetings", map[string]string{"title": "Kickoff", "start_time": "2024-03-01T09:30:00Z"})
	if err != nil {
		t.Fatalf("find by natural key: %v", err)
	}
	if got.ID != id || got.Fields["start_time"] != "2024-03-01T09:30:00Z" {
		t.Errorf("got %+v", got)
	}

	if err := s.Update(ctx, "meetings", id, map[string]string{"status": "Completed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.FindByID(ctx, "meetings", id)
	if got.Fields["status"] != "Completed" || got.Fields["title"] != "Kickoff" {
		t.Errorf("after update: %+v", got.Fields)
	}

	items := []map[string]string{{"description": "Send notes", "due_date": "2024-03-08"}}
	if err := s.InsertChildren(ctx, "action_items", id, items); err != nil {
		t.Fatalf("insert children: %v", err)
	}
	children, err := s.ListChildren(ctx, "action_items", []string{id})
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children[id]) != 1 || children[id][0]["due_date"] != "2024-03-08" {
		t.Errorf("children = %v", children)
	}

	if _, err := s.FindByID(ctx, "meetings", "not-a-uuid"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("malformed id: err = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	want, err := s.AddUser(ctx, "jane@example.com", "jane", "Jane Smith")
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"JANE@example.com", "Jane Smith", "jane"} {
		id, ok, err := s.Resolve(ctx, text)
		if err != nil || !ok || id != want {
			t.Errorf("Resolve(%q) = %s, %v, %v", text, id, ok, err)
		}
	}
	if _, ok, _ := s.Resolve(ctx, "nobody"); ok {
		t.Error("Resolve(nobody) matched")
	}
}

func TestResolvePriority(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	add := func(email, display, full string) string {
		t.Helper()
		id, err := s.AddUser(ctx, email, display, full)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	add("jane", "", "")
	add("", "", "jane")
	janeDisplay := add("", "Jane", "")
	add("sam", "", "")
	samFull := add("", "", "SAM")
	patEmail := add("pat@example.com", "", "")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"display name beats earlier full name and email", "jane", janeDisplay},
		{"full name beats earlier email", "sam", samFull},
		{"email when no name matches", "PAT@example.com", patEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.Resolve(ctx, tt.text)
			if err != nil || !ok {
				t.Fatalf("Resolve(%q) = %v, %v", tt.text, ok, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestAuditLog(t *testing.T) {
	s := setupStore(t)
	ctx := core.ContextWithIPAddress(context.Background(), "203.0.113.7:51234")

	s.LogAudit(ctx, core.AuditEntry{Action: core.ActionImport, Entity: "leads", RowsAffected: 3})
	s.LogAudit(ctx, core.AuditEntry{Action: core.ActionPermissionDenied, Entity: "leads", Line: 4, RowKey: "x"})
	s.LogAudit(ctx, core.AuditEntry{Action: core.ActionExport, Entity: "meetings"})

	got, err := s.RecentAudit(ctx, core.AuditQuery{Entity: "leads", Limit: 10})
	if err != nil {
		t.Fatalf("recent audit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Action != core.ActionPermissionDenied || got[0].Line != 4 {
		t.Errorf("newest entry = %+v", got[0])
	}
	if got[1].IPAddress != "203.0.113.7" {
		t.Errorf("ip = %q, want port stripped", got[1].IPAddress)
	}
}

func TestPurgeAuditBefore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.LogAudit(ctx, core.AuditEntry{Action: core.ActionImport, Entity: "leads", CreatedAt: now.AddDate(0, 0, -400)})
	s.LogAudit(ctx, core.AuditEntry{Action: core.ActionExport, Entity: "leads", CreatedAt: now})

	if _, err := s.PurgeAuditBefore(ctx, now.AddDate(0, 0, -365)); err != nil {
		t.Fatalf("purge: %v", err)
	}
	left, err := s.RecentAudit(ctx, core.AuditQuery{Entity: "leads", Limit: 10})
	if err != nil {
		t.Fatalf("recent audit: %v", err)
	}
	if len(left) != 1 || left[0].Action != core.ActionExport {
		t.Errorf("remaining = %+v", left)
	}
}
