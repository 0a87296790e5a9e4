package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// Store is a core.RecordStore over the migrated entity tables.
type Store struct {
	db *sql.DB
}

var (
	_ core.RecordStore        = (*Store)(nil)
	_ core.PrincipalDirectory = (*Store)(nil)
)

// New creates a Store on db. Run Migrate first.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func selectList(fields []core.FieldSpec) string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, "id")
	for _, f := range fields {
		cols = append(cols, core.QuoteIdentifier(f.Column()))
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, fields []core.FieldSpec) (core.StoredRecord, error) {
	var id string
	values := make([]sql.NullString, len(fields))
	dest := make([]any, 0, len(fields)+1)
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		return core.StoredRecord{}, err
	}

	rec := core.StoredRecord{ID: id, Fields: make(map[string]string, len(fields))}
	for i, f := range fields {
		if values[i].Valid {
			rec.Fields[f.Name] = values[i].String
		}
	}
	return rec, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func assignments(fields []core.FieldSpec, values map[string]string) ([]string, []any) {
	var cols []string
	var args []any
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, core.QuoteIdentifier(f.Column()))
		args = append(args, nullable(v))
	}
	return cols, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// FindByID implements core.RecordStore.
func (s *Store) FindByID(ctx context.Context, entity, id string) (*core.StoredRecord, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, err
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?",
		selectList(fields), core.QuoteIdentifier(schema.TableName()))

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id), fields)
	if err != nil {
		return nil, wrapError("find "+entity, err)
	}
	return &rec, nil
}

// FindByNaturalKey implements core.RecordStore with exact, case-sensitive
// comparison. The oldest match wins.
func (s *Store) FindByNaturalKey(ctx context.Context, entity string, key map[string]string) (*core.StoredRecord, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	for _, name := range schema.NaturalKey {
		f, _ := schema.Field(name)
		col := core.QuoteIdentifier(f.Column())
		if key[name] == "" {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, col+" = ?")
		args = append(args, key[name])
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY rowid LIMIT 1",
		selectList(fields), core.QuoteIdentifier(schema.TableName()), strings.Join(conds, " AND "))

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...), fields)
	if err != nil {
		return nil, wrapError("find "+entity, err)
	}
	return &rec, nil
}

// Insert implements core.RecordStore with a new uuid.
func (s *Store) Insert(ctx context.Context, entity string, fields map[string]string) (string, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	cols, args := assignments(schema.DataFields(), fields)
	cols = append([]string{"id"}, cols...)
	args = append([]any{id}, args...)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		core.QuoteIdentifier(schema.TableName()), strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", wrapError("insert "+entity, err)
	}
	return id, nil
}

// Update overwrites the supplied fields only.
func (s *Store) Update(ctx context.Context, entity, id string, fields map[string]string) error {
	schema, err := core.Lookup(entity)
	if err != nil {
		return err
	}

	cols, args := assignments(schema.DataFields(), fields)
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		core.QuoteIdentifier(schema.TableName()), strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError("update "+entity, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s %s: %w", entity, id, core.ErrNotFound)
	}
	return nil
}

// DeleteChildren implements core.RecordStore.
func (s *Store) DeleteChildren(ctx context.Context, child, parentID string) error {
	spec, ok := core.ChildOf(child)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownEntity, child)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		core.QuoteIdentifier(spec.TableName()), core.QuoteIdentifier(spec.ForeignKey))
	if _, err := s.db.ExecContext(ctx, query, parentID); err != nil {
		return wrapError("delete "+child, err)
	}
	return nil
}

// InsertChildren writes rows in one transaction, in order.
func (s *Store) InsertChildren(ctx context.Context, child, parentID string, rows []map[string]string) error {
	spec, ok := core.ChildOf(child)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownEntity, child)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("begin "+child, err)
	}
	for _, row := range rows {
		cols, args := assignments(spec.Fields, row)
		cols = append([]string{core.QuoteIdentifier(spec.ForeignKey)}, cols...)
		args = append([]any{parentID}, args...)

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			core.QuoteIdentifier(spec.TableName()), strings.Join(cols, ", "), placeholders(len(cols)))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return wrapError("insert "+child, err)
		}
	}
	return wrapError("commit "+child, tx.Commit())
}

// List implements core.RecordStore in insertion order.
func (s *Store) List(ctx context.Context, entity string) ([]core.StoredRecord, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, err
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		selectList(fields), core.QuoteIdentifier(schema.TableName()))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapError("list "+entity, err)
	}
	defer rows.Close()

	records := []core.StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows, fields)
		if err != nil {
			return nil, wrapError("scan "+entity, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list "+entity, err)
	}
	return records, nil
}

// ListChildren reads the children of every parent with one query.
func (s *Store) ListChildren(ctx context.Context, child string, parentIDs []string) (map[string][]map[string]string, error) {
	spec, ok := core.ChildOf(child)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownEntity, child)
	}
	out := make(map[string][]map[string]string)
	if len(parentIDs) == 0 {
		return out, nil
	}

	cols := []string{core.QuoteIdentifier(spec.ForeignKey)}
	for _, f := range spec.Fields {
		cols = append(cols, core.QuoteIdentifier(f.Column()))
	}
	args := make([]any, len(parentIDs))
	for i, id := range parentIDs {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY seq",
		strings.Join(cols, ", "), core.QuoteIdentifier(spec.TableName()),
		core.QuoteIdentifier(spec.ForeignKey), placeholders(len(parentIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list "+child, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows, spec.Fields)
		if err != nil {
			return nil, wrapError("scan "+child, err)
		}
		out[rec.ID] = append(out[rec.ID], rec.Fields)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list "+child, err)
	}
	return out, nil
}

// Resolve implements core.PrincipalDirectory. Display name, then full name,
// then email, compared case-insensitively.
func (s *Store) Resolve(ctx context.Context, text string) (string, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM users
		WHERE email = ?1 COLLATE NOCASE
		   OR display_name = ?1 COLLATE NOCASE
		   OR full_name = ?1 COLLATE NOCASE
		ORDER BY CASE
			WHEN display_name = ?1 COLLATE NOCASE THEN 0
			WHEN full_name = ?1 COLLATE NOCASE THEN 1
			ELSE 2
		END, rowid
		LIMIT 1`, text).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapError("resolve principal", err)
	}
	return id, true, nil
}

// AddUser inserts a principal and returns its id.
func (s *Store) AddUser(ctx context.Context, email, displayName, fullName string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, full_name) VALUES (?, ?, ?, ?)`,
		id, nullable(email), nullable(displayName), nullable(fullName))
	if err != nil {
		return "", wrapError("insert user", err)
	}
	return id, nil
}
