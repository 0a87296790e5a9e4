package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// Store is a core.RecordStore over registered entity tables. Columns are
// derived from each entity's schema, so a new entity needs only a migration.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.RecordStore        = (*Store)(nil)
	_ core.PrincipalDirectory = (*Store)(nil)
)

// New creates a Store on pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// selectExpr reads a column back in canonical form.
func selectExpr(f core.FieldSpec) string {
	col := core.QuoteIdentifier(f.Column())
	switch f.Type {
	case core.FieldDate:
		return fmt.Sprintf(`to_char(%s, 'YYYY-MM-DD')`, col)
	case core.FieldDateTime:
		return fmt.Sprintf(`to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`, col)
	default:
		return col + "::text"
	}
}

func selectList(fields []core.FieldSpec) string {
	exprs := make([]string, 0, len(fields)+1)
	exprs = append(exprs, "id::text")
	for _, f := range fields {
		exprs = append(exprs, selectExpr(f))
	}
	return strings.Join(exprs, ", ")
}

// scanRecord reads a row produced by selectList.
func scanRecord(row pgx.Row, fields []core.FieldSpec) (core.StoredRecord, error) {
	var id string
	values := make([]pgtype.Text, len(fields))
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

// assignments pairs the supplied fields with their schema specs in schema order.
func assignments(schema *core.Schema, fields map[string]string) ([]string, []any) {
	var cols []string
	var args []any
	for _, f := range schema.DataFields() {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, core.QuoteIdentifier(f.Column()))
		args = append(args, core.ToPgValue(f, v))
	}
	return cols, args
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

// FindByID implements core.RecordStore. Ids that are not uuids match nothing.
func (s *Store) FindByID(ctx context.Context, entity, id string) (*core.StoredRecord, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !core.IsUUID(id) {
		return nil, core.ErrNotFound
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1",
		selectList(fields), core.QuoteIdentifier(schema.TableName()))

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, core.ToPgUUID(id)), fields)
	if err != nil {
		return nil, wrapError("find "+entity, err)
	}
	return &rec, nil
}

// FindByNaturalKey implements core.RecordStore. The oldest match wins.
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
		args = append(args, core.ToPgValue(f, key[name]))
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at, id LIMIT 1",
		selectList(fields), core.QuoteIdentifier(schema.TableName()), strings.Join(conds, " AND "))

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...), fields)
	if err != nil {
		return nil, wrapError("find "+entity, err)
	}
	return &rec, nil
}

// Insert implements core.RecordStore. The database assigns the id.
func (s *Store) Insert(ctx context.Context, entity string, fields map[string]string) (string, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return "", err
	}

	cols, args := assignments(schema, fields)
	table := core.QuoteIdentifier(schema.TableName())
	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING id::text", table)
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id::text",
			table, strings.Join(cols, ", "), placeholders(1, len(cols)))
	}

	var id string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
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

	cols, args := assignments(schema, fields)
	sets := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, core.ToPgUUID(id))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		core.QuoteIdentifier(schema.TableName()), strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapError("update "+entity, err)
	}
	if tag.RowsAffected() == 0 {
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
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		core.QuoteIdentifier(spec.TableName()), core.QuoteIdentifier(spec.ForeignKey))
	if _, err := s.pool.Exec(ctx, query, core.ToPgUUID(parentID)); err != nil {
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

	batch := &pgx.Batch{}
	for _, row := range rows {
		cols := []string{core.QuoteIdentifier(spec.ForeignKey)}
		args := []any{core.ToPgUUID(parentID)}
		for _, f := range spec.Fields {
			v, ok := row[f.Name]
			if !ok {
				continue
			}
			cols = append(cols, core.QuoteIdentifier(f.Column()))
			args = append(args, core.ToPgValue(f, v))
		}
		batch.Queue(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			core.QuoteIdentifier(spec.TableName()), strings.Join(cols, ", "), placeholders(1, len(cols))), args...)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrapError("insert "+child, err)
}

// List implements core.RecordStore in creation order.
func (s *Store) List(ctx context.Context, entity string) ([]core.StoredRecord, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, err
	}

	fields := schema.DataFields()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, id",
		selectList(fields), core.QuoteIdentifier(schema.TableName()))

	rows, err := s.pool.Query(ctx, query)
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

	exprs := []string{core.QuoteIdentifier(spec.ForeignKey) + "::text"}
	for _, f := range spec.Fields {
		exprs = append(exprs, selectExpr(f))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1::uuid[]) ORDER BY seq",
		strings.Join(exprs, ", "), core.QuoteIdentifier(spec.TableName()), core.QuoteIdentifier(spec.ForeignKey))

	rows, err := s.pool.Query(ctx, query, parentIDs)
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
