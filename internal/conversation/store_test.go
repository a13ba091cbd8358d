package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows [][]any
	idx  int
}

func (f *fakeRows) Close()                                       {}
func (f *fakeRows) Err() error                                   { return nil }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.idx-1]
	for i, src := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = src.(string)
		case *time.Time:
			*d = src.(time.Time)
		case *bool:
			*d = src.(bool)
		}
	}
	return nil
}

type fakeRow struct {
	rows *fakeRows
	err  error
}

func (f *fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if f.rows == nil || !f.rows.Next() {
		return pgx.ErrNoRows
	}
	return f.rows.Scan(dest...)
}

type mockDB struct {
	execSQL   []string
	execArgs  [][]any
	execTags  []pgconn.CommandTag
	execErr   error
	queryRows *fakeRows
	queryErr  error
	lastSQL   string
	lastArgs  []any
}

func (m *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.lastSQL = sql
	m.lastArgs = args
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryRows, nil
}

func (m *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	m.lastArgs = args
	return &fakeRow{rows: m.queryRows, err: m.queryErr}
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	tag := pgconn.NewCommandTag("INSERT 0 1")
	if len(m.execTags) > 0 {
		tag = m.execTags[0]
		m.execTags = m.execTags[1:]
	}
	return tag, nil
}

func TestCreate(t *testing.T) {
	db := &mockDB{}
	store := New(db, nil)

	id, err := store.Create(context.Background(), "user-123")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.Len(t, db.execSQL, 1)
	assert.Contains(t, db.execSQL[0], "INSERT INTO conversations")
	assert.Equal(t, "user-123", db.execArgs[0][1])
}

func TestAppendMessage(t *testing.T) {
	db := &mockDB{}
	store := New(db, nil)
	id := uuid.New()

	err := store.AppendMessage(context.Background(), id, Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	require.Len(t, db.execSQL, 2)
	assert.Contains(t, db.execSQL[0], "INSERT INTO messages")
	assert.Equal(t, []any{id, "user", "hello"}, db.execArgs[0])
	assert.Contains(t, db.execSQL[1], "UPDATE conversations SET updated_at")
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	db := &mockDB{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 0")}}
	store := New(db, nil)

	err := store.AppendMessage(context.Background(), uuid.New(), Message{Role: RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryChronologicalOrder(t *testing.T) {
	now := time.Now()
	// Query returns newest first; History must reverse to chronological.
	db := &mockDB{queryRows: &fakeRows{rows: [][]any{
		{"assistant", "third", now},
		{"user", "second", now.Add(-time.Minute)},
		{"user", "first", now.Add(-2 * time.Minute)},
	}}}
	store := New(db, nil)

	messages, err := store.History(context.Background(), uuid.New(), 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, RoleAssistant, messages[2].Role)

	assert.Equal(t, 3, db.lastArgs[1])
}

func TestHistoryInvalidLimit(t *testing.T) {
	store := New(&mockDB{}, nil)

	_, err := store.History(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
}

func TestHistoryQueryError(t *testing.T) {
	store := New(&mockDB{queryErr: errors.New("db down")}, nil)

	_, err := store.History(context.Background(), uuid.New(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading history")
}

func TestExists(t *testing.T) {
	db := &mockDB{queryRows: &fakeRows{rows: [][]any{{true}}}}
	store := New(db, nil)

	found, err := store.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, found)
}
