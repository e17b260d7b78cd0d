package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/emaildoc"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var contactCols = []string{"id", "name", "email", "subscribed", "key", "created_at"}

func contactRow(id int64, email string, subscribed bool) *sqlmock.Rows {
	return sqlmock.NewRows(contactCols).
		AddRow(id, domain.DefaultContactName(email), email, subscribed, "key-"+email, time.Now())
}

// =============================================================================
// AUDIENCE
// =============================================================================

func TestAudienceFilter(t *testing.T) {
	where, args := audienceFilter("*", 1)
	assert.Equal(t, "c.subscribed", where)
	assert.Empty(t, args)

	where, args = audienceFilter("vip", 7)
	assert.Contains(t, where, "t.slug = $7")
	assert.Equal(t, []any{"vip"}, args)
}

func TestCountAudience(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contacts c WHERE c.subscribed$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contacts c WHERE c.subscribed AND EXISTS`).
		WithArgs("vip").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := store.CountAudience(context.Background(), "*")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.CountAudience(context.Background(), "vip")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchingContactsWithLimit(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	rows := sqlmock.NewRows(contactCols).
		AddRow(1, "a", "a@x.com", true, "k1", time.Now()).
		AddRow(2, "b", "b@x.com", true, "k2", time.Now())
	mock.ExpectQuery(`FROM contacts c WHERE .* ORDER BY c.id LIMIT \$2`).
		WithArgs("vip", 2).
		WillReturnRows(rows)

	var got []string
	err := store.MatchingContacts(context.Background(), "vip", 2, func(c domain.Contact) error {
		got = append(got, c.Email)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchingContactsStopsOnCallbackError(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`FROM contacts c WHERE c.subscribed ORDER BY c.id$`).
		WillReturnRows(contactRow(1, "a@x.com", true))

	stop := errors.New("stop")
	err := store.MatchingContacts(context.Background(), "*", 0, func(domain.Contact) error { return stop })
	assert.ErrorIs(t, err, stop)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestGetOrCreateContactCreates(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO contacts .* ON CONFLICT DO NOTHING`).
		WithArgs("a", "a@x.com", sqlmock.AnyArg()).
		WillReturnRows(contactRow(7, "a@x.com", false))

	c, created, err := store.GetOrCreateContact(context.Background(), " A@X.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), c.ID)
	assert.False(t, c.Subscribed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateContactRereadsOnConflict(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows(contactCols))
	mock.ExpectQuery(`FROM contacts c WHERE lower\(c.email\) = lower\(\$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(contactRow(3, "a@x.com", true))

	c, created, err := store.GetOrCreateContact(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(3), c.ID)
	assert.True(t, c.Subscribed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateTag(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO tags .* ON CONFLICT \(slug\) DO NOTHING`).
		WithArgs("Early Birds", "early-birds").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO tags`).
		WithArgs("vip", "vip").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT id, name, slug, .* FROM tags WHERE slug = \$1`).
		WithArgs("vip").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "description"}).AddRow(2, "VIP", "vip", "top spenders"))

	tag, created, err := store.GetOrCreateTag(context.Background(), " Early Birds ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(4), tag.ID)
	assert.Equal(t, "early-birds", tag.Slug)

	tag, created, err = store.GetOrCreateTag(context.Background(), "vip")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "VIP", tag.Name)
	assert.Equal(t, "top spenders", tag.Description)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagContact(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectExec(`INSERT INTO tagged .* ON CONFLICT \(contact_id, tag_id\) DO NOTHING`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tagged`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := store.TagContact(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.TagContact(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestInsertContactConflict(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO contacts .* RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ok, err := store.InsertContact(context.Background(), &domain.Contact{Email: "Taken@X.com", Key: "k"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindContactByKeyNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`FROM contacts c WHERE c.key = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindContactByKey(context.Background(), "nope")
	assert.ErrorIs(t, err, command.ErrNotFound)
}

func TestSetSubscribedOnlyWhenChanged(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectExec(`UPDATE contacts SET subscribed = \$2 WHERE id = \$1 AND subscribed <> \$2`).
		WithArgs(int64(5), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE contacts SET subscribed`).
		WithArgs(int64(5), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.SetSubscribed(context.Background(), 5, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.SetSubscribed(context.Background(), 5, false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSearchContactsEscapesPattern(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`WHERE c.email ILIKE \$1 OR c.name ILIKE \$1`).
		WithArgs(`%50\%\_off%`, 10).
		WillReturnRows(contactRow(1, "sale@x.com", true))

	found, err := store.SearchContacts(context.Background(), "50%_off", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := store.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func broadcastDoc(t *testing.T) emaildoc.Document {
	t.Helper()
	doc, err := emaildoc.Parse("---\nsubject: Hi\nsummary: test\nsendToTag: vip\n---\nBody")
	require.NoError(t, err)
	return *doc
}

func TestCreateBroadcastCommitsInOneTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	eng := command.New(NewStore(db), nil, command.Config{DefaultFrom: "news@x.com"})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO emails`).
		WithArgs("hi", "Hi", "test", "<p>Body</p>\n", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO broadcasts`).
		WithArgs(int64(10), "pending", "Hi", "hi", "news@x.com", "vip", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	mock.ExpectExec(`INSERT INTO messages .* SELECT .* FROM contacts c WHERE c.subscribed AND EXISTS`).
		WithArgs("broadcast", "hi", "pending", "news@x.com", "Hi", "<p>Body</p>\n", "vip").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	res := eng.CreateBroadcast(context.Background(), broadcastDoc(t))
	require.True(t, res.Success(), "result: %+v", res)
	assert.Equal(t, 3, res.Inserted)

	data := res.Data.(*command.BroadcastCreated)
	assert.Equal(t, int64(20), data.BroadcastID)
	assert.Equal(t, int64(10), data.EmailID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBroadcastRollsBackOnFanOutError(t *testing.T) {
	db, mock := setupTestDB(t)
	eng := command.New(NewStore(db), nil, command.Config{})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO emails`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO broadcasts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	res := eng.CreateBroadcast(context.Background(), broadcastDoc(t))
	assert.Equal(t, command.OutcomeFailed, res.Outcome)
	assert.Zero(t, res.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactOptOutUnknownKeyRollsBack(t *testing.T) {
	db, mock := setupTestDB(t)
	eng := command.New(NewStore(db), nil, command.Config{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM contacts c WHERE c.key = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(contactCols))
	mock.ExpectRollback()

	res := eng.ContactOptOut(context.Background(), "missing")
	assert.True(t, res.Is(command.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
