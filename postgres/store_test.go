package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/model"
)

type widget struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title" gql:"title,maxlen=100"`
	CreatedAt time.Time `db:"created_at" gql:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" gql:"updatedAt"`
}

func (widget) Table() string { return "widgets" }

func widgetModel(t *testing.T) *model.Registered {
	t.Helper()
	reg := model.NewRegistry()
	return reg.MustRegister(widget{}, model.Options{Name: "Widget"})
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
		mock.Close()
	})
	return mock
}

func widgetRows(id uuid.UUID, title string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "title", "created_at", "updated_at"}).
		AddRow(id, title, now, now)
}

func TestStore_GetByID(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, title, created_at, updated_at FROM widgets WHERE id =").
		WithArgs(id.String()).
		WillReturnRows(widgetRows(id, "one"))

	got, err := store.GetByID(context.Background(), rm, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	w, ok := got.(*widget)
	if !ok {
		t.Fatalf("GetByID returned %T", got)
	}
	if w.ID != id || w.Title != "one" {
		t.Errorf("got %+v", w)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, title, created_at, updated_at FROM widgets").
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "created_at", "updated_at"}))

	if _, err := store.GetByID(context.Background(), rm, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestStore_Insert(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO widgets \\(title\\) VALUES \\(\\$1\\) RETURNING id, title, created_at, updated_at").
		WithArgs("fresh").
		WillReturnRows(widgetRows(id, "fresh"))

	got, err := store.Insert(context.Background(), rm, map[string]any{"title": "fresh"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got.(*widget).Title != "fresh" {
		t.Errorf("got %+v", got)
	}
}

func TestStore_Update(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	// updated_at is bumped alongside the changed columns.
	mock.ExpectQuery("UPDATE widgets SET title = \\$1, updated_at = now\\(\\) WHERE id = \\$2 RETURNING").
		WithArgs("renamed", id.String()).
		WillReturnRows(widgetRows(id, "renamed"))

	got, err := store.Update(context.Background(), rm, id, map[string]any{"title": "renamed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.(*widget).Title != "renamed" {
		t.Errorf("got %+v", got)
	}
}

func TestStore_Update_NoValues(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	// An empty update degenerates into a fetch.
	mock.ExpectQuery("SELECT id, title, created_at, updated_at FROM widgets").
		WithArgs(id.String()).
		WillReturnRows(widgetRows(id, "same"))

	got, err := store.Update(context.Background(), rm, id, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.(*widget).Title != "same" {
		t.Errorf("got %+v", got)
	}
}

func TestStore_Delete(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM widgets WHERE id =").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), rm, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestStore_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM widgets WHERE id =").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := store.Delete(context.Background(), rm, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestStore_Count(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM widgets").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Count(context.Background(), rm)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("Count = %d, want 7", n)
	}
}

func TestStore_GetByIDs_Empty(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	rm := widgetModel(t)

	got, err := store.GetByIDs(context.Background(), rm, nil)
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d rows", len(got))
	}
}
