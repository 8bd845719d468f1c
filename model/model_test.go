package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type article struct {
	ID        uuid.UUID   `db:"id"`
	Title     string      `db:"title"    gql:"title,maxlen=120"`
	Body      *string     `db:"body"     gql:"body,kind=text"`
	AuthorID  uuid.UUID   `db:"author_id" gql:"author,of=Author"`
	TagIDs    []uuid.UUID `db:"-"        gql:"tags,of=Tag,join=article_tags:article_id:tag_id"`
	CreatedAt time.Time   `db:"created_at" gql:"createdAt"`
}

func (article) Table() string { return "articles" }

type author struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name" gql:"name"`
}

func (author) Table() string { return "authors" }

func (author) Guarded() {}

type tag struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name" gql:"name"`
}

func (tag) Table() string { return "tags" }

func fieldNames(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestInputFields_Create(t *testing.T) {
	rm, err := newRegistered(article{}, Options{Name: "Article"})
	if err != nil {
		t.Fatalf("newRegistered: %v", err)
	}

	got := rm.InputFields(OpCreate)
	want := []string{"title", "body", "author", "tags"}
	if len(got) != len(want) {
		t.Fatalf("create input = %v, want %v", fieldNames(got), want)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("create input[%d] = %s, want %s", i, got[i].Name, name)
		}
	}

	for _, f := range got {
		switch f.Name {
		case "title", "author":
			if !f.Required {
				t.Errorf("%s must be required on create", f.Name)
			}
		case "body", "tags":
			if f.Required {
				t.Errorf("%s must be optional on create", f.Name)
			}
		}
	}
}

func TestInputFields_Update(t *testing.T) {
	rm, err := newRegistered(article{}, Options{Name: "Article"})
	if err != nil {
		t.Fatalf("newRegistered: %v", err)
	}

	got := rm.InputFields(OpUpdate)
	if got[0].Name != "id" || !got[0].Required || got[0].OfType != "Article" {
		t.Errorf("update input must start with a required typed id, got %+v", got[0])
	}
	for _, f := range got[1:] {
		if f.Required {
			t.Errorf("update field %s must be optional", f.Name)
		}
	}
}

func TestInputFields_Delete(t *testing.T) {
	rm, err := newRegistered(article{}, Options{Name: "Article"})
	if err != nil {
		t.Fatalf("newRegistered: %v", err)
	}

	got := rm.InputFields(OpDelete)
	if len(got) != 1 || got[0].Name != "id" || !got[0].Required {
		t.Errorf("delete input = %v, want just a required id", fieldNames(got))
	}
}

func TestInputFields_OnlyExcludeRequired(t *testing.T) {
	rm, err := newRegistered(article{}, Options{
		Name:           "Article",
		OnlyFields:     []string{"title", "body"},
		RequiredFields: []string{"body"},
	})
	if err != nil {
		t.Fatalf("newRegistered: %v", err)
	}

	got := rm.InputFields(OpCreate)
	names := fieldNames(got)
	if len(names) != 2 || names[0] != "title" || names[1] != "body" {
		t.Fatalf("only-restricted input = %v", names)
	}
	if !got[1].Required {
		t.Error("RequiredFields must force body required")
	}

	rm, err = newRegistered(article{}, Options{
		Name:          "Article",
		ExcludeFields: []string{"tags"},
	})
	if err != nil {
		t.Fatalf("newRegistered: %v", err)
	}
	for _, f := range rm.InputFields(OpCreate) {
		if f.Name == "tags" {
			t.Error("excluded field present in input")
		}
	}
}

func TestRegister_Errors(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Register(article{}, Options{Name: "Article", OnlyFields: []string{"nope"}}); err == nil {
		t.Error("expected error for unknown only field")
	}

	if _, err := reg.Register(article{}, Options{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Register(article{}, Options{}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistry_Validate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(article{}, Options{Name: "Article"})

	if err := reg.Validate(); err == nil {
		t.Error("expected error: Author and Tag are not registered")
	}

	reg.MustRegister(author{}, Options{Name: "Author", ObjectPermissions: []string{"view"}})
	reg.MustRegister(tag{}, Options{Name: "Tag"})

	if err := reg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestRegistered_Guarded(t *testing.T) {
	reg := NewRegistry()
	a := reg.MustRegister(author{}, Options{Name: "Author", ObjectPermissions: []string{"view"}})
	if !a.IsGuarded() {
		t.Error("author with object permissions must be guarded")
	}

	// Guarded interface without configured permissions does not filter.
	reg2 := NewRegistry()
	b := reg2.MustRegister(author{}, Options{Name: "Author"})
	if b.IsGuarded() {
		t.Error("author without object permissions must not be guarded")
	}

	reg3 := NewRegistry()
	c := reg3.MustRegister(tag{}, Options{Name: "Tag", ObjectPermissions: []string{"view"}})
	if c.IsGuarded() {
		t.Error("tag does not implement Guarded, must not be guarded")
	}
}

func TestRegistered_Accessors(t *testing.T) {
	reg := NewRegistry()
	rm := reg.MustRegister(article{}, Options{Name: "Article"})

	if rm.Table() != "articles" {
		t.Errorf("Table() = %s", rm.Table())
	}
	if rm.PluralName() != "Articles" {
		t.Errorf("PluralName() = %s", rm.PluralName())
	}
	if rm.ReturnFieldName() != "article" {
		t.Errorf("ReturnFieldName() = %s", rm.ReturnFieldName())
	}

	cols := rm.Columns()
	for _, c := range cols {
		if c == "" {
			t.Error("empty column in Columns()")
		}
	}
	// tags is M2M and must not contribute a column
	for _, c := range cols {
		if c == "tags" {
			t.Error("M2M field leaked into Columns()")
		}
	}

	id := uuid.New()
	instance := rm.New()
	rm.SetID(instance, id)
	if rm.ID(instance) != id {
		t.Error("SetID/ID roundtrip failed")
	}

	a := instance.(*article)
	a.Title = "hello"
	f, _ := rm.Field("title")
	if got := rm.Value(instance, f); got != "hello" {
		t.Errorf("Value() = %v", got)
	}

	if got, ok := reg.ForInstance(instance); !ok || got != rm {
		t.Error("ForInstance failed for pointer instance")
	}
}
