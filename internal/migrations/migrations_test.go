package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) < 2 || names[0] != "00001_init.sql" || names[1] != "00002_seed.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}

	for _, name := range names {
		body, err := fs.ReadFile(Migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.HasPrefix(string(body), "-- +goose Up") {
			t.Errorf("%s must start with a goose Up annotation", name)
		}
	}
}

func TestInitDeclaresUniqueEmail(t *testing.T) {
	body, err := fs.ReadFile(Migrations, "00001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "UNIQUE (email)") {
		t.Error("users.email must carry a unique constraint")
	}
}
