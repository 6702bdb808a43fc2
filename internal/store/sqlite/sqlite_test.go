package sqlite

import (
	"path/filepath"
	"testing"

	"lexcal-scheduler/internal/store/storetest"
)

func TestStore(t *testing.T) {
	st, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	storetest.Run(t, st)
	storetest.RunUsers(t, st)
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexcal.db")
	st, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	storetest.RunUsers(t, st)
	st.Close()

	// schema creation must be repeatable on an existing file
	st, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	st.Close()
}
