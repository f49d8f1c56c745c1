package session

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/aishitdharwal/text2sql/internal/tenant"
	"github.com/aishitdharwal/text2sql/internal/tenantdb"
)

func testDirectory(t *testing.T) tenant.Directory {
	t.Helper()
	dir, err := tenant.NewStaticDirectory("sales:sales123:sales_db,marketing:marketing123:marketing_db")
	if err != nil {
		t.Fatalf("NewStaticDirectory returned error: %v", err)
	}
	return dir
}

func fakeOpener(t *testing.T) ConnOpener {
	t.Helper()
	return func(ctx context.Context, database string) (*tenantdb.Conn, error) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New returned error: %v", err)
		}
		mock.ExpectClose()
		return tenantdb.NewConn(db, database), nil
	}
}

func TestAuthenticateOpensSession(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)

	sess, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if sess.Tenant != "sales" || sess.Database != "sales_db" {
		t.Fatalf("unexpected session identity: %+v", sess)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", reg.Len())
	}

	resolved, err := reg.Resolve(sess.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolved != sess {
		t.Fatal("Resolve returned a different session")
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)

	_, unknownErr := reg.Authenticate(context.Background(), "nosuch", "whatever")
	_, badSecretErr := reg.Authenticate(context.Background(), "sales", "wrong")
	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown tenant: got %v", unknownErr)
	}
	if !errors.Is(badSecretErr, ErrInvalidCredentials) {
		t.Fatalf("bad secret: got %v", badSecretErr)
	}
	if unknownErr.Error() != badSecretErr.Error() {
		t.Fatalf("failure modes must be indistinguishable: %q vs %q", unknownErr, badSecretErr)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no sessions after failed logins, got %d", reg.Len())
	}
}

func TestAuthenticatePropagatesOpenFailure(t *testing.T) {
	openErr := errors.New("connect refused")
	opener := func(ctx context.Context, database string) (*tenantdb.Conn, error) {
		return nil, openErr
	}
	reg := NewRegistry(testDirectory(t), opener, nil)

	if _, err := reg.Authenticate(context.Background(), "sales", "sales123"); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", reg.Len())
	}
}

func TestEndIsIdempotent(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)
	sess, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if !reg.End(sess.ID) {
		t.Fatal("expected first End to report true")
	}
	if reg.End(sess.ID) {
		t.Fatal("expected second End to report false")
	}
	if _, err := reg.Resolve(sess.ID); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after End, got %v", err)
	}
}

func TestConcurrentSessionsArePerTenant(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)

	first, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	second, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct session IDs for repeated logins")
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", reg.Len())
	}
}

func TestDoSerializesAndHonorsContext(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)
	sess, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	var database string
	err = sess.Do(context.Background(), func(conn *tenantdb.Conn) error {
		database = conn.Database()
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if database != "sales_db" {
		t.Fatalf("unexpected database %q", database)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = sess.Do(cancelled, func(conn *tenantdb.Conn) error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoAfterEndReportsNotAuthenticated(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)
	sess, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	// A request can resolve the session just before a concurrent logout ends
	// it; the retained pointer must refuse to run work afterwards.
	resolved, err := reg.Resolve(sess.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !reg.End(sess.ID) {
		t.Fatal("expected End to report true")
	}

	err = resolved.Do(context.Background(), func(conn *tenantdb.Conn) error {
		t.Fatal("fn must not run on an ended session")
		return nil
	})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestDoAfterShutdownReportsNotAuthenticated(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)
	sess, err := reg.Authenticate(context.Background(), "sales", "sales123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	reg.Shutdown(context.Background())
	err = sess.Do(context.Background(), func(conn *tenantdb.Conn) error {
		t.Fatal("fn must not run after shutdown")
		return nil
	})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestShutdownDrainsAllSessions(t *testing.T) {
	reg := NewRegistry(testDirectory(t), fakeOpener(t), nil)
	for i := 0; i < 3; i++ {
		if _, err := reg.Authenticate(context.Background(), "marketing", "marketing123"); err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
	}

	reg.Shutdown(context.Background())
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after shutdown, got %d", reg.Len())
	}
}
