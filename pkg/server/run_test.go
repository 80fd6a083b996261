package server

import (
	"testing"

	"github.com/YuriiFridman/TS3/pkg/crypto"
)

func TestEnsureAdminUser(t *testing.T) {
	srv, st := newTestServer(t)
	srv.cfg.AdminUser = "root"
	srv.cfg.AdminPassword = "hunter2"

	if err := srv.ensureAdminUser(); err != nil {
		t.Fatalf("ensureAdminUser: %v", err)
	}

	user, err := st.GetUserByUsername("root")
	if err != nil || user == nil {
		t.Fatalf("GetUserByUsername: user=%v err=%v", user, err)
	}
	if !user.IsAdmin {
		t.Fatal("seed admin not flagged as admin")
	}
	match, err := crypto.VerifyPassword("hunter2", user.PasswordHash)
	if err != nil || !match {
		t.Fatalf("admin hash does not verify: match=%t err=%v", match, err)
	}

	// A second startup leaves the existing record untouched.
	if err := srv.ensureAdminUser(); err != nil {
		t.Fatalf("ensureAdminUser (second run): %v", err)
	}
	again, err := st.GetUserByUsername("root")
	if err != nil || again == nil {
		t.Fatalf("GetUserByUsername: user=%v err=%v", again, err)
	}
	if again.PasswordHash != user.PasswordHash {
		t.Fatal("existing admin record was overwritten")
	}
}
