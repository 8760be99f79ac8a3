package server

import (
	"testing"

	"github.com/crystal-mush/graphworld/pkg/boltstore"
)

func TestAuthIssueAndValidate(t *testing.T) {
	game, _ := newTestGame(t, nil)
	game.Conf.Wizards = []string{"Ann"}
	auth := NewAuthService(game, "test-secret", 60)

	tok, err := auth.Issue(&boltstore.Account{Name: "Ann", PlayerID: "ann"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := auth.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Account != "Ann" || claims.PlayerID != "ann" || claims.Subject != "ann" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.Wizard {
		t.Error("configured wizard not marked in token")
	}

	refreshed, err := auth.RefreshToken(tok)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if _, err := auth.ValidateToken(refreshed); err != nil {
		t.Errorf("refreshed token invalid: %v", err)
	}

	other := NewAuthService(game, "another-secret", 60)
	if _, err := other.ValidateToken(tok); err == nil {
		t.Error("token accepted under a different key")
	}
	if _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestAuthLogin(t *testing.T) {
	game, _ := newTestGame(t, nil)
	if _, err := game.CreateAccount("bob", "hunter2"); err != nil {
		t.Fatal(err)
	}
	auth := NewAuthService(game, "", 0)
	tok, acct, err := auth.Login("bob", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.PlayerID != "bob" || tok == "" {
		t.Errorf("Login = %q, %+v", tok, acct)
	}
	if _, _, err := auth.Login("bob", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestGenerateJWTSecret(t *testing.T) {
	a, b := GenerateJWTSecret(), GenerateJWTSecret()
	if len(a) != 64 || a == b {
		t.Errorf("secrets %q and %q", a, b)
	}
}
