package main

import "testing"

func testAuth(t *testing.T) (*Auth, *SQLiteStore) {
	t.Helper()
	s := openTestStore(t)
	a, err := NewAuth(s, "mammoth")
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return a, s
}

func TestAuthBootstrapsPassword(t *testing.T) {
	a, s := testAuth(t)
	hash, err := s.GetSetting(settingAdminPassHash)
	if err != nil || hash == "" {
		t.Fatalf("expected bootstrapped hash, got %q err %v", hash, err)
	}
	if hash == "mammoth" {
		t.Error("password must not be stored in the clear")
	}
	if _, err := a.Login("mammoth", "1.2.3.4"); err != nil {
		t.Errorf("default password should log in: %v", err)
	}
}

func TestAuthLoginAndValidate(t *testing.T) {
	a, _ := testAuth(t)
	token, err := a.Login("mammoth", "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := a.ValidateToken(token); err != nil {
		t.Errorf("issued token should validate: %v", err)
	}
}

func TestAuthWrongPassword(t *testing.T) {
	a, _ := testAuth(t)
	if _, err := a.Login("sabertooth", "1.2.3.4"); err == nil {
		t.Error("wrong password should be rejected")
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	a, _ := testAuth(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if err := a.ValidateToken(tok); err == nil {
			t.Errorf("token %q should be rejected", tok)
		}
	}
}

func TestAuthRejectsForeignToken(t *testing.T) {
	a1, _ := testAuth(t)
	a2, _ := testAuth(t)
	token, err := a1.Login("mammoth", "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := a2.ValidateToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func TestAuthSetPasswordRotates(t *testing.T) {
	a, _ := testAuth(t)
	if err := a.SetPassword("newstone"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := a.Login("mammoth", "1.2.3.4"); err == nil {
		t.Error("old password should stop working")
	}
	if _, err := a.Login("newstone", "1.2.3.4"); err != nil {
		t.Errorf("new password should log in: %v", err)
	}
}

func TestAuthSecretPersistsAcrossRestarts(t *testing.T) {
	s := openTestStore(t)
	a1, err := NewAuth(s, "mammoth")
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	token, err := a1.Login("mammoth", "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	a2, err := NewAuth(s, "mammoth")
	if err != nil {
		t.Fatalf("NewAuth restart: %v", err)
	}
	if err := a2.ValidateToken(token); err != nil {
		t.Errorf("token should survive a restart on the same store: %v", err)
	}
}

func TestAuthLoginRateLimit(t *testing.T) {
	a, _ := testAuth(t)
	for i := 0; i < maxLoginAttempts; i++ {
		a.Login("wrong", "9.9.9.9")
	}
	if _, err := a.Login("mammoth", "9.9.9.9"); err == nil {
		t.Error("attempt past the window limit should be rejected")
	}
	// Other addresses stay unaffected
	if _, err := a.Login("mammoth", "8.8.8.8"); err != nil {
		t.Errorf("rate limit must be per address: %v", err)
	}
}
