package jwt

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"ride-dispatch/internal/domain/user"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager("test-secret-key", time.Hour)
}

func authFrame(t *testing.T, mgr *Manager, userID string, role user.Role) []byte {
	t.Helper()
	token, _, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return fmt.Appendf(nil, `{"type":"auth","token":"Bearer %s"}`, token)
}

func TestValidateWSAuthAcceptsMatchingRole(t *testing.T) {
	mgr := newTestManager(t)
	frame := authFrame(t, mgr, "driver-1", user.RoleDriver)

	res, err := ValidateWSAuth(frame, mgr, user.RoleDriver)
	if err != nil {
		t.Fatalf("ValidateWSAuth: %v", err)
	}
	if res.Claims.Subject != "driver-1" {
		t.Fatalf("subject = %q, want driver-1", res.Claims.Subject)
	}
	if res.Claims.Role != user.RoleDriver {
		t.Fatalf("role = %q, want DRIVER", res.Claims.Role)
	}
}

func TestValidateWSAuthRejectsWrongRole(t *testing.T) {
	mgr := newTestManager(t)
	frame := authFrame(t, mgr, "cust-1", user.RoleRider)

	if _, err := ValidateWSAuth(frame, mgr, user.RoleDriver); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("err = %v, want ErrRoleForbidden", err)
	}
}

func TestValidateWSAuthRejectsMalformedFrames(t *testing.T) {
	mgr := newTestManager(t)
	token, _, err := mgr.IssueUserToken("cust-1", user.RoleRider)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	cases := []struct {
		name  string
		frame string
	}{
		{"not json", `auth please`},
		{"wrong type", fmt.Sprintf(`{"type":"hello","token":"Bearer %s"}`, token)},
		{"missing bearer", fmt.Sprintf(`{"type":"auth","token":"%s"}`, token)},
		{"garbage token", `{"type":"auth","token":"Bearer not-a-jwt"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ValidateWSAuth([]byte(tc.frame), mgr, user.RoleRider); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestValidateWSAuthRejectsForeignSignature(t *testing.T) {
	mgr := newTestManager(t)
	other := NewManager("another-secret", time.Hour)
	frame := authFrame(t, other, "cust-1", user.RoleRider)

	if _, err := ValidateWSAuth(frame, mgr, user.RoleRider); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}
