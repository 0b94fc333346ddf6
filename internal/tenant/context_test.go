package tenant

import (
	"context"
	"testing"
)

func TestNewRequiresCompanyAndApp(t *testing.T) {
	if _, err := New("", "app-1", SourceHeaders); err == nil {
		t.Error("expected error for empty companyId")
	}
	if _, err := New("company-1", "", SourceHeaders); err == nil {
		t.Error("expected error for empty appId")
	}
	if _, err := New("bad id!", "app-1", SourceHeaders); err == nil {
		t.Error("expected error for invalid companyId characters")
	}
}

func TestNewAssignsRequestID(t *testing.T) {
	tc, err := New("company-1", "app-1", SourceToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.RequestID == "" {
		t.Error("expected a generated RequestID")
	}
	if tc.CompanyID != "company-1" || tc.AppID != "app-1" {
		t.Error("company/app not preserved")
	}
}

func TestWithRequestIDOverrides(t *testing.T) {
	tc, err := New("company-1", "app-1", SourceSystem, WithRequestID("req-123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want req-123", tc.RequestID)
	}
}

func TestInjectAndFromContext(t *testing.T) {
	tc, _ := New("company-1", "app-1", SourceHeaders)
	ctx := Inject(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected tenant context to be found")
	}
	if got.RequestID != tc.RequestID {
		t.Error("round-tripped tenant context does not match")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no tenant context on bare background context")
	}
}

func TestHasRoleAndPermission(t *testing.T) {
	tc, _ := New("company-1", "app-1", SourceHeaders, WithRoles("admin", "viewer"), WithPermissions("read", "write"))

	if !tc.HasRole("admin") || tc.HasRole("editor") {
		t.Error("role lookup incorrect")
	}
	if !tc.HasPermission("write") || tc.HasPermission("delete") {
		t.Error("permission lookup incorrect")
	}
}
