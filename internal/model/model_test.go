package model

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestProductStatus_OwnerMutable(t *testing.T) {
	mutable := map[ProductStatus]bool{
		StatusPending:  true,
		StatusRejected: true,
		StatusApproved: false,
		StatusActive:   false,
		StatusFinished: false,
	}
	for status, want := range mutable {
		if got := status.OwnerMutable(); got != want {
			t.Fatalf("%s: expected OwnerMutable=%v, got %v", status, want, got)
		}
	}
}

func TestProductStatus_Valid(t *testing.T) {
	if !StatusActive.Valid() {
		t.Fatalf("expected ACTIVE to be valid")
	}
	if ProductStatus("pending").Valid() {
		t.Fatalf("expected lowercase status to be invalid")
	}
	if !StatusRejected.IsDecision() || StatusPending.IsDecision() {
		t.Fatalf("unexpected IsDecision result")
	}
}

func TestProduct_OwnedBy(t *testing.T) {
	p := &Product{OwnerID: "u1"}
	if !p.OwnedBy("u1") {
		t.Fatalf("expected owner match")
	}
	if p.OwnedBy("u2") || p.OwnedBy("") {
		t.Fatalf("expected owner mismatch")
	}
}

func TestUser_PasswordAndOTP(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { PasswordCost = bcrypt.DefaultCost })

	u := &User{}
	if err := u.SetPassword("Password1!"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if u.Password == "Password1!" {
		t.Fatalf("expected password to be hashed")
	}
	if !u.CheckPassword("Password1!") {
		t.Fatalf("expected password to match")
	}
	if u.CheckPassword("password1!") {
		t.Fatalf("expected wrong password to fail")
	}

	u.SetOTP("123456", time.Now().Add(time.Minute))
	if u.OTP == nil || u.OTPExpiry == nil {
		t.Fatalf("expected otp and expiry to be set together")
	}
	u.ClearOTP()
	if u.OTP != nil || u.OTPExpiry != nil {
		t.Fatalf("expected otp and expiry to be cleared together")
	}
}
