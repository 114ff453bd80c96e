package gpio

import (
	"errors"
	"testing"
)

func TestMockDriver_ClaimTwiceFails(t *testing.T) {
	d := &MockDriver{}
	if err := d.Claim(3, "i2c.scl"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := d.Claim(3, "camera.data0")
	if !errors.Is(err, ErrPinInUse) {
		t.Fatalf("second claim error = %v, want ErrPinInUse", err)
	}
	if owner, _ := d.Owner(3); owner != "i2c.scl" {
		t.Errorf("owner = %q, want %q", owner, "i2c.scl")
	}
}

func TestMockDriver_ReleaseAllowsReclaim(t *testing.T) {
	d := &MockDriver{}
	if err := d.Claim(17, "camera.pclk"); err != nil {
		t.Fatal(err)
	}
	if err := d.Release(17); err != nil {
		t.Fatal(err)
	}
	if err := d.Claim(17, "camera.pclk"); err != nil {
		t.Errorf("reclaim after release: %v", err)
	}
}

func TestMockDriver_CloseDropsClaims(t *testing.T) {
	d := &MockDriver{}
	if err := ClaimAll(d, "camera", 5, 6, 12); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Owner(5); ok {
		t.Error("pin 5 should be free after Close")
	}
}

func TestMockDriver_InvalidPin(t *testing.T) {
	d := &MockDriver{}
	for _, pin := range []int{-1, 28, 100} {
		if err := d.Claim(pin, "x"); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("Claim(%d) error = %v, want ErrInvalidPin", pin, err)
		}
		if _, err := d.ReadPin(pin); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("ReadPin(%d) error = %v, want ErrInvalidPin", pin, err)
		}
	}
}

func TestClaimAll_StopsAtFirstConflict(t *testing.T) {
	d := &MockDriver{}
	if err := d.Claim(12, "other"); err != nil {
		t.Fatal(err)
	}
	err := ClaimAll(d, "camera", 5, 12, 13)
	if !errors.Is(err, ErrPinInUse) {
		t.Fatalf("ClaimAll error = %v, want ErrPinInUse", err)
	}
	if owner, _ := d.Owner(5); owner != "camera" {
		t.Errorf("pin 5 owner = %q, want camera (no rollback)", owner)
	}
	if _, ok := d.Owner(13); ok {
		t.Error("pin 13 should not be claimed after the conflict")
	}
}

func TestMockDriver_ReadBackAndClock(t *testing.T) {
	d := &MockDriver{}
	if err := d.WritePin(23, High); err != nil {
		t.Fatal(err)
	}
	lvl, err := d.ReadPin(23)
	if err != nil {
		t.Fatal(err)
	}
	if lvl != High {
		t.Errorf("ReadPin(23) = %v, want HIGH", lvl)
	}
	if err := d.SetClock(4, 16000000); err != nil {
		t.Fatal(err)
	}
	if got := d.Clock(4); got != 16000000 {
		t.Errorf("Clock(4) = %d, want 16000000", got)
	}
}
