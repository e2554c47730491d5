package operator

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/playmatatu/poolphys/internal/models"
)

func TestHashAndVerifyToken(t *testing.T) {
	hashed, err := HashToken("s3cret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if hashed == "s3cret" {
		t.Fatal("token stored in plain text")
	}
	if !VerifyToken(hashed, "s3cret") {
		t.Error("correct token rejected")
	}
	if VerifyToken(hashed, "wrong") {
		t.Error("wrong token accepted")
	}
}

func TestHashTokenRejectsEmpty(t *testing.T) {
	if _, err := HashToken(""); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestIPAllowed(t *testing.T) {
	open := &models.Operator{}
	if !IPAllowed(open, "10.0.0.1") {
		t.Error("empty allow list should allow any ip")
	}

	locked := &models.Operator{AllowedIPs: pq.StringArray{"10.0.0.1", "10.0.0.2"}}
	if !IPAllowed(locked, "10.0.0.2") {
		t.Error("listed ip rejected")
	}
	if IPAllowed(locked, "192.168.1.1") {
		t.Error("unlisted ip accepted")
	}
}

func TestLogActionWithoutDatabase(t *testing.T) {
	if err := LogAction(nil, "op", "127.0.0.1", "/x", "test", nil, true); err != nil {
		t.Errorf("LogAction without db = %v, want nil", err)
	}
}
