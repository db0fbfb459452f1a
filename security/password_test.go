package security

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	const password = "Abcdef1!"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == password {
		t.Fatal("Hash must not equal the plaintext password")
	}

	if err := CheckPassword(hash, password); err != nil {
		t.Errorf("CheckPassword should accept the original password: %v", err)
	}
	if err := CheckPassword(hash, "Wrong-pass1!"); err == nil {
		t.Error("CheckPassword should reject a different password")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("Abcdef1!")
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPassword("Abcdef1!")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("Hashing the same password twice should produce different salted hashes")
	}
}
