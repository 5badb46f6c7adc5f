package credential

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testArgon2idParams() Argon2idParams {
	return Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashersRoundTrip(t *testing.T) {
	t.Parallel()

	hashers := map[string]Hasher{
		SchemeSaltedSHA256: NewSaltedSHA256Hasher(),
		SchemeArgon2id:     NewArgon2idHasher(testArgon2idParams()),
	}
	passwords := []string{"", "password", "pässwörd-with-ünïcode", "colon:inside:password", strings.Repeat("x", 512)}

	for name, hasher := range hashers {
		for _, password := range passwords {
			record, err := hasher.Hash(password)
			if err != nil {
				t.Fatalf("%s: hash failed: %v", name, err)
			}
			if !hasher.Verify(password, record) {
				t.Fatalf("%s: expected %q to verify against its own record", name, password)
			}
			if hasher.Verify(password+"x", record) {
				t.Fatalf("%s: expected a different password to fail", name)
			}
		}
	}
}

func TestHashRegeneratesSalt(t *testing.T) {
	t.Parallel()
	hasher := NewSaltedSHA256Hasher()
	first, _ := hasher.Hash("same")
	second, _ := hasher.Hash("same")
	if first == second {
		t.Fatalf("expected distinct records for the same password")
	}
	salt, _, _ := strings.Cut(first, ":")
	decoded, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		t.Fatalf("salt is not base64: %v", err)
	}
	if len(decoded) < 16 {
		t.Fatalf("expected at least 16 salt bytes, got %d", len(decoded))
	}
}

func TestSaltedSHA256MatchesStoredRecordFormat(t *testing.T) {
	t.Parallel()
	salt := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	sum := sha256.Sum256([]byte(salt + "secret"))
	record := salt + ":" + base64.StdEncoding.EncodeToString(sum[:])

	if !NewSaltedSHA256Hasher().Verify("secret", record) {
		t.Fatalf("expected existing record to verify")
	}
}

func TestVerifyMalformedRecordsReturnFalse(t *testing.T) {
	t.Parallel()
	records := []string{
		"",
		"no-separator",
		":",
		"salt:",
		":digest",
		"a:b:c",
		"$argon2id$v=19$m=8192,t=1,p=1$only-five-parts",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
	}
	hashers := []Hasher{NewSaltedSHA256Hasher(), NewArgon2idHasher(testArgon2idParams())}
	for _, hasher := range hashers {
		for _, record := range records {
			if hasher.Verify("password", record) {
				t.Fatalf("%T: expected malformed record %q to fail", hasher, record)
			}
		}
	}
}

func TestArgon2idVerifiesLegacyRecordsAndAsksForRehash(t *testing.T) {
	t.Parallel()
	legacyRecord, err := NewSaltedSHA256Hasher().Hash("secret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	hasher := NewArgon2idHasher(testArgon2idParams())
	if !hasher.Verify("secret", legacyRecord) {
		t.Fatalf("expected legacy record to verify under argon2id hasher")
	}
	if !hasher.NeedsRehash(legacyRecord) {
		t.Fatalf("expected legacy record to need rehash")
	}

	fresh, _ := hasher.Hash("secret")
	if hasher.NeedsRehash(fresh) {
		t.Fatalf("expected fresh argon2id record to be current")
	}
	if !strings.HasPrefix(fresh, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected argon2id encoding: %s", fresh)
	}

	stronger := NewArgon2idHasher(Argon2idParams{MemoryKiB: 16 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if !stronger.NeedsRehash(fresh) {
		t.Fatalf("expected weaker record to need rehash")
	}
	if NewSaltedSHA256Hasher().NeedsRehash(legacyRecord) {
		t.Fatalf("legacy hasher should accept its own records")
	}
}

func TestArgon2idRejectsExcessiveParameters(t *testing.T) {
	t.Parallel()
	heavy := NewArgon2idHasher(Argon2idParams{MemoryKiB: 32 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	record, err := heavy.Hash("secret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	light := NewArgon2idHasher(testArgon2idParams())
	if light.Verify("secret", record) {
		t.Fatalf("expected record exceeding configured bounds to be refused")
	}
}

func TestNewHasher(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		scheme   string
		expected string
		err      error
	}{
		{scheme: "", expected: "*credential.SaltedSHA256Hasher"},
		{scheme: "salted-sha256", expected: "*credential.SaltedSHA256Hasher"},
		{scheme: " ARGON2ID ", expected: "*credential.Argon2idHasher"},
		{scheme: "md5", err: ErrUnknownScheme},
	}
	for _, testCase := range testCases {
		t.Run(testCase.scheme, func(t *testing.T) {
			hasher, err := NewHasher(testCase.scheme)
			if testCase.err != nil {
				if !errors.Is(err, testCase.err) {
					t.Fatalf("expected %v, got %v", testCase.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(hasher); got != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, got)
			}
		})
	}
}

func typeName(value any) string {
	switch value.(type) {
	case *SaltedSHA256Hasher:
		return "*credential.SaltedSHA256Hasher"
	case *Argon2idHasher:
		return "*credential.Argon2idHasher"
	default:
		return "unknown"
	}
}
