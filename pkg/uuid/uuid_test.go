package uuid

import "testing"

func TestNewIsV4(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.IsZero() {
		t.Fatal("new uuid must not be zero")
	}
	if u[6]>>4 != 4 {
		t.Fatalf("version nibble is %x, want 4", u[6]>>4)
	}
	if u[8]&0xc0 != 0x80 {
		t.Fatalf("variant bits are %x, want 10xxxxxx", u[8])
	}
}

func TestParseRoundTrip(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	parsed, err := Parse(u.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != u {
		t.Fatalf("round trip mismatch: %s vs %s", u, parsed)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{
		"",
		"not-a-uuid",
		"123e4567e89b12d3a456426614174000",
		"123e4567-e89b-12d3-a456-42661417400",
		"zzze4567-e89b-12d3-a456-426614174000",
	} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) must fail", s)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	u := MustParse("123e4567-e89b-12d3-a456-426614174000")

	data, err := u.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"123e4567-e89b-12d3-a456-426614174000"` {
		t.Fatalf("unexpected JSON form: %s", data)
	}

	var back UUID
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if back != u {
		t.Fatal("JSON round trip mismatch")
	}
}
