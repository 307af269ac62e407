package rotation

import (
	"strconv"
	"strings"
	"testing"
)

func TestIdentityRotatorValidation(t *testing.T) {
	r := NewIdentityRotator(NewRand(1), []string{
		"10.0.0.1",
		"2001:db8::1",
		"not-an-ip",
		"999.1.1.1",
	})

	if !r.HasCustom() {
		t.Fatal("expected a custom pool")
	}

	for i := 0; i < 50; i++ {
		ip := r.Next()
		if ip != "10.0.0.1" && ip != "2001:db8::1" {
			t.Fatalf("Next returned %q, not from the validated pool", ip)
		}
	}
}

func TestIdentityRotatorSynthesized(t *testing.T) {
	r := NewIdentityRotator(NewRand(7), nil)

	if r.HasCustom() {
		t.Fatal("expected no custom pool")
	}

	for i := 0; i < 500; i++ {
		ip := r.Next()
		parts := strings.Split(ip, ".")
		if len(parts) != 4 {
			t.Fatalf("synthesized address %q is not a dotted quad", ip)
		}
		for idx, part := range parts {
			octet, err := strconv.Atoi(part)
			if err != nil {
				t.Fatalf("octet %q in %q is not numeric", part, ip)
			}
			if octet < 0 || octet > 255 {
				t.Fatalf("octet %d out of range in %q", octet, ip)
			}
			if (idx == 0 || idx == 3) && octet == 0 {
				t.Fatalf("first/last octet must not be zero: %q", ip)
			}
		}
	}
}
