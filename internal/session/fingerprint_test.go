package session

import "testing"

func TestDeriveDeterministic(t *testing.T) {
	f := NewFingerprinter("salt")

	a := f.Derive("203.0.113.7", "VLC/3.0.18")
	b := f.Derive("203.0.113.7", "VLC/3.0.18")
	if a != b {
		t.Errorf("same inputs gave different fingerprints: %q vs %q", a, b)
	}
	if len(a) != FingerprintLength {
		t.Errorf("fingerprint length = %d, want %d", len(a), FingerprintLength)
	}
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	f := NewFingerprinter("salt")

	base := f.Derive("203.0.113.7", "VLC/3.0.18")
	if f.Derive("203.0.113.8", "VLC/3.0.18") == base {
		t.Error("different address should give a different fingerprint")
	}
	if f.Derive("203.0.113.7", "curl/8.0") == base {
		t.Error("different agent should give a different fingerprint")
	}
}

func TestDeriveSaltChangesOutput(t *testing.T) {
	a := NewFingerprinter("salt-a").Derive("203.0.113.7", "VLC/3.0.18")
	b := NewFingerprinter("salt-b").Derive("203.0.113.7", "VLC/3.0.18")
	if a == b {
		t.Error("different salts should give different fingerprints")
	}
}

func TestDeriveFieldBoundary(t *testing.T) {
	// The separator must prevent addr/agent concatenation ambiguity
	f := NewFingerprinter("")
	a := f.Derive("ab", "c")
	b := f.Derive("a", "bc")
	if a == b {
		t.Error("field boundary collision: (ab,c) == (a,bc)")
	}
}
