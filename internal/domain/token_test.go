package domain

import "testing"

func TestTokenKindRoundTrip(t *testing.T) {
	kinds := []TokenKind{KindUnderlying, KindSY, KindPT, KindYT, KindLP}

	for _, k := range kinds {
		parsed, err := ParseTokenKind(k.String())
		if err != nil {
			t.Fatalf("parse %q: %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("round trip of %q: got %v, want %v", k.String(), parsed, k)
		}
	}
}

func TestParseTokenKind(t *testing.T) {
	tests := []struct {
		in      string
		want    TokenKind
		wantErr bool
	}{
		{in: "underlying", want: KindUnderlying},
		{in: "sy", want: KindSY},
		{in: "pt", want: KindPT},
		{in: "yt", want: KindYT},
		{in: "lp", want: KindLP},
		{in: "SY", want: KindSY},
		{in: "", wantErr: true},
		{in: "bond", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTokenKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTokenKind(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTokenKind(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTokenKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTokenKindValid(t *testing.T) {
	for k := TokenKind(0); k < TokenKind(NumTokenKinds); k++ {
		if !k.Valid() {
			t.Errorf("kind %d should be valid", k)
		}
	}
	if TokenKind(NumTokenKinds).Valid() {
		t.Error("kind past the last slot should be invalid")
	}
	if TokenKind(255).Valid() {
		t.Error("kind 255 should be invalid")
	}
}
