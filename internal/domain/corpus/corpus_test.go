package corpus

import "testing"

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.md", false},
		{"Guide-2.md", false},
		{"", true},
		{"../secret.md", true},
		{"sub/a.md", true},
		{`sub\a.md`, true},
		{".hidden.md", true},
		{"..", true},
		{".", true},
		{"a..md", false},
		{"notes..v2.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	if _, ok := NormalizeQuery(""); ok {
		t.Fatal("empty query should be invalid")
	}
	if _, ok := NormalizeQuery("  \t "); ok {
		t.Fatal("whitespace query should be invalid")
	}
	q, ok := NormalizeQuery("  foo ")
	if !ok || q != "foo" {
		t.Fatalf("expected foo, got %q (ok=%v)", q, ok)
	}
}
