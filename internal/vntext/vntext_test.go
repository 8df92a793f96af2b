package vntext

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Phòng   Trọ  Quận 7 ", "phòng trọ quận 7"},
		{"CHUNG CƯ", "chung cư"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"phường", "phuong"},
		{"Đường Nguyễn Huệ", "Duong Nguyen Hue"},
		{"gần", "gan"},
		{"no diacritics", "no diacritics"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Chung cư gần Quận 7", "quan 7") {
		t.Error("expected fold-insensitive match")
	}
	if ContainsFold("phòng trọ", "chung cư") {
		t.Error("unexpected match")
	}
}

func TestTokenCount(t *testing.T) {
	if got := TokenCount("phòng trọ gần IUH dưới 6 triệu"); got != 6 {
		t.Errorf("TokenCount = %d, want 6", got)
	}
}
