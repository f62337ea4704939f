package signal

import "testing"

func TestIsValidVINCode(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid plain", "WBAVL31020VN97388", true},
		{"valid with separators", "WBAVL31020-VN97388", true},
		{"lowercase", "wbavl31020vn97388", true},
		{"too short", "WBAVL31020VN9738", false},
		{"digits only", "12345678901234567", false},
		{"forbidden letter I", "IBAVL31020VN97388", false},
		{"forbidden letter O", "OBAVL31020VN97388", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidVINCode(tt.value); got != tt.want {
				t.Fatalf("IsValidVINCode(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsVINLike(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"contiguous valid code", "WBAVL31020VN97388", true},
		{"code inside sentence", "машина WBAVL31020VN97388 нужен насос", true},
		{"keyword with spaced code", "VIN: WBAVL31020 VN97388", true},
		{"keyword with dashed code", "ВИН WBAVL31020-VN97388", true},
		{"keyword without code", "подберите по вин пожалуйста", false},
		{"keyword with short junk", "VIN: WBAVL31020", false},
		{"plain token", "нужен 63128363505", false},
		{"all-digit 17 run", "12345678901234567", false},
		{"empty", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVINLike(tt.text); got != tt.want {
				t.Fatalf("IsVINLike(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHasVINKeyword(t *testing.T) {
	if !HasVINKeyword("пришлите VIN автомобиля") {
		t.Fatalf("expected VIN keyword to match")
	}
	if !HasVINKeyword("вин: 123") {
		t.Fatalf("expected Cyrillic keyword to match")
	}
	if HasVINKeyword("новинка в каталоге") {
		t.Fatalf("did not expect substring match inside a word")
	}
}
