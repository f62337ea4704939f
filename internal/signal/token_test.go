package signal

import (
	"reflect"
	"testing"
)

func TestDetectTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"bare numeric token", "63128363505", []string{"63128363505"}},
		{"token in sentence", "5QM411105R сможете привезти?", []string{"5QM411105R"}},
		{"lowercase token", "нужен 4n0907998", []string{"4N0907998"}},
		{"two tokens deduplicated", "4N0907998 и еще 4N0907998, плюс 11537545279", []string{"4N0907998", "11537545279"}},
		{"phone is not a token", "мой номер 89261234567", nil},
		{"phone with plus seven", "79261234567", nil},
		{"ten digits with phone hint", "позвоните 9261234567", nil},
		{"ten digits without hint kept", "код детали 9261234567", []string{"9261234567"}},
		{"vin segment stripped", "VIN: WBAVL31020 VN97388 нужен шланг 11537545279", []string{"11537545279"}},
		{"short runs ignored", "ок 123 да", nil},
		{"empty", "  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTokens(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("DetectTokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsSimpleQuery(t *testing.T) {
	if !IsSimpleQuery("63128363505", nil) {
		t.Fatalf("expected bare token to be a simple query")
	}
	if !IsSimpleQuery("нужен 4N0907998, сможете привезти?", nil) {
		t.Fatalf("expected short token question to be a simple query")
	}
	if IsSimpleQuery("VIN: WBAVL31020 VN97388", nil) {
		t.Fatalf("VIN request must never be a simple query")
	}
	if IsSimpleQuery("просто текст без номера", nil) {
		t.Fatalf("text without tokens is not a simple query")
	}

	long := "нужна деталь 4N0907998 "
	for len([]rune(long)) <= 120 {
		long += "и еще длинное описание того что случилось с машиной "
	}
	if IsSimpleQuery(long, nil) {
		t.Fatalf("long descriptions are not simple queries")
	}
}

func TestNormalizeTokens(t *testing.T) {
	got := NormalizeTokens([]string{" A1 ", "", "A1", "B2"})
	want := []string{"A1", "B2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeTokens = %v, want %v", got, want)
	}
}
