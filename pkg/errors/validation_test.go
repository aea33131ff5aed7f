package errors

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "u1", false},
		{"hierarchical", "core/alu/u_add_3", false},
		{"bus bit", "data[7]", false},
		{"escaped", `a\/b`, false},
		{"empty", "", true},
		{"space", "u 1", true},
		{"tab", "u\t1", true},
		{"null byte", "u\x001", true},
		{"too long", strings.Repeat("a", 257), true},
		{"max length", strings.Repeat("a", 256), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("instance", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidDesign) {
				t.Errorf("ValidateName(%q) code = %s, want %s", tt.input, GetCode(err), ErrCodeInvalidDesign)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative", "out/assign.json", false},
		{"absolute", "/tmp/design.json", false},
		{"empty", "", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeNoAccessPoint,
		ErrCodeNoRowPath,
		ErrCodeUnknownMaster,
		ErrCodeNoPinLayers,
		ErrCodeNoPattern,
		ErrCodeInvalidConfig,
		ErrCodeInvalidDesign,
		ErrCodeNotFound,
		ErrCodeOracle,
		ErrCodeBatchFailed,
		ErrCodeInternal,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
