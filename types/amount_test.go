package types

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "whole ether", input: "2", want: "2000000000000000000"},
		{name: "fraction", input: "0.5", want: "500000000000000000"},
		{name: "one wei", input: "0.000000000000000001", want: "1"},
		{name: "zero", input: "0", want: "0"},
		{name: "too many decimals", input: "0.0000000000000000001", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "garbage", input: "two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEther(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEther() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Dec() != tt.want {
				t.Errorf("ParseEther() = %s, want %s", got.Dec(), tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000")
	if err != nil {
		t.Fatalf("ParseAmount() failed: %v", err)
	}
	if v.Uint64() != 1000 {
		t.Errorf("ParseAmount() = %d, want 1000", v.Uint64())
	}

	v, err = ParseAmount("0x3e8")
	if err != nil {
		t.Fatalf("ParseAmount(hex) failed: %v", err)
	}
	if v.Uint64() != 1000 {
		t.Errorf("ParseAmount(hex) = %d, want 1000", v.Uint64())
	}

	if _, err := ParseAmount("-5"); err == nil {
		t.Error("ParseAmount() expected error for negative amount")
	}
	if _, err := ParseAmount(""); err == nil {
		t.Error("ParseAmount() expected error for empty amount")
	}
}

func TestFormatEther(t *testing.T) {
	if got := FormatEther(uint256.NewInt(1500000000000000000)); got != "1.5" {
		t.Errorf("FormatEther() = %s, want 1.5", got)
	}
	if got := FormatEther(nil); got != "0" {
		t.Errorf("FormatEther(nil) = %s, want 0", got)
	}
}

func TestCloneAmount(t *testing.T) {
	src := uint256.NewInt(7)
	dst := CloneAmount(src)
	dst.AddUint64(dst, 1)
	if src.Uint64() != 7 {
		t.Errorf("CloneAmount() must not alias source, source = %d", src.Uint64())
	}
	if CloneAmount(nil).Sign() != 0 {
		t.Error("CloneAmount(nil) should be zero")
	}
}
