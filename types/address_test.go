package types

import (
	"encoding/json"
	"testing"
)

func testAddress() Address {
	var a Address
	for i := range a {
		a[i] = byte(i + 1)
	}
	return a
}

func TestBytesToAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{name: "valid 20-byte address", input: make([]byte, 20)},
		{name: "invalid length - 19 bytes", input: make([]byte, 19), wantErr: true},
		{name: "invalid length - 21 bytes", input: make([]byte, 21), wantErr: true},
		{name: "empty address", input: []byte{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BytesToAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("BytesToAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr := testAddress()

	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "hex with prefix", input: addr.Hex(), want: addr},
		{name: "upper-case prefix", input: "0X" + addr.Hex()[2:], want: addr},
		{name: "base58", input: addr.Base58(), want: addr},
		{name: "surrounding spaces", input: "  " + addr.Hex() + " ", want: addr},
		{name: "empty", input: "", wantErr: true},
		{name: "short hex", input: "0x0102", wantErr: true},
		{name: "bad hex", input: "0xzz", wantErr: true},
		{name: "bad base58 characters", input: "0OIl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAddress() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAddressBase58WrongVersion(t *testing.T) {
	addr := testAddress()
	if _, err := AddressFromBase58(addr.Base58()); err != nil {
		t.Fatalf("AddressFromBase58() unexpected error: %v", err)
	}
	// 全零哈希、版本 0x00 的比特币地址
	if _, err := AddressFromBase58("1111111111111111111114oLvT2"); err == nil {
		t.Error("AddressFromBase58() expected error for version 0x00 address")
	}
}

func TestAddressJSON(t *testing.T) {
	type payload struct {
		Owner Address `json:"owner"`
	}
	in := payload{Owner: testAddress()}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	want := `{"owner":"` + in.Owner.Hex() + `"}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if out.Owner != in.Owner {
		t.Errorf("round trip owner = %s, want %s", out.Owner, in.Owner)
	}
}

func TestAddressHelpers(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Error("ZeroAddress.IsZero() = false")
	}
	addr := testAddress()
	if addr.IsZero() {
		t.Error("IsZero() = true for non-zero address")
	}
	if FromCommon(addr.Common()) != addr {
		t.Error("Common() round trip mismatch")
	}
	b := addr.Bytes()
	b[0] = 0xff
	if addr[0] == 0xff {
		t.Error("Bytes() must return a copy")
	}
}
