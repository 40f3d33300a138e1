package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeRequest_Layout(t *testing.T) {
	// S5: encode_request(CONNECT, "alice", "xinu01-pc", "POWERCYCLE")
	buf, err := EncodeRequest(KindConnect, "alice", "xinu01-pc", "POWERCYCLE")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(buf) != requestLen {
		t.Fatalf("len = %d, want %d", len(buf), requestLen)
	}
	if buf[0] != 'C' {
		t.Fatalf("buf[0] = %q, want 'C'", buf[0])
	}
	if buf[1] != 0x09 {
		t.Fatalf("buf[1] = %#x, want 0x09", buf[1])
	}
	wantUser := append([]byte("alice"), make([]byte, fieldWidth-len("alice"))...)
	if !bytes.Equal(buf[2:18], wantUser) {
		t.Fatalf("user field = %q, want %q", buf[2:18], wantUser)
	}
	wantServer := append([]byte("xinu01-pc"), make([]byte, fieldWidth-len("xinu01-pc"))...)
	if !bytes.Equal(buf[18:34], wantServer) {
		t.Fatalf("server field = %q, want %q", buf[18:34], wantServer)
	}
	wantClass := append([]byte("POWERCYCLE"), make([]byte, fieldWidth-len("POWERCYCLE"))...)
	if !bytes.Equal(buf[34:50], wantClass) {
		t.Fatalf("class field = %q, want %q", buf[34:50], wantClass)
	}
}

func TestEncodeRequest_FieldTooLong(t *testing.T) {
	long := strings.Repeat("x", fieldWidth+1)
	if _, err := EncodeRequest(KindList, long, "", ""); err == nil {
		t.Fatalf("expected EncodingError for oversized user field")
	}
	if _, err := EncodeRequest(KindList, "", long, ""); err == nil {
		t.Fatalf("expected EncodingError for oversized server field")
	}
	if _, err := EncodeRequest(KindList, "", "", long); err == nil {
		t.Fatalf("expected EncodingError for oversized class field")
	}
}

func TestEncodeRequest_RoundTripFields(t *testing.T) {
	for _, tc := range []struct{ user, server, class string }{
		{"test", "", "quark"},
		{"a", "xinu01", "galileo"},
		{strings.Repeat("u", 16), strings.Repeat("s", 16), strings.Repeat("c", 16)},
	} {
		buf, err := EncodeRequest(KindList, tc.user, tc.server, tc.class)
		if err != nil {
			t.Fatalf("EncodeRequest(%+v): %v", tc, err)
		}
		gotUser := strings.TrimRight(string(buf[2:18]), "\x00")
		gotServer := strings.TrimRight(string(buf[18:34]), "\x00")
		gotClass := strings.TrimRight(string(buf[34:50]), "\x00")
		if gotUser != tc.user || gotServer != tc.server || gotClass != tc.class {
			t.Fatalf("round trip %+v -> (%q,%q,%q)", tc, gotUser, gotServer, gotClass)
		}
	}
}

func TestReadCString(t *testing.T) {
	// S1: get_string on b"Hello\0World!\0This is a null terminated string"
	buf := []byte("Hello\x00World!\x00This is a null terminated string")
	s, adv, err := ReadCString(buf, 0)
	if err != nil || s != "Hello" || adv != 6 {
		t.Fatalf("first read = (%q,%d,%v), want (\"Hello\",6,nil)", s, adv, err)
	}
	s, adv, err = ReadCString(buf, 6)
	if err != nil || s != "World!" || adv != 7 {
		t.Fatalf("second read = (%q,%d,%v), want (\"World!\",7,nil)", s, adv, err)
	}
	s, adv, err = ReadCString(buf, 13)
	if err != nil || s != "This is a null terminated string" || adv != 33 {
		t.Fatalf("third read = (%q,%d,%v), want (%q,33,nil)", s, adv, err, "This is a null terminated string")
	}
}

func TestReadCString_NullByteProperty(t *testing.T) {
	buf := []byte("A\x00B\x00C")
	if s, adv, err := ReadCString(buf, 0); err != nil || s != "A" || adv != 2 {
		t.Fatalf("offset 0 = (%q,%d,%v)", s, adv, err)
	}
	if s, adv, err := ReadCString(buf, 2); err != nil || s != "B" || adv != 2 {
		t.Fatalf("offset 2 = (%q,%d,%v)", s, adv, err)
	}
	if _, _, err := ReadCString(buf, 4); err == nil {
		t.Fatalf("offset 4 expected Truncated, got nil")
	}
}

func recordsEqual(a, b []BackendRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
		ah, bh := a[i].Holder, b[i].Holder
		if (ah == nil) != (bh == nil) {
			return false
		}
		if ah != nil && (ah.User != bh.User || ah.Since != bh.Since) {
			return false
		}
	}
	return true
}

func TestListResponse_RoundTrip(t *testing.T) {
	records := []BackendRecord{
		{Name: "xinu01", Type: "quark", Holder: nil},
		{Name: "xinu02", Type: "galileo", Holder: &Holder{User: "anon", Since: "21:30"}},
	}
	buf := EncodeListResponse("server1", records)
	name, got, err := DecodeListResponse(buf)
	if err != nil {
		t.Fatalf("DecodeListResponse: %v", err)
	}
	if name != "server1" {
		t.Fatalf("name = %q, want server1", name)
	}
	if !recordsEqual(got, records) {
		t.Fatalf("records = %+v, want %+v", got, records)
	}
}

func TestDecodeListResponse_ShortDatagram(t *testing.T) {
	if _, _, err := DecodeListResponse(make([]byte, 10)); err == nil {
		t.Fatalf("expected BadVersionOrSize for short datagram")
	}
	buf := EncodeListResponse("s", nil)
	buf[0] = 'X'
	if _, _, err := DecodeListResponse(buf); err == nil {
		t.Fatalf("expected BadVersionOrSize for bad version byte")
	}
}

func TestDecodeListResponse_Truncated(t *testing.T) {
	buf := EncodeListResponse("s", []BackendRecord{{Name: "a", Type: "b"}})
	buf = buf[:len(buf)-1] // drop the trailing free-holder sentinel byte
	if _, _, err := DecodeListResponse(buf); err == nil {
		t.Fatalf("expected Truncated error")
	}
}

func TestDecodeSessionResponse(t *testing.T) {
	// S6: trailer "55123\n"
	buf := make([]byte, trailerOffset)
	buf[0] = 'C'
	buf = append(buf, []byte("55123\n")...)
	port, err := DecodeSessionResponse(buf)
	if err != nil {
		t.Fatalf("DecodeSessionResponse: %v", err)
	}
	if port != 55123 {
		t.Fatalf("port = %d, want 55123", port)
	}
}

func TestDecodeSessionResponse_BadPort(t *testing.T) {
	buf := make([]byte, trailerOffset)
	buf[0] = 'C'
	buf = append(buf, []byte("not-a-port")...)
	if _, err := DecodeSessionResponse(buf); err == nil {
		t.Fatalf("expected BadPort error")
	}
}

func TestDecodeSessionResponse_BadVersion(t *testing.T) {
	buf := make([]byte, trailerOffset)
	buf[0] = 'X'
	buf = append(buf, []byte("123")...)
	if _, err := DecodeSessionResponse(buf); err == nil {
		t.Fatalf("expected BadVersion error")
	}
}
