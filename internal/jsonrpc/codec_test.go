package jsonrpc

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestReadMessageWellFormed(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":null}}`
	in := "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	r := NewReader(strings.NewReader(in))
	v, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	method, ok := v.Field("method")
	if !ok || method.StringValue() != "initialize" {
		t.Fatalf("method: %v %v", method, ok)
	}
	if _, err := r.ReadMessage(); err != io.EOF {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadMessageHeaderCaseAndExtras(t *testing.T) {
	body := `{"id":2}`
	in := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n" +
		"content-length: " + itoa(len(body)) + "\r\n\r\n" + body
	v, err := NewReader(strings.NewReader(in)).ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	id, _ := v.Field("id")
	if id.NumberLit() != "2" {
		t.Fatalf("id: %q", id.NumberLit())
	}
}

func TestReadMessageMissingContentLength(t *testing.T) {
	in := "Content-Type: application/json\r\n\r\n{}"
	_, err := NewReader(strings.NewReader(in)).ReadMessage()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestReadMessageInvalidContentLength(t *testing.T) {
	for _, bad := range []string{"abc", "-1", ""} {
		in := "Content-Length: " + bad + "\r\n\r\n{}"
		_, err := NewReader(strings.NewReader(in)).ReadMessage()
		if !errors.Is(err, ErrFraming) {
			t.Fatalf("length %q: expected ErrFraming, got %v", bad, err)
		}
	}
}

func TestReadMessageTruncatedBody(t *testing.T) {
	in := "Content-Length: 100\r\n\r\n{\"id\":1}"
	_, err := NewReader(strings.NewReader(in)).ReadMessage()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestReadMessageTruncatedHeader(t *testing.T) {
	in := "Content-Length: 10"
	_, err := NewReader(strings.NewReader(in)).ReadMessage()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestReadMessageInvalidJSON(t *testing.T) {
	body := `{"id":`
	in := "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	_, err := NewReader(strings.NewReader(in)).ReadMessage()
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestReadMessageInvalidUTF8(t *testing.T) {
	body := "\"\xff\xfe\""
	in := "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	_, err := NewReader(strings.NewReader(in)).ReadMessage()
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestWriteMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	msg := Object(
		Member{Key: "jsonrpc", Value: String("2.0")},
		Member{Key: "id", Value: Number("1")},
		Member{Key: "method", Value: String("shutdown")},
	)
	n, err := NewWriter(&buf).WriteMessage(msg)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":1,"method":"shutdown"}`
	if got := buf.String(); got != "Content-Length: "+itoa(len(want))+"\r\n\r\n"+want {
		t.Fatalf("frame: %q", got)
	}
	if n != len(want) {
		t.Fatalf("body bytes: got %d want %d", n, len(want))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	msg := Object(
		Member{Key: "id", Value: Number("1")},
		Member{Key: "result", Value: Array(
			Object(Member{Key: "uri", Value: String("file:///srv/app/a.py")}),
			Null(),
			Bool(true),
			Number("2.5e3"),
		)},
	)
	var buf bytes.Buffer
	if _, err := NewWriter(&buf).WriteMessage(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := NewReader(&buf).ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Equal(msg) {
		t.Fatalf("round trip mismatch: %s", Encode(got))
	}
}

func TestEncodeReproducesBytes(t *testing.T) {
	// decode then encode must reproduce a compact frame body exactly,
	// including object member order and number lexemes.
	bodies := []string{
		`{"z":1,"a":2,"m":[{"b":null,"a":"x"}]}`,
		`{"id":1.50,"big":123456789012345678901234567890}`,
		`{"uri":"file:///home/u/proj/a.py","text":"line1\nline2\tend"}`,
		`[1,"two",false,null,{}]`,
	}
	for _, body := range bodies {
		v, err := Decode([]byte(body))
		if err != nil {
			t.Fatalf("decode %q: %v", body, err)
		}
		if got := string(Encode(v)); got != body {
			t.Fatalf("encode: got %q want %q", got, body)
		}
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := Decode([]byte(`{}{}`)); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestEncodeEscapesControlCharacters(t *testing.T) {
	got := string(Encode(String("a\x01b\"c\\d")))
	if got != `"ab\"c\\d"` {
		t.Fatalf("escaped: %q", got)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
