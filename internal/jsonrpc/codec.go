package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrFraming marks a malformed or truncated frame. The framing is
	// not self-delimiting after corruption, so the stream is dead once
	// this is returned.
	ErrFraming = errors.New("malformed frame")
	// ErrEncoding marks a frame body that is not valid UTF-8 JSON.
	ErrEncoding = errors.New("malformed message body")
)

// Reader decodes Content-Length framed JSON-RPC messages from a byte
// stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for frame decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage parses one framed message. It returns io.EOF only when
// the stream ends cleanly at a frame boundary; a truncated header or
// body wraps ErrFraming and a body that fails to decode wraps
// ErrEncoding. There is no resynchronization after either.
func (r *Reader) ReadMessage() (Value, error) {
	length := -1
	first := true
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && first && line == "" {
				return Value{}, io.EOF
			}
			return Value{}, fmt.Errorf("%w: truncated header: %v", ErrFraming, err)
		}
		first = false
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if line == "" {
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return Value{}, fmt.Errorf("%w: header line %q", ErrFraming, line)
		}
		// Headers other than Content-Length are permitted and ignored.
		if !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return Value{}, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, strings.TrimSpace(val))
		}
		length = n
	}
	if length < 0 {
		return Value{}, fmt.Errorf("%w: missing Content-Length header", ErrFraming)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return Value{}, fmt.Errorf("%w: truncated body: %v", ErrFraming, err)
	}
	return Decode(body)
}

// Writer encodes framed JSON-RPC messages onto a byte stream, flushing
// after every message so the peer never waits on a buffered frame.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w for frame encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteMessage frames and writes one message, returning the body byte
// count. A write to a closed pipe surfaces the underlying I/O error.
func (w *Writer) WriteMessage(v Value) (int, error) {
	body := Encode(v)
	if _, err := fmt.Fprintf(w.bw, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return 0, err
	}
	if _, err := w.bw.Write(body); err != nil {
		return 0, err
	}
	if err := w.bw.Flush(); err != nil {
		return 0, err
	}
	return len(body), nil
}

// Decode parses a message body into a Value tree.
func Decode(data []byte) (Value, error) {
	if !utf8.Valid(data) {
		return Value{}, fmt.Errorf("%w: body is not valid UTF-8", ErrEncoding)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("%w: trailing data after message", ErrEncoding)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				e, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(elems...), nil
		case '{':
			var members []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Object(members...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// Encode serializes v as compact JSON without HTML escaping.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encodeValue(&buf, v)
	return buf.Bytes()
}

func encodeValue(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.lit)
	case KindString:
		encodeString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeValue(buf, e)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, m.Key)
			buf.WriteByte(':')
			encodeValue(buf, m.Value)
		}
		buf.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
