package encoding

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
)

// BSON-like type tags for the Data section. 128/129 are user-extension
// subtypes carrying arbitrary-precision int/float text; everything
// else mirrors BSON's own element type byte.
const (
	tagNull       = 0x0A
	tagBool       = 0x08
	tagDouble     = 0x01
	tagString     = 0x02
	tagArray      = 0x04
	tagObject     = 0x03
	tagIntString   = 128
	tagFloatString = 129
)

func marshalData(v any) []byte {
	var buf []byte
	return appendValue(buf, v)
}

func appendValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, tagNull)
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return append(buf, tagBool, b)
	case int64:
		return appendIntString(buf, strconv.FormatInt(x, 10))
	case int:
		return appendIntString(buf, strconv.Itoa(x))
	case float64:
		if x == float64(int64(x)) {
			return appendIntString(buf, strconv.FormatInt(int64(x), 10))
		}
		return appendFloatString(buf, strconv.FormatFloat(x, 'g', -1, 64))
	case string:
		return appendLenPrefixed(buf, tagString, []byte(x))
	case []any:
		var body []byte
		body = appendUint32(body, uint32(len(x)))
		for _, e := range x {
			body = appendValue(body, e)
		}
		buf = append(buf, tagArray)
		return appendRaw(buf, body)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var body []byte
		body = appendUint32(body, uint32(len(keys)))
		for _, k := range keys {
			body = appendLenPrefixed(body, 0, []byte(k)) // key has no leading tag byte
			body = appendValue(body, x[k])
		}
		buf = append(buf, tagObject)
		return appendRaw(buf, body)
	default:
		return append(buf, tagNull)
	}
}

func appendIntString(buf []byte, s string) []byte {
	return appendLenPrefixed(buf, tagIntString, []byte(s))
}

func appendFloatString(buf []byte, s string) []byte {
	return appendLenPrefixed(buf, tagFloatString, []byte(s))
}

func appendLenPrefixed(buf []byte, tag byte, body []byte) []byte {
	if tag != 0 {
		buf = append(buf, tag)
	}
	buf = appendUint32(buf, uint32(len(body)))
	return append(buf, body...)
}

func appendRaw(buf []byte, body []byte) []byte {
	buf = appendUint32(buf, uint32(len(body)))
	return append(buf, body...)
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func unmarshalData(buf []byte) (any, error) {
	v, _, err := readValue(buf)
	return v, err
}

func readValue(buf []byte) (any, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, fmt.Errorf("encoding: truncated data section")
	}
	tag, rest := buf[0], buf[1:]
	switch tag {
	case tagNull:
		return nil, rest, nil
	case tagBool:
		if len(rest) < 1 {
			return nil, nil, fmt.Errorf("encoding: truncated bool")
		}
		return rest[0] != 0, rest[1:], nil
	case tagIntString, tagFloatString:
		s, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, nil, err
		}
		if tag == tagIntString {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, nil, err
			}
			return n, rest, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, nil, err
		}
		return f, rest, nil
	case tagString:
		s, rest, err := readLenPrefixed(rest)
		return s, rest, err
	case tagArray:
		body, rest, err := readRaw(rest)
		if err != nil {
			return nil, nil, err
		}
		n := readUint32(body)
		body = body[4:]
		out := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			var elem any
			var eerr error
			elem, body, eerr = readValue(body)
			if eerr != nil {
				return nil, nil, eerr
			}
			out = append(out, elem)
		}
		return out, rest, nil
	case tagObject:
		body, rest, err := readRaw(rest)
		if err != nil {
			return nil, nil, err
		}
		n := readUint32(body)
		body = body[4:]
		out := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			klen := readUint32(body)
			body = body[4:]
			key := string(body[:klen])
			body = body[klen:]
			var val any
			var verr error
			val, body, verr = readValue(body)
			if verr != nil {
				return nil, nil, verr
			}
			out[key] = val
		}
		return out, rest, nil
	default:
		return nil, nil, fmt.Errorf("encoding: unknown data tag %d", tag)
	}
}

func readUint32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[:4]) }

func readLenPrefixed(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("encoding: truncated length prefix")
	}
	n := readUint32(buf)
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, fmt.Errorf("encoding: truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}

func readRaw(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("encoding: truncated raw length")
	}
	n := readUint32(buf)
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, fmt.Errorf("encoding: truncated raw body")
	}
	return buf[:n], buf[n:], nil
}
