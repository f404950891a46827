package protocol

import (
	"encoding/json"
	"unicode/utf8"
)

// Cancel is an outbound cancellation message.
type Cancel struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// EncodeCancel renders a cancel response. An empty reason is omitted
// from the output entirely.
func EncodeCancel(reason string) []byte {
	data, _ := json.Marshal(Cancel{Action: ActionCancel, Reason: reason})
	return data
}

const authPrefix = `{"action":"authenticate","password":"`

// AppendAuthenticate appends an authenticate response to dst and returns
// the extended slice. The password is escaped byte by byte into dst so
// that no intermediate string copy of the secret is created; the caller
// owns both slices and wipes them once the response has been written.
func AppendAuthenticate(dst, password []byte) []byte {
	dst = append(dst, authPrefix...)
	dst = appendJSONString(dst, password)
	return append(dst, '"', '}')
}

const hexDigits = "0123456789abcdef"

// appendJSONString escapes s per the JSON string grammar. Valid UTF-8
// passes through untouched; bytes outside valid UTF-8 are escaped as
// \u00XX so the emitted line is always decodable JSON (such a byte
// reaches the consumer as the equal-valued rune).
func appendJSONString(dst, s []byte) []byte {
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"':
				dst = append(dst, '\\', '"')
			case c == '\\':
				dst = append(dst, '\\', '\\')
			case c == '\n':
				dst = append(dst, '\\', 'n')
			case c == '\r':
				dst = append(dst, '\\', 'r')
			case c == '\t':
				dst = append(dst, '\\', 't')
			case c < 0x20:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}
		_, size := utf8.DecodeRune(s[i:])
		if size == 1 {
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			i++
			continue
		}
		dst = append(dst, s[i:i+size]...)
		i += size
	}
	return dst
}
