// Package cursor encodes query continuation keys as opaque pagination
// tokens. The token is base64(json) of the index's last-evaluated key;
// callers hold it verbatim and echo it back, nothing more.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ErrInvalid reports a token that did not decode. It is client input
// error territory, never a server fault.
var ErrInvalid = fmt.Errorf("cursor: invalid token")

// Encode converts a last-evaluated key into an opaque token. A nil or
// empty key means the result set is exhausted and yields "".
func Encode(lastKey map[string]string) string {
	if len(lastKey) == 0 {
		return ""
	}
	raw, err := json.Marshal(lastKey)
	if err != nil {
		// map[string]string always marshals; keep the signature honest anyway.
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode converts a token back into an exclusive start key. An empty
// token means "start from the beginning" and yields nil. Any malformed
// token yields ErrInvalid.
func Decode(token string) (map[string]string, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalid
	}
	var key map[string]string
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, ErrInvalid
	}
	if len(key) == 0 {
		return nil, ErrInvalid
	}
	return key, nil
}
