package types

const (
	// MaxSmallSymbolLen is the longest symbol packed into a Val body.
	MaxSmallSymbolLen = 9
	// MaxSymbolLen is the longest symbol the host accepts.
	MaxSymbolLen = 32

	symbolCharBits = 6
	symbolCharMask = 1<<symbolCharBits - 1
)

// symbolCode maps a symbol character to its 6-bit code. Zero means "no character".
func symbolCode(c byte) (uint64, bool) {
	switch {
	case c == '_':
		return 1, true
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 2, true
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 12, true
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 38, true
	}
	return 0, false
}

func symbolChar(code uint64) (byte, bool) {
	switch {
	case code == 1:
		return '_', true
	case code >= 2 && code <= 11:
		return byte(code-2) + '0', true
	case code >= 12 && code <= 37:
		return byte(code-12) + 'A', true
	case code >= 38 && code <= 63:
		return byte(code-38) + 'a', true
	}
	return 0, false
}

// ValidateSymbol checks the length and alphabet of a symbol.
func ValidateSymbol(s string) error {
	if len(s) > MaxSymbolLen {
		return Errorf(ErrValue, CodeInvalidInput, "symbol too long: %d > %d", len(s), MaxSymbolLen)
	}
	for i := 0; i < len(s); i++ {
		if _, ok := symbolCode(s[i]); !ok {
			return Errorf(ErrValue, CodeInvalidInput, "invalid symbol character %q", s[i])
		}
	}
	return nil
}

// SmallSymbol packs s into a Val when it is short enough.
func SmallSymbol(s string) (Val, bool) {
	if len(s) > MaxSmallSymbolLen {
		return 0, false
	}
	var body uint64
	for i := 0; i < len(s); i++ {
		code, ok := symbolCode(s[i])
		if !ok {
			return 0, false
		}
		body = body<<symbolCharBits | code
	}
	return fromBody(TagSymbolSmall, body), true
}

// AsSmallSymbol unpacks a SymbolSmall.
func (v Val) AsSmallSymbol() (string, bool) {
	if !v.Is(TagSymbolSmall) {
		return "", false
	}
	s, err := decodeSmallSymbol(v.Body())
	if err != nil {
		return "", false
	}
	return s, true
}

func decodeSmallSymbol(body uint64) (string, error) {
	var buf [MaxSmallSymbolLen]byte
	n := MaxSmallSymbolLen
	for body != 0 {
		if n == 0 {
			return "", Errorf(ErrValue, CodeInvalidTag, "small symbol body too long")
		}
		c, ok := symbolChar(body & symbolCharMask)
		if !ok {
			return "", Errorf(ErrValue, CodeInvalidTag, "small symbol with empty character slot")
		}
		n--
		buf[n] = c
		body >>= symbolCharBits
	}
	return string(buf[n:]), nil
}
