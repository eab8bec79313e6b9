package parse

// charClass is a recognized single-character pattern that can be matched
// with a byte table instead of the regex engine.
type charClass int

const (
	classDigit charClass = iota
	classLower
	classUpper
	classAlpha
	classAlnum
	classWord
	classSpace
	classHexDigit
	classAny
	classNonDigit
	classNonSpace
	classNonWord
)

// classPatterns maps exact pattern strings to their class. Only patterns
// listed here take the fast path; everything else goes through the regex
// engine.
var classPatterns = map[string]charClass{
	"[0-9]":         classDigit,
	`\d`:            classDigit,
	"[a-z]":         classLower,
	"[A-Z]":         classUpper,
	"[a-zA-Z]":      classAlpha,
	"[A-Za-z]":      classAlpha,
	"[a-zA-Z0-9]":   classAlnum,
	"[0-9a-zA-Z]":   classAlnum,
	"[a-zA-Z0-9_]":  classWord,
	`\w`:            classWord,
	`\s`:            classSpace,
	"[ \t\n\r]":     classSpace,
	`[ \t\n\r]`:     classSpace,
	`[ \t\n\r\f\v]`: classSpace,
	"[0-9a-fA-F]":   classHexDigit,
	"[0-9A-Fa-f]":   classHexDigit,
	".":             classAny,
	`\D`:            classNonDigit,
	`\S`:            classNonSpace,
	`\W`:            classNonWord,
}

var (
	digitTable [256]bool
	lowerTable [256]bool
	upperTable [256]bool
	spaceTable [256]bool
	hexTable   [256]bool
)

func init() {
	for b := '0'; b <= '9'; b++ {
		digitTable[b] = true
		hexTable[b] = true
	}
	for b := 'a'; b <= 'z'; b++ {
		lowerTable[b] = true
	}
	for b := 'A'; b <= 'Z'; b++ {
		upperTable[b] = true
	}
	for b := 'a'; b <= 'f'; b++ {
		hexTable[b] = true
	}
	for b := 'A'; b <= 'F'; b++ {
		hexTable[b] = true
	}
	for _, b := range []byte{' ', '\t', '\n', '\r', '\v', '\f'} {
		spaceTable[b] = true
	}
}

func classForPattern(pattern string) (charClass, bool) {
	c, ok := classPatterns[pattern]
	return c, ok
}

func (c charClass) matches(b byte) bool {
	switch c {
	case classDigit:
		return digitTable[b]
	case classLower:
		return lowerTable[b]
	case classUpper:
		return upperTable[b]
	case classAlpha:
		return lowerTable[b] || upperTable[b]
	case classAlnum:
		return lowerTable[b] || upperTable[b] || digitTable[b]
	case classWord:
		return lowerTable[b] || upperTable[b] || digitTable[b] || b == '_'
	case classSpace:
		return spaceTable[b]
	case classHexDigit:
		return hexTable[b]
	case classAny:
		return b != '\n'
	case classNonDigit:
		return !digitTable[b]
	case classNonSpace:
		return !spaceTable[b]
	case classNonWord:
		return !(lowerTable[b] || upperTable[b] || digitTable[b] || b == '_')
	}
	return false
}

// multibyte reports whether a match under this class may span more than
// one byte. Negated classes and "." accept non-ASCII lead bytes.
func (c charClass) multibyte() bool {
	switch c {
	case classAny, classNonDigit, classNonSpace, classNonWord:
		return true
	}
	return false
}

// predicate returns a per-byte test for bulk scanning, or false when the
// class cannot be bulk-scanned bytewise (multibyte classes need character
// stepping).
func (c charClass) predicate() (func(b byte) bool, bool) {
	if c.multibyte() {
		return nil, false
	}
	return c.matches, true
}

// utf8CharLen returns the byte length of the UTF-8 sequence starting with
// lead byte b. Invalid lead bytes count as one byte.
func utf8CharLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	}
	return 1
}
