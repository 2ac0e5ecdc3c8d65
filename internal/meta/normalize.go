package meta

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

// Token is one word of a normalized name and its 0-based position
type Token struct {
	Word     string
	Position int
}

// mediaExtensions are stripped from the tail of a filename before normalizing
var mediaExtensions = map[string]bool{
	"mp3": true, "flac": true, "m4a": true, "m4p": true, "mp4": true,
	"aac": true, "alac": true, "ogg": true, "oga": true, "opus": true,
	"wav": true, "aiff": true, "aif": true, "wma": true, "ape": true,
	"wv": true, "mpc": true, "webm": true, "mka": true, "dsf": true,
	"dff": true,
}

var apostrophes = strings.NewReplacer(
	"'", "",
	"’", "",
	"‘", "",
	"`", "",
	"´", "",
	"ʼ", "",
	"ʹ", "",
)

// Normalize reduces a raw filename to its NormalizedName: lowercase ASCII
// words separated by single spaces, with the media extension removed.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := norm.NFKC.String(raw)
	s = stripMediaExtension(s)
	s = apostrophes.Replace(s)
	s = transliterate(s)
	s = strings.ToLower(s)
	return collapseNonAlnum(s)
}

// NormalizePath normalizes the last component of a path
func NormalizePath(path string) string {
	return Normalize(BaseName(path))
}

// Tokenize splits a normalized name into words with contiguous positions
func Tokenize(name string) []Token {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil
	}
	tokens := make([]Token, len(fields))
	for i, word := range fields {
		tokens[i] = Token{Word: word, Position: i}
	}
	return tokens
}

// BaseName returns the last path component. Both / and \ separate components,
// since playlists written on Windows keep backslashes.
func BaseName(path string) string {
	path = strings.TrimRight(path, `/\`)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// IsMediaExtension reports whether ext (with or without the dot) is a known audio extension
func IsMediaExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return mediaExtensions[ext]
}

func stripMediaExtension(s string) string {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 || dot == len(s)-1 {
		return s
	}
	if IsMediaExtension(s[dot+1:]) {
		return s[:dot]
	}
	return s
}

// transliterate maps every non-ASCII rune to an ASCII equivalent using the
// script tables, the Hangul jamo arithmetic and unidecode as the catch-all
func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	geminate := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			geminate = false
			continue
		}

		r = foldKana(r)
		if r == sokuonHiragana {
			geminate = true
			continue
		}

		var out string
		matched := false
		if stem, ok := kanaYoonStems[r]; ok && i+1 < len(runes) {
			if vowel, ok := kanaYoonVowels[foldKana(runes[i+1])]; ok {
				out, matched = stem+vowel, true
				i++
			}
		}
		if !matched {
			out = lookupRune(r)
		}

		// Small tsu doubles the next consonant (かった = katta)
		if geminate && out != "" && !strings.ContainsRune("aeiou", rune(out[0])) {
			b.WriteByte(out[0])
		}
		geminate = false
		b.WriteString(out)
	}

	return b.String()
}

func lookupRune(r rune) string {
	if r >= hangulBase && r <= hangulLast {
		return romanizeHangul(r)
	}

	lower := unicode.ToLower(r)
	for _, table := range scriptTables {
		if out, ok := table[lower]; ok {
			return out
		}
	}

	return unidecode.Unidecode(string(r))
}

func romanizeHangul(r rune) string {
	idx := int(r - hangulBase)
	lead := idx / hangulPerLeader
	vowel := (idx % hangulPerLeader) / hangulFinals
	tail := idx % hangulFinals
	return hangulInitials[lead] + hangulVowels[vowel] + hangulTails[tail]
}

// foldKana maps katakana onto the matching hiragana
func foldKana(r rune) rune {
	if r == sokuonKatakana {
		return sokuonHiragana
	}
	if r >= 0x30A1 && r <= 0x30F6 {
		return r - 0x60
	}
	return r
}

func collapseNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteByte(c)
			continue
		}
		pendingSpace = true
	}

	return b.String()
}
