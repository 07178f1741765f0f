package blobstore

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const keyPrefix = "private"

// ObjectKey monta a chave determinística do blob:
// private/<ano>/<mês>/<sufixo numérico do produto>/<nome sanitizado>.
// Dois uploads do mesmo produto, no mesmo mês e com o mesmo nome sanitizado,
// escrevem na mesma chave (o último sobrescreve).
func ObjectKey(productExternalID, originalName string, now time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s/%s",
		keyPrefix,
		now.Year(),
		int(now.Month()),
		NumericSuffix(productExternalID),
		SanitizeFileName(originalName),
	)
}

// NumericSuffix extrai os dígitos finais do ID (ex: "gid://shopify/Product/123" -> "123").
// IDs sem sufixo numérico são sanitizados por inteiro.
func NumericSuffix(id string) string {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return SanitizeFileName(id)
	}
	return id[i:]
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFileName remove diretórios e acentos e troca qualquer caractere fora de
// [A-Za-z0-9._-] por "_".
func SanitizeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	if plain, _, err := transform.String(stripMarks, name); err == nil {
		name = plain
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}
