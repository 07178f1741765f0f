package blobstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"godigital/internal/pkg/blobstore"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)

	key := blobstore.ObjectKey("gid://shopify/Product/9049439961300", "Relatório Final (v2).pdf", now)

	assert.Equal(t, "private/2026/11/9049439961300/Relatorio_Final_v2_.pdf", key)
}

func TestNumericSuffix(t *testing.T) {
	assert.Equal(t, "123", blobstore.NumericSuffix("gid://shopify/Product/123"))
	assert.Equal(t, "456", blobstore.NumericSuffix("456"))
	assert.Equal(t, "produto-sem-numero", blobstore.NumericSuffix("produto-sem-numero"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ebook.pdf", "ebook.pdf"},
		{"Canção de Ninar.mp3", "Cancao_de_Ninar.mp3"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ana\foto final.png`, "foto_final.png"},
		{"a   b.zip", "a_b.zip"},
		{"数据.csv", "csv"},
		{"", "file"},
		{"...", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, blobstore.SanitizeFileName(tt.in))
		})
	}
}
