package domain

import (
	"context"
	"time"
)

// FileMode indica como os arquivos de um produto digital são distribuídos entre as variantes.
type FileMode string

const (
	// FileModeCommon: um único arquivo compartilhado por todas as variantes.
	FileModeCommon FileMode = "commonFile"
	// FileModePerVariant: cada variante pode ter o seu próprio arquivo.
	FileModePerVariant FileMode = "variantFile"
)

// ParseFileMode converte o valor enviado no formulário. Qualquer valor diferente de
// "commonFile" é tratado como arquivo por variante.
func ParseFileMode(raw string) FileMode {
	if raw == string(FileModeCommon) {
		return FileModeCommon
	}
	return FileModePerVariant
}

// Product representa um produto digital (a Entidade persistida).
// O documento inteiro, incluindo as variantes, é gravado como uma única unidade.
type Product struct {
	ID                   string    `json:"id"`                   // Atribuído pelo repositório na primeira gravação
	ExternalProductID    string    `json:"productId"`            // ID do produto na loja (único)
	DisplayName          string    `json:"title"`
	Image                string    `json:"productImage"`
	Status               string    `json:"status"`
	FileMode             FileMode  `json:"fileType"`
	DeclaredVariantCount int       `json:"totalVariants"`
	Variants             []Variant `json:"variants"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Variant representa uma unidade vendável do produto, entregue como arquivo.
type Variant struct {
	ExternalVariantID string `json:"id"`
	SKU               string `json:"sku"`
	Title             string `json:"title"`
	Image             string `json:"image"`
	FileKey           string `json:"fileKey"`
	FileURL           string `json:"fileUrl"`
	FileName          string `json:"fileName"`
	FileSize          int64  `json:"fileSize"`
	DownloadCount     int64  `json:"download"`
}

// HasFile informa se a variante referencia algum blob.
func (v Variant) HasFile() bool {
	return v.FileKey != ""
}

// File devolve os metadados de arquivo da variante como uma unidade.
func (v Variant) File() FileRef {
	return FileRef{Key: v.FileKey, URL: v.FileURL, Name: v.FileName, Size: v.FileSize}
}

// WithFile devolve uma cópia da variante apontando para o arquivo informado.
// Chave, URL, nome e tamanho são sempre trocados juntos.
func (v Variant) WithFile(f FileRef) Variant {
	v.FileKey = f.Key
	v.FileURL = f.URL
	v.FileName = f.Name
	v.FileSize = f.Size
	return v
}

// FileRef agrupa os metadados denormalizados de um blob.
type FileRef struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// UploadedFile é o resultado (transitório) de um upload bem sucedido no Blob Store.
type UploadedFile struct {
	FileRef
	TargetKind          FileMode `json:"targetKind"`
	AssociatedVariantID string   `json:"associatedVariantId,omitempty"`
}

// Submission é a descrição do produto enviada no campo "productData" do formulário.
type Submission struct {
	ID            string              `json:"id,omitempty"`
	ProductID     string              `json:"productId"`
	Title         string              `json:"title"`
	ProductImage  string              `json:"productImage"`
	Status        string              `json:"status"`
	FileType      string              `json:"fileType"`
	TotalVariants int                 `json:"totalVariants"`
	Variants      []SubmissionVariant `json:"variants"`
}

// SubmissionVariant é uma variante como enviada pelo cliente. Os campos de arquivo
// podem apenas repetir os valores já gravados.
type SubmissionVariant struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Title    string `json:"title,omitempty"`
	Image    string `json:"image,omitempty"`
	FileKey  string `json:"fileKey,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	Download int64  `json:"download,omitempty"`
}

// ReconcilePlan é a saída do motor de reconciliação: o produto final, as chaves órfãs
// que podem ser apagadas e as variantes removidas (que voltam a ser físicas na loja).
type ReconcilePlan struct {
	Product           Product
	PreviousMode      FileMode // Vazio quando não existe produto anterior
	OrphanKeys        []string
	RemovedVariantIDs []string
}

// --- Interfaces de Contrato ---

// ProductRepository é o contrato da camada de persistência do produto digital.
type ProductRepository interface {
	Save(ctx context.Context, product Product) (Product, error)
	FindByID(ctx context.Context, id string) (Product, error)
	FindByExternalProductID(ctx context.Context, externalProductID string) (Product, bool, error)
}
