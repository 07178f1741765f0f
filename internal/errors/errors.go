package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do serviço.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION_ERROR", "DECODE_ERROR")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Erros que abortam a requisição ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// DecodeError representa um multipart malformado ou um "productData" que não é JSON válido.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string    { return fmt.Sprintf("Erro de Decodificação: %s", e.Msg) }
func (e *DecodeError) Category() string { return "DECODE_ERROR" }
func (e *DecodeError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *DecodeError) Unwrap() error    { return e.Err }

// NewDecodeError cria um erro de decodificação do formulário.
func NewDecodeError(msg string, err error) AppError {
	return &DecodeError{Msg: msg, Err: err}
}

// DuplicateProductError indica que o produto da loja já está ligado a outro registro.
type DuplicateProductError struct {
	ExternalProductID string
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("Produto duplicado: já existe um produto digital para %s", e.ExternalProductID)
}
func (e *DuplicateProductError) Category() string { return "DUPLICATE_PRODUCT" }
func (e *DuplicateProductError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *DuplicateProductError) Unwrap() error    { return nil }

// NewDuplicateProductError cria um erro de produto duplicado.
func NewDuplicateProductError(externalProductID string) AppError {
	return &DuplicateProductError{ExternalProductID: externalProductID}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// --- Erros de Infraestrutura (Encapsulamento) ---

// PersistenceError representa falha de escrita/leitura no banco de documentos.
// Blobs já enviados NÃO são revertidos quando este erro ocorre.
type PersistenceError struct {
	Msg string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Erro de Persistência: %s", e.Msg)
	}
	return fmt.Sprintf("Erro de Persistência: %s: %s", e.Msg, e.Err.Error())
}
func (e *PersistenceError) Category() string { return "PERSISTENCE_ERROR" }
func (e *PersistenceError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *PersistenceError) Unwrap() error    { return e.Err }

// NewDBError é um atalho para criar um PersistenceError de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return &PersistenceError{Msg: msg, Err: err}
}

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// --- Erros não fatais (apenas registrados em log) ---

// StorefrontSyncError representa uma falha ao sincronizar a loja. Nunca chega ao cliente.
type StorefrontSyncError struct {
	Operation string
	Target    string
	Err       error
}

func (e *StorefrontSyncError) Error() string {
	return fmt.Sprintf("Falha de sincronização com a loja (%s %s): %v", e.Operation, e.Target, e.Err)
}
func (e *StorefrontSyncError) Category() string { return "STOREFRONT_SYNC_ERROR" }
func (e *StorefrontSyncError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *StorefrontSyncError) Unwrap() error    { return e.Err }

// NewStorefrontSyncError cria um erro de sincronização com a loja.
func NewStorefrontSyncError(operation, target string, err error) AppError {
	return &StorefrontSyncError{Operation: operation, Target: target, Err: err}
}

// BlobUploadError representa a falha de upload de um arquivo específico.
type BlobUploadError struct {
	FileName string
	Err      error
}

func (e *BlobUploadError) Error() string {
	return fmt.Sprintf("Falha no upload do arquivo %q: %v", e.FileName, e.Err)
}
func (e *BlobUploadError) Category() string { return "BLOB_UPLOAD_ERROR" }
func (e *BlobUploadError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *BlobUploadError) Unwrap() error    { return e.Err }

// NewBlobUploadError cria um erro de upload.
func NewBlobUploadError(fileName string, err error) AppError {
	return &BlobUploadError{FileName: fileName, Err: err}
}

// BlobDeleteError representa a falha ao apagar um blob órfão (limpeza apenas consultiva).
type BlobDeleteError struct {
	Key string
	Err error
}

func (e *BlobDeleteError) Error() string {
	return fmt.Sprintf("Falha ao apagar o blob %q: %v", e.Key, e.Err)
}
func (e *BlobDeleteError) Category() string { return "BLOB_DELETE_ERROR" }
func (e *BlobDeleteError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *BlobDeleteError) Unwrap() error    { return e.Err }

// NewBlobDeleteError cria um erro de remoção de blob.
func NewBlobDeleteError(key string, err error) AppError {
	return &BlobDeleteError{Key: key, Err: err}
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP, categoria e mensagem.
func MapToHTTPStatus(err error) (int, string, string) {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado: tratado como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
