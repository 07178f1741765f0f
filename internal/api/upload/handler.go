package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"godigital/internal/domain"
	apperror "godigital/internal/errors"
	"godigital/internal/pkg/logger"
	"godigital/internal/service/uploadservice"
)

// ProductService define o contrato que o Handler espera da camada de Serviço.
type ProductService interface {
	SaveProduct(ctx context.Context, req uploadservice.Request) (uploadservice.Outcome, error)
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
}

const (
	fieldProductData   = "productData"
	fieldCommonFile    = "file"
	variantFilesPrefix = "variantFiles["
)

const submissionSchemaURL = "https://godigital.local/schemas/product-data.schema.json"

const submissionSchema = `{
  "type": "object",
  "required": ["productId", "variants"],
  "properties": {
    "id": {"type": ["string", "null"]},
    "productId": {"type": "string", "minLength": 1},
    "title": {"type": ["string", "null"]},
    "productImage": {"type": ["string", "null"]},
    "status": {"type": ["string", "null"]},
    "fileType": {"type": ["string", "null"]},
    "totalVariants": {"type": ["integer", "null"], "minimum": 0},
    "variants": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "sku": {"type": ["string", "null"]},
          "title": {"type": ["string", "null"]},
          "image": {"type": ["string", "null"]},
          "fileKey": {"type": ["string", "null"]},
          "fileUrl": {"type": ["string", "null"]},
          "fileName": {"type": ["string", "null"]},
          "fileSize": {"type": ["integer", "null"], "minimum": 0},
          "download": {"type": ["integer", "null"], "minimum": 0}
        }
      }
    }
  }
}`

// Handler agrupa os handlers HTTP do produto digital.
type Handler struct {
	Service   ProductService
	Logger    logger.Logger
	schema    *jsonschema.Schema
	maxMemory int64
}

// NewHandler compila o schema do campo productData e cria o Handler.
// maxMemory é o limite, em bytes, mantido em memória pelo parser multipart.
func NewHandler(svc ProductService, log logger.Logger, maxMemory int64) (*Handler, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(submissionSchemaURL, strings.NewReader(submissionSchema)); err != nil {
		return nil, fmt.Errorf("falha ao carregar o schema de productData: %w", err)
	}
	schema, err := c.Compile(submissionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao compilar o schema de productData: %w", err)
	}

	return &Handler{
		Service:   svc,
		Logger:    log,
		schema:    schema,
		maxMemory: maxMemory,
	}, nil
}

// writeJSON envia o corpo JSON com o status informado.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("Falha ao codificar JSON de resposta", err)
	}
}

// handleError traduz o erro para {error} com o status da categoria.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= http.StatusInternalServerError {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
		message = "Erro interno ao processar a requisição."
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{
			"path":  r.URL.Path,
			"error": message,
		})
	}

	h.writeJSON(w, status, domain.ErrorResponse{Error: message})
}

// SaveProductHandler lida com POST /v1/digital-products (multipart/form-data).
func (h *Handler) SaveProductHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	out, err := h.Service.SaveProduct(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.Logger.Info("Requisição concluída com sucesso", map[string]interface{}{
		"method":          r.Method,
		"path":            r.URL.Path,
		"id":              out.Product.ID,
		"upload_failures": len(out.UploadFailures),
		"sync_failures":   len(out.SyncFailures),
		"delete_failures": len(out.DeleteFailures),
	})
	h.writeJSON(w, http.StatusOK, domain.SaveResponse{
		Message: out.Message,
		Status:  true,
		ID:      out.Product.ID,
	})
}

// GetProductByIDHandler lida com GET /v1/digital-products/{id}.
func (h *Handler) GetProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.GetProductByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// decodeRequest lê o formulário: productData (JSON), file (modo comum) e
// variantFiles[<id>] (modo por variante). Só o primeiro arquivo de cada campo é usado.
func (h *Handler) decodeRequest(r *http.Request) (uploadservice.Request, error) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		return uploadservice.Request{}, apperror.NewDecodeError("formulário multipart inválido", err)
	}

	values := r.MultipartForm.Value[fieldProductData]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return uploadservice.Request{}, apperror.NewDecodeError("campo productData ausente", nil)
	}
	raw := values[0]

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return uploadservice.Request{}, apperror.NewDecodeError("productData não é um JSON válido", err)
	}
	if err := h.schema.Validate(doc); err != nil {
		return uploadservice.Request{}, apperror.NewValidationError(fmt.Sprintf("productData inválido: %v", err))
	}

	var sub domain.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return uploadservice.Request{}, apperror.NewDecodeError("productData com formato inesperado", err)
	}

	req := uploadservice.Request{
		Submission:   sub,
		VariantFiles: make(map[string]uploadservice.FileUpload),
	}
	for field, files := range r.MultipartForm.File {
		if len(files) == 0 {
			continue
		}
		if field == fieldCommonFile {
			f := toFileUpload(files[0])
			req.CommonFile = &f
			continue
		}
		if id, ok := variantFieldID(field); ok {
			req.VariantFiles[id] = toFileUpload(files[0])
		}
	}
	return req, nil
}

// variantFieldID extrai o ID da variante de "variantFiles[<id>]".
func variantFieldID(field string) (string, bool) {
	if !strings.HasPrefix(field, variantFilesPrefix) || !strings.HasSuffix(field, "]") {
		return "", false
	}
	id := field[len(variantFilesPrefix) : len(field)-1]
	if id == "" {
		return "", false
	}
	return id, true
}

func toFileUpload(fh *multipart.FileHeader) uploadservice.FileUpload {
	return uploadservice.FileUpload{
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
