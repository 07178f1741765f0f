package uploadservice

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"godigital/internal/domain"
	apperror "godigital/internal/errors"
	"godigital/internal/pkg/blobstore"
	"godigital/internal/pkg/logger"
	"godigital/internal/pkg/metrics"
	"godigital/internal/service/reconcile"
	"godigital/internal/service/storefront"
)

// BlobStore define o contrato que o Serviço espera do armazenamento de arquivos.
type BlobStore interface {
	Put(ctx context.Context, in blobstore.PutInput) (domain.UploadedFile, error)
	Delete(ctx context.Context, key string) error
}

// StorefrontSync define o contrato que o Serviço espera da sincronização com a loja.
type StorefrontSync interface {
	SetRequiresShipping(ctx context.Context, productExternalID, variantExternalID string, requiresShipping bool) (storefront.Result, error)
	MergeTags(ctx context.Context, productExternalID string, tagsToAdd []string) (storefront.Result, error)
}

// Config reúne os parâmetros do orquestrador.
type Config struct {
	DigitalProductTag  string
	MaxParallelUploads int
	MaxParallelSync    int
}

// FileUpload é um arquivo recebido no formulário, ainda não enviado ao Blob Store.
type FileUpload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// Request é a requisição já decodificada pelo handler.
type Request struct {
	Submission   domain.Submission
	CommonFile   *FileUpload
	VariantFiles map[string]FileUpload // ID externo da variante -> arquivo
}

// Outcome é o resultado de uma gravação bem sucedida. As listas de falhas trazem os
// erros não fatais de cada etapa (já registrados em log).
type Outcome struct {
	Message        string
	Product        domain.Product
	Created        bool
	UploadFailures []error
	SyncFailures   []error
	DeleteFailures []error
}

// Service orquestra decodificação -> duplicidade -> reconciliação -> persistência -> loja.
type Service struct {
	repo    domain.ProductRepository
	blobs   BlobStore
	shop    StorefrontSync
	metrics *metrics.Recorder
	logger  logger.Logger
	cfg     Config
}

// NewService cria e retorna uma nova instância do Serviço de upload.
func NewService(repo domain.ProductRepository, blobs BlobStore, shop StorefrontSync, rec *metrics.Recorder, log logger.Logger, cfg Config) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		shop:    shop,
		metrics: rec,
		logger:  log,
		cfg:     cfg,
	}
}

// GetProductByID devolve o produto digital gravado.
func (s *Service) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, apperror.NewValidationError("ID do produto é obrigatório.")
	}
	return s.repo.FindByID(ctx, id)
}

// SaveProduct cria ou atualiza um produto digital.
// Somente falhas de validação, duplicidade e persistência abortam a requisição;
// uploads, sincronização com a loja e remoção de órfãos degradam sem erro.
func (s *Service) SaveProduct(ctx context.Context, req Request) (Outcome, error) {
	incoming, err := toProduct(req.Submission)
	if err != nil {
		return Outcome{}, err
	}

	previous, err := s.loadPrevious(ctx, incoming)
	if err != nil {
		return Outcome{}, err
	}

	commonFile, variantFiles, uploadFailures := s.uploadFiles(ctx, incoming, req)

	plan := reconcile.Reconcile(reconcile.Input{
		Previous:           previous,
		Incoming:           incoming,
		NewCommonFile:      commonFile,
		NewPerVariantFiles: variantFiles,
	})

	created := previous == nil
	operation := "update"
	if created {
		operation = "create"
	}

	saved, err := s.repo.Save(ctx, plan.Product)
	if err != nil {
		s.metrics.ProductSaves.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return Outcome{}, apperror.NewValidationError(fmt.Sprintf("Produto digital %s não existe.", incoming.ID))
		}
		s.logger.Error("Falha ao gravar o produto digital; arquivos já enviados permanecem no bucket.", err)
		return Outcome{}, err
	}
	s.metrics.ProductSaves.WithLabelValues(operation, metrics.OutcomeSuccess).Inc()

	s.logger.Info("Produto digital gravado.", map[string]interface{}{
		"id":              saved.ID,
		"product_id":      saved.ExternalProductID,
		"file_mode":       saved.FileMode,
		"previous_mode":   plan.PreviousMode,
		"variants":        len(saved.Variants),
		"removed":         len(plan.RemovedVariantIDs),
		"orphans":         len(plan.OrphanKeys),
		"upload_failures": len(uploadFailures),
	})

	// O produto já está gravado: as etapas seguintes não dependem do cliente continuar conectado.
	bg := context.WithoutCancel(ctx)
	syncFailures := s.syncStorefront(bg, saved, plan.RemovedVariantIDs)
	deleteFailures := s.deleteOrphans(bg, saved.ExternalProductID, plan.OrphanKeys)

	message := "Produto digital atualizado com sucesso."
	if created {
		message = "Produto digital criado com sucesso."
	}
	if n := len(uploadFailures); n > 0 {
		message = fmt.Sprintf("%s %d arquivo(s) não puderam ser enviados.", message, n)
	}

	return Outcome{
		Message:        message,
		Product:        saved,
		Created:        created,
		UploadFailures: uploadFailures,
		SyncFailures:   syncFailures,
		DeleteFailures: deleteFailures,
	}, nil
}

// toProduct valida a submissão e a converte para o modelo de domínio.
func toProduct(sub domain.Submission) (domain.Product, error) {
	if strings.TrimSpace(sub.ProductID) == "" {
		return domain.Product{}, apperror.NewValidationError("productId é obrigatório.")
	}

	variants := make([]domain.Variant, 0, len(sub.Variants))
	seen := make(map[string]struct{}, len(sub.Variants))
	for i, v := range sub.Variants {
		if strings.TrimSpace(v.ID) == "" {
			return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("variants[%d].id é obrigatório.", i))
		}
		if _, dup := seen[v.ID]; dup {
			return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("Variante %s informada mais de uma vez.", v.ID))
		}
		seen[v.ID] = struct{}{}

		variants = append(variants, domain.Variant{
			ExternalVariantID: v.ID,
			SKU:               v.SKU,
			Title:             v.Title,
			Image:             v.Image,
			FileKey:           v.FileKey,
			FileURL:           v.FileURL,
			FileName:          v.FileName,
			FileSize:          v.FileSize,
			DownloadCount:     v.Download,
		})
	}

	return domain.Product{
		ID:                   sub.ID,
		ExternalProductID:    sub.ProductID,
		DisplayName:          sub.Title,
		Image:                sub.ProductImage,
		Status:               sub.Status,
		FileMode:             domain.ParseFileMode(sub.FileType),
		DeclaredVariantCount: sub.TotalVariants,
		Variants:             variants,
	}, nil
}

// loadPrevious faz a checagem de duplicidade e carrega o estado gravado (nil em criações).
func (s *Service) loadPrevious(ctx context.Context, incoming domain.Product) (*domain.Product, error) {
	existing, found, err := s.repo.FindByExternalProductID(ctx, incoming.ExternalProductID)
	if err != nil {
		return nil, err
	}
	if found && existing.ID != incoming.ID {
		s.logger.Debug("Produto da loja já vinculado a outro produto digital.", map[string]interface{}{
			"product_id":  incoming.ExternalProductID,
			"existing_id": existing.ID,
		})
		return nil, apperror.NewDuplicateProductError(incoming.ExternalProductID)
	}
	if incoming.ID == "" {
		return nil, nil
	}
	if found {
		return &existing, nil
	}

	previous, err := s.repo.FindByID(ctx, incoming.ID)
	if err != nil {
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return nil, apperror.NewValidationError(fmt.Sprintf("Produto digital %s não existe.", incoming.ID))
		}
		return nil, err
	}
	if previous.ExternalProductID != incoming.ExternalProductID {
		return nil, apperror.NewValidationError("productId não pode ser alterado em um produto digital existente.")
	}
	return &previous, nil
}

type uploadJob struct {
	kind      domain.FileMode
	variantID string
	file      FileUpload
}

// uploadFiles envia em paralelo (limitado) os arquivos que o modo do produto usa.
// Arquivos de outro modo ou de variantes desconhecidas são ignorados.
func (s *Service) uploadFiles(ctx context.Context, product domain.Product, req Request) (*domain.UploadedFile, map[string]domain.UploadedFile, []error) {
	var jobs []uploadJob

	if product.FileMode == domain.FileModeCommon {
		if req.CommonFile != nil {
			jobs = append(jobs, uploadJob{kind: domain.FileModeCommon, file: *req.CommonFile})
		}
		if len(req.VariantFiles) > 0 {
			s.logger.Warn("Arquivos por variante ignorados em produto de arquivo comum.", map[string]interface{}{
				"product_id": product.ExternalProductID,
				"files":      len(req.VariantFiles),
			})
		}
	} else {
		known := make(map[string]struct{}, len(product.Variants))
		for _, v := range product.Variants {
			known[v.ExternalVariantID] = struct{}{}
		}
		ids := make([]string, 0, len(req.VariantFiles))
		for id := range req.VariantFiles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				s.logger.Warn("Arquivo enviado para variante que não está na submissão.", map[string]interface{}{
					"product_id": product.ExternalProductID,
					"variant_id": id,
				})
				continue
			}
			jobs = append(jobs, uploadJob{kind: domain.FileModePerVariant, variantID: id, file: req.VariantFiles[id]})
		}
		if req.CommonFile != nil {
			s.logger.Warn("Arquivo comum ignorado em produto de arquivo por variante.", map[string]interface{}{
				"product_id": product.ExternalProductID,
			})
		}
	}

	results := make([]*domain.UploadedFile, len(jobs))
	failures := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallelism(s.cfg.MaxParallelUploads))
	for i, job := range jobs {
		g.Go(func() error {
			uploaded, err := s.put(ctx, product.ExternalProductID, job)
			if err != nil {
				s.metrics.BlobUploads.WithLabelValues(string(job.kind), metrics.OutcomeFailure).Inc()
				s.logger.Warn("Falha no upload; a variante segue sem o novo arquivo.", map[string]interface{}{
					"product_id": product.ExternalProductID,
					"variant_id": job.variantID,
					"file_name":  job.file.OriginalName,
					"error":      err.Error(),
				})
				failures[i] = err
				return nil
			}
			s.metrics.BlobUploads.WithLabelValues(string(job.kind), metrics.OutcomeSuccess).Inc()
			results[i] = &uploaded
			return nil
		})
	}
	_ = g.Wait()

	var common *domain.UploadedFile
	perVariant := make(map[string]domain.UploadedFile)
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.TargetKind == domain.FileModeCommon {
			common = r
			continue
		}
		perVariant[r.AssociatedVariantID] = *r
	}
	return common, perVariant, compact(failures)
}

func (s *Service) put(ctx context.Context, productExternalID string, job uploadJob) (domain.UploadedFile, error) {
	if job.file.Open == nil {
		return domain.UploadedFile{}, apperror.NewBlobUploadError(job.file.OriginalName, errors.New("arquivo sem conteúdo"))
	}
	body, err := job.file.Open()
	if err != nil {
		return domain.UploadedFile{}, apperror.NewBlobUploadError(job.file.OriginalName, errors.Wrap(err, "falha ao abrir o arquivo recebido"))
	}
	defer body.Close()

	return s.blobs.Put(ctx, blobstore.PutInput{
		TargetKind:          job.kind,
		AssociatedVariantID: job.variantID,
		Body:                body,
		OriginalName:        job.file.OriginalName,
		ContentType:         job.file.ContentType,
		Size:                job.file.Size,
		ProductExternalID:   productExternalID,
	})
}

// syncStorefront marca as variantes finais como digitais, devolve as removidas ao envio
// físico e aplica a tag de produto digital. Cada chamada é independente.
func (s *Service) syncStorefront(ctx context.Context, product domain.Product, removedVariantIDs []string) []error {
	var (
		mu       sync.Mutex
		failures []error
	)
	record := func(operation, target string, res storefront.Result, err error) {
		outcome := metrics.OutcomeSuccess
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailure
		case !res.Success:
			outcome = metrics.OutcomeFailure
			err = apperror.NewStorefrontSyncError(operation, target, errors.New(res.Message))
		case !res.Changed:
			outcome = metrics.OutcomeNoop
		}
		s.metrics.StorefrontOps.WithLabelValues(operation, outcome).Inc()
		if err == nil {
			return
		}

		s.logger.Warn("Falha de sincronização com a loja (não fatal).", map[string]interface{}{
			"product_id": product.ExternalProductID,
			"operation":  operation,
			"target":     target,
			"error":      err.Error(),
		})
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(parallelism(s.cfg.MaxParallelSync))

	for _, v := range product.Variants {
		g.Go(func() error {
			res, err := s.shop.SetRequiresShipping(ctx, product.ExternalProductID, v.ExternalVariantID, false)
			record("setRequiresShipping", v.ExternalVariantID, res, err)
			return nil
		})
	}
	for _, id := range removedVariantIDs {
		g.Go(func() error {
			res, err := s.shop.SetRequiresShipping(ctx, product.ExternalProductID, id, true)
			record("setRequiresShipping", id, res, err)
			return nil
		})
	}
	if s.cfg.DigitalProductTag != "" {
		g.Go(func() error {
			res, err := s.shop.MergeTags(ctx, product.ExternalProductID, []string{s.cfg.DigitalProductTag})
			record("mergeTags", product.ExternalProductID, res, err)
			return nil
		})
	}
	_ = g.Wait()

	return failures
}

// deleteOrphans apaga os blobs que nenhuma variante final referencia. Falhas só são registradas.
func (s *Service) deleteOrphans(ctx context.Context, productExternalID string, keys []string) []error {
	failures := make([]error, len(keys))

	var g errgroup.Group
	g.SetLimit(parallelism(s.cfg.MaxParallelUploads))
	for i, key := range keys {
		g.Go(func() error {
			if err := s.blobs.Delete(ctx, key); err != nil {
				s.metrics.BlobDeletes.WithLabelValues(metrics.OutcomeFailure).Inc()
				s.logger.Warn("Falha ao apagar blob órfão.", map[string]interface{}{
					"product_id": productExternalID,
					"key":        key,
					"error":      err.Error(),
				})
				failures[i] = err
				return nil
			}
			s.metrics.BlobDeletes.WithLabelValues(metrics.OutcomeSuccess).Inc()
			return nil
		})
	}
	_ = g.Wait()

	return compact(failures)
}

func parallelism(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func compact(errs []error) []error {
	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
