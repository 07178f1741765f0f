package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"godigital/internal/domain"
	apperror "godigital/internal/errors"
)

// Store é o contrato do Blob Store usado pelo orquestrador de uploads.
type Store interface {
	Put(ctx context.Context, in PutInput) (domain.UploadedFile, error)
	Delete(ctx context.Context, key string) error
}

// PutInput descreve um arquivo a ser enviado.
type PutInput struct {
	TargetKind          domain.FileMode
	AssociatedVariantID string // Somente para domain.FileModePerVariant
	Body                io.Reader
	OriginalName        string
	ContentType         string
	Size                int64
	ProductExternalID   string
}

// ObjectAPI é o subconjunto do cliente S3 usado pelo adapter.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3StoreConfig holds configuration for S3Store.
type S3StoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // Endpoint customizado (MinIO, LocalStack)
	PublicBaseURL string // Prefixo das URLs devolvidas; vazio usa o endereço padrão do bucket
}

// S3Store implementa Store usando AWS S3 (ou compatível).
type S3Store struct {
	client ObjectAPI
	cfg    S3StoreConfig
	now    func() time.Time
}

// NewS3Store cria o cliente S3 a partir da configuração padrão da AWS.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Necessário para MinIO/LocalStack
		}
	})

	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient permite injetar o cliente (usado nos testes).
func NewS3StoreWithClient(client ObjectAPI, cfg S3StoreConfig) *S3Store {
	return &S3Store{client: client, cfg: cfg, now: time.Now}
}

// Put envia o arquivo para a chave derivada do produto, da data e do nome.
func (s *S3Store) Put(ctx context.Context, in PutInput) (domain.UploadedFile, error) {
	key := ObjectKey(in.ProductExternalID, in.OriginalName, s.now().UTC())

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        in.Body,
		ContentType: aws.String(contentType),
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return domain.UploadedFile{}, apperror.NewBlobUploadError(in.OriginalName, errors.Wrapf(err, "s3 put %s", key))
	}

	uploaded := domain.UploadedFile{
		FileRef: domain.FileRef{
			Key:  key,
			URL:  s.URL(key),
			Name: in.OriginalName,
			Size: in.Size,
		},
		TargetKind: in.TargetKind,
	}
	if in.TargetKind == domain.FileModePerVariant {
		uploaded.AssociatedVariantID = in.AssociatedVariantID
	}
	return uploaded, nil
}

// Delete remove o blob. Quem chama decide o que fazer com a falha (a limpeza é consultiva).
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperror.NewBlobDeleteError(key, errors.Wrap(err, "s3 delete"))
	}
	return nil
}

// URL devolve o endereço público do blob.
func (s *S3Store) URL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}

// WithClock troca o relógio usado para derivar as chaves.
func (s *S3Store) WithClock(now func() time.Time) *S3Store {
	s.now = now
	return s
}
