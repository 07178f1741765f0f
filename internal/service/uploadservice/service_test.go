package uploadservice_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"godigital/internal/domain"
	apperror "godigital/internal/errors"
	"godigital/internal/pkg/blobstore"
	"godigital/internal/pkg/logger"
	"godigital/internal/pkg/metrics"
	"godigital/internal/service/storefront"
	"godigital/internal/service/uploadservice"
)

// --- Mocks ---

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	args := m.Called(ctx, product)
	if fn, ok := args.Get(0).(func(domain.Product) domain.Product); ok {
		return fn(product), args.Error(1)
	}
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByExternalProductID(ctx context.Context, externalProductID string) (domain.Product, bool, error) {
	args := m.Called(ctx, externalProductID)
	return args.Get(0).(domain.Product), args.Bool(1), args.Error(2)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, in blobstore.PutInput) (domain.UploadedFile, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.UploadedFile), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockStorefront struct {
	mock.Mock
}

func (m *MockStorefront) SetRequiresShipping(ctx context.Context, productExternalID, variantExternalID string, requiresShipping bool) (storefront.Result, error) {
	args := m.Called(ctx, productExternalID, variantExternalID, requiresShipping)
	return args.Get(0).(storefront.Result), args.Error(1)
}

func (m *MockStorefront) MergeTags(ctx context.Context, productExternalID string, tagsToAdd []string) (storefront.Result, error) {
	args := m.Called(ctx, productExternalID, tagsToAdd)
	return args.Get(0).(storefront.Result), args.Error(1)
}

// --- Helpers ---

const productGID = "gid://shopify/Product/42"

type fixture struct {
	repo  *MockProductRepository
	blobs *MockBlobStore
	shop  *MockStorefront
	svc   *uploadservice.Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  new(MockProductRepository),
		blobs: new(MockBlobStore),
		shop:  new(MockStorefront),
	}
	f.svc = uploadservice.NewService(f.repo, f.blobs, f.shop, metrics.NewRecorder(), logger.NewLogger("error"), uploadservice.Config{
		DigitalProductTag:  "digital-product",
		MaxParallelUploads: 2,
		MaxParallelSync:    2,
	})
	return f
}

// echoSave devolve o produto recebido com o ID informado.
func echoSave(id string) func(domain.Product) domain.Product {
	return func(p domain.Product) domain.Product {
		p.ID = id
		return p
	}
}

func fileUpload(name string) uploadservice.FileUpload {
	return uploadservice.FileUpload{
		OriginalName: name,
		ContentType:  "application/pdf",
		Size:         4,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data")), nil
		},
	}
}

func uploaded(key string, kind domain.FileMode, variantID string) domain.UploadedFile {
	return domain.UploadedFile{
		FileRef:             domain.FileRef{Key: key, URL: "https://cdn.example.com/" + key, Name: key, Size: 4},
		TargetKind:          kind,
		AssociatedVariantID: variantID,
	}
}

func shippingOK() storefront.Result { return storefront.Result{Success: true, Changed: true} }

func keysOf(variants []domain.Variant) []string {
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		keys = append(keys, v.FileKey)
	}
	return keys
}

// --- Tests ---

func TestSaveProduct_CreateCommonWithUpload(t *testing.T) {
	f := newFixture()
	common := fileUpload("Guia Prático.pdf")

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.blobs.On("Put", mock.Anything, mock.MatchedBy(func(in blobstore.PutInput) bool {
		return in.TargetKind == domain.FileModeCommon && in.ProductExternalID == productGID && in.OriginalName == "Guia Prático.pdf"
	})).Return(uploaded("k2", domain.FileModeCommon, ""), nil)
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return p.ID == "" && len(p.Variants) == 1 && p.Variants[0].FileKey == "k2" && p.Variants[0].Title == "Ebook"
	})).Return(echoSave("new-id"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v1", false).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, []string{"digital-product"}).Return(shippingOK(), nil)

	out, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{
			ProductID: productGID,
			Title:     "Ebook",
			FileType:  "commonFile",
			Variants:  []domain.SubmissionVariant{{ID: "v1", SKU: "EB-1"}},
		},
		CommonFile: &common,
	})

	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, "new-id", out.Product.ID)
	assert.Equal(t, "Produto digital criado com sucesso.", out.Message)
	assert.Empty(t, out.UploadFailures)
	assert.Empty(t, out.SyncFailures)
	f.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
	f.shop.AssertExpectations(t)
}

func TestSaveProduct_DuplicateStopsBeforeUploads(t *testing.T) {
	f := newFixture()
	common := fileUpload("a.pdf")

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).
		Return(domain.Product{ID: "other-id", ExternalProductID: productGID}, true, nil)

	_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{ProductID: productGID, FileType: "commonFile", Variants: []domain.SubmissionVariant{{ID: "v1"}}},
		CommonFile: &common,
	})

	var dup *apperror.DuplicateProductError
	require.ErrorAs(t, err, &dup)
	f.blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSaveProduct_SwitchCommonToPerVariantKeepsSharedFile(t *testing.T) {
	f := newFixture()
	previous := domain.Product{
		ID:                "p-1",
		ExternalProductID: productGID,
		FileMode:          domain.FileModeCommon,
		Variants: []domain.Variant{
			{ExternalVariantID: "v1", FileKey: "k1"},
			{ExternalVariantID: "v2", FileKey: "k1"},
			{ExternalVariantID: "v3", FileKey: "k1"},
		},
	}

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(previous, true, nil)
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return p.FileMode == domain.FileModePerVariant && assert.ObjectsAreEqual([]string{"k1", "k1"}, keysOf(p.Variants))
	})).Return(echoSave("p-1"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v1", false).Return(shippingOK(), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v2", false).Return(shippingOK(), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v3", true).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, mock.Anything).Return(storefront.Result{Success: true}, nil)

	out, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{
			ID:        "p-1",
			ProductID: productGID,
			FileType:  "variantFile",
			Variants:  []domain.SubmissionVariant{{ID: "v1"}, {ID: "v2"}},
		},
	})

	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, "Produto digital atualizado com sucesso.", out.Message)
	f.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.shop.AssertExpectations(t)
}

func TestSaveProduct_ReplacedFileIsDeleted(t *testing.T) {
	f := newFixture()
	previous := domain.Product{
		ID:                "p-1",
		ExternalProductID: productGID,
		FileMode:          domain.FileModePerVariant,
		Variants: []domain.Variant{
			{ExternalVariantID: "v1", FileKey: "k1"},
			{ExternalVariantID: "v2", FileKey: "k2"},
		},
	}

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(previous, true, nil)
	f.blobs.On("Put", mock.Anything, mock.MatchedBy(func(in blobstore.PutInput) bool {
		return in.TargetKind == domain.FileModePerVariant && in.AssociatedVariantID == "v1"
	})).Return(uploaded("k3", domain.FileModePerVariant, "v1"), nil)
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return assert.ObjectsAreEqual([]string{"k3", "k2"}, keysOf(p.Variants))
	})).Return(echoSave("p-1"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, mock.Anything, false).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, mock.Anything).Return(shippingOK(), nil)
	f.blobs.On("Delete", mock.Anything, "k1").Return(apperror.NewBlobDeleteError("k1", errors.New("access denied")))

	out, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{
			ID:        "p-1",
			ProductID: productGID,
			FileType:  "variantFile",
			Variants:  []domain.SubmissionVariant{{ID: "v1", FileKey: "k1"}, {ID: "v2", FileKey: "k2"}},
		},
		VariantFiles: map[string]uploadservice.FileUpload{"v1": fileUpload("novo.pdf")},
	})

	require.NoError(t, err)
	require.Len(t, out.DeleteFailures, 1)
	var delErr *apperror.BlobDeleteError
	assert.ErrorAs(t, out.DeleteFailures[0], &delErr)
	f.blobs.AssertExpectations(t)
}

func TestSaveProduct_UploadFailureIsNonFatal(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.blobs.On("Put", mock.Anything, mock.Anything).
		Return(domain.UploadedFile{}, apperror.NewBlobUploadError("a.pdf", errors.New("timeout")))
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return len(p.Variants) == 2 && !p.Variants[0].HasFile() && !p.Variants[1].HasFile()
	})).Return(echoSave("new-id"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, mock.Anything, false).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, mock.Anything).Return(shippingOK(), nil)

	out, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{
			ProductID: productGID,
			FileType:  "variantFile",
			Variants:  []domain.SubmissionVariant{{ID: "v1"}, {ID: "v2"}},
		},
		VariantFiles: map[string]uploadservice.FileUpload{"v1": fileUpload("a.pdf")},
	})

	require.NoError(t, err)
	assert.Len(t, out.UploadFailures, 1)
	assert.Contains(t, out.Message, "1 arquivo(s) não puderam ser enviados")
}

func TestSaveProduct_IgnoresFilesOfUnknownVariants(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.repo.On("Save", mock.Anything, mock.Anything).Return(echoSave("new-id"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v1", false).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, mock.Anything).Return(shippingOK(), nil)

	common := fileUpload("comum.pdf")
	_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{
			ProductID: productGID,
			FileType:  "variantFile",
			Variants:  []domain.SubmissionVariant{{ID: "v1"}},
		},
		CommonFile:   &common,
		VariantFiles: map[string]uploadservice.FileUpload{"v9": fileUpload("x.pdf")},
	})

	require.NoError(t, err)
	f.blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSaveProduct_PersistenceFailureAborts(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.repo.On("Save", mock.Anything, mock.Anything).
		Return(domain.Product{}, apperror.NewDBError("falha ao inserir produto", errors.New("connection reset")))

	_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{ProductID: productGID, Variants: []domain.SubmissionVariant{{ID: "v1"}}},
	})

	var pe *apperror.PersistenceError
	require.ErrorAs(t, err, &pe)
	f.shop.AssertNotCalled(t, "SetRequiresShipping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.shop.AssertNotCalled(t, "MergeTags", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveProduct_StorefrontFailuresAreCollected(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.repo.On("Save", mock.Anything, mock.Anything).Return(echoSave("new-id"), nil)
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v1", false).
		Return(storefront.Result{}, apperror.NewStorefrontSyncError("setRequiresShipping", "v1", errors.New("status 502")))
	f.shop.On("SetRequiresShipping", mock.Anything, productGID, "v2", false).Return(shippingOK(), nil)
	f.shop.On("MergeTags", mock.Anything, productGID, mock.Anything).
		Return(storefront.Result{Success: false, Message: "produto não encontrado na loja"}, nil)

	out, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{ProductID: productGID, Variants: []domain.SubmissionVariant{{ID: "v1"}, {ID: "v2"}}},
	})

	require.NoError(t, err)
	assert.Len(t, out.SyncFailures, 2)
	for _, e := range out.SyncFailures {
		var syncErr *apperror.StorefrontSyncError
		assert.ErrorAs(t, e, &syncErr)
	}
}

func TestSaveProduct_Validation(t *testing.T) {
	cases := map[string]domain.Submission{
		"productId ausente":   {Variants: []domain.SubmissionVariant{{ID: "v1"}}},
		"variante sem id":     {ProductID: productGID, Variants: []domain.SubmissionVariant{{ID: ""}}},
		"variante duplicada":  {ProductID: productGID, Variants: []domain.SubmissionVariant{{ID: "v1"}, {ID: "v1"}}},
		"productId em branco": {ProductID: "   "},
	}
	for name, sub := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{Submission: sub})

			var ve *apperror.ValidationError
			assert.ErrorAs(t, err, &ve)
			f.repo.AssertNotCalled(t, "FindByExternalProductID", mock.Anything, mock.Anything)
		})
	}
}

func TestSaveProduct_UnknownIDIsValidationError(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, productGID).Return(domain.Product{}, false, nil)
	f.repo.On("FindByID", mock.Anything, "missing").Return(domain.Product{}, apperror.NewNotFoundError("missing"))

	_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{ID: "missing", ProductID: productGID},
	})

	var ve *apperror.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSaveProduct_ExternalIDCannotChange(t *testing.T) {
	f := newFixture()

	f.repo.On("FindByExternalProductID", mock.Anything, "gid://shopify/Product/7").Return(domain.Product{}, false, nil)
	f.repo.On("FindByID", mock.Anything, "p-1").Return(domain.Product{ID: "p-1", ExternalProductID: productGID}, nil)

	_, err := f.svc.SaveProduct(context.Background(), uploadservice.Request{
		Submission: domain.Submission{ID: "p-1", ProductID: "gid://shopify/Product/7"},
	})

	var ve *apperror.ValidationError
	assert.ErrorAs(t, err, &ve)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestGetProductByID(t *testing.T) {
	f := newFixture()
	f.repo.On("FindByID", mock.Anything, "p-1").Return(domain.Product{ID: "p-1"}, nil)

	p, err := f.svc.GetProductByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)

	_, err = f.svc.GetProductByID(context.Background(), " ")
	var ve *apperror.ValidationError
	assert.ErrorAs(t, err, &ve)
}
