package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"godigital/internal/domain"
	apperror "godigital/internal/errors"
	"godigital/internal/pkg/cache"
	"godigital/internal/pkg/logger"
)

// uniqueViolation é o SQLSTATE do Postgres para violação de índice único.
const uniqueViolation = "23505"

const productCacheKey = "digital-product:%s"

// ProductRepository implementa domain.ProductRepository sobre uma tabela de documentos
// (JSONB) no PostgreSQL, com cache-aside no Redis para leituras por ID.
type ProductRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	Logger    logger.Logger
	now       func() time.Time
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		Logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock troca o relógio usado para CreatedAt/UpdatedAt.
func (r *ProductRepository) WithClock(now func() time.Time) *ProductRepository {
	r.now = now
	return r
}

// Save cria o documento quando product.ID está vazio, ou substitui o documento existente.
// O documento inteiro (incluindo variantes) é gravado em uma única instrução.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	now := r.now()
	product.UpdatedAt = now
	creating := product.ID == ""
	if creating {
		product.ID = uuid.NewString()
		product.CreatedAt = now
	}

	document, err := json.Marshal(product)
	if err != nil {
		return domain.Product{}, apperror.NewInternalError("falha ao serializar o produto", err)
	}

	if creating {
		const insertSQL = `INSERT INTO digital_products (id, product_id, document, created_at, updated_at)
                           VALUES ($1, $2, $3, $4, $5)`

		_, err = r.DB.ExecContext(ctxTimeout, insertSQL,
			product.ID, product.ExternalProductID, document, product.CreatedAt, product.UpdatedAt)
		if err != nil {
			return domain.Product{}, r.translateWriteError(product, err, "falha ao inserir produto")
		}
		return product, nil
	}

	const updateSQL = `UPDATE digital_products
                       SET product_id = $2, document = $3, updated_at = $4
                       WHERE id = $1`

	res, err := r.DB.ExecContext(ctxTimeout, updateSQL,
		product.ID, product.ExternalProductID, document, product.UpdatedAt)
	if err != nil {
		return domain.Product{}, r.translateWriteError(product, err, "falha ao atualizar produto")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Product{}, apperror.NewDBError("falha ao ler linhas afetadas", err)
	}
	if affected == 0 {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", product.ID))
	}

	if err := r.Cache.Delete(ctxTimeout, fmt.Sprintf(productCacheKey, product.ID)); err != nil {
		r.Logger.Warn("Falha ao invalidar o cache do produto.", map[string]interface{}{
			"product_id": product.ID,
			"error":      err.Error(),
		})
	}
	return product, nil
}

func (r *ProductRepository) translateWriteError(product domain.Product, err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperror.NewDuplicateProductError(product.ExternalProductID)
	}
	return apperror.NewDBError(msg, errors.Wrapf(err, "produto %s", product.ExternalProductID))
}

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	notFound := apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, notFound
	}

	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	cached, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		if json.Unmarshal([]byte(cached), &product) == nil {
			return product, nil
		}
		r.Logger.Warn("Documento inválido no cache; lendo do DB.", map[string]interface{}{"product_id": id})
	} else if err != cache.ErrCacheMiss {
		r.Logger.Warn("Falha ao ler do cache Redis.", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
	}

	const selectSQL = `SELECT id, document, created_at, updated_at FROM digital_products WHERE id = $1`

	product, err = scanProduct(r.DB.QueryRowContext(ctxTimeout, selectSQL, id))
	if err == sql.ErrNoRows {
		return domain.Product{}, notFound
	}
	if err != nil {
		return domain.Product{}, apperror.NewDBError("Falha ao buscar produto no DB", err)
	}

	if payload, marshalErr := json.Marshal(product); marshalErr == nil {
		if setErr := r.Cache.Set(ctxTimeout, key, payload, r.CacheTTL); setErr != nil {
			r.Logger.Warn("Falha ao gravar produto no cache.", map[string]interface{}{
				"product_id": id,
				"error":      setErr.Error(),
			})
		}
	}

	return product, nil
}

// FindByExternalProductID busca pelo ID do produto na loja. Usado na checagem de duplicidade.
func (r *ProductRepository) FindByExternalProductID(ctx context.Context, externalProductID string) (domain.Product, bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const selectSQL = `SELECT id, document, created_at, updated_at FROM digital_products WHERE product_id = $1`

	product, err := scanProduct(r.DB.QueryRowContext(ctxTimeout, selectSQL, externalProductID))
	if err == sql.ErrNoRows {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, apperror.NewDBError("Falha ao buscar produto pelo ID da loja", err)
	}
	return product, true, nil
}

// scanProduct decodifica o documento e sobrepõe as colunas gerenciadas pelo banco.
func scanProduct(row *sql.Row) (domain.Product, error) {
	var (
		product   domain.Product
		id        string
		document  []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &document, &createdAt, &updatedAt); err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(document, &product); err != nil {
		return domain.Product{}, errors.Wrapf(err, "documento inválido para o produto %s", id)
	}
	product.ID = id
	product.CreatedAt = createdAt
	product.UpdatedAt = updatedAt
	return product, nil
}
