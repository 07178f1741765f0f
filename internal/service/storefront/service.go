package storefront

import (
	"context"
	"sort"

	apperror "godigital/internal/errors"
	"godigital/internal/pkg/logger"
	"godigital/internal/pkg/shopify"
)

// GraphQLClient define o contrato que o serviço espera do transporte GraphQL.
type GraphQLClient interface {
	Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error
}

// Result é o resultado não fatal de uma operação na loja.
// Success=false indica uma falha de negócio (variante inexistente, userErrors);
// falhas de transporte vêm como error.
type Result struct {
	Success bool     `json:"success"`
	Changed bool     `json:"changed"`
	Message string   `json:"message,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Service sincroniza as flags de envio e as tags do produto na loja.
type Service struct {
	client GraphQLClient
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de sincronização.
func NewService(client GraphQLClient, logger logger.Logger) *Service {
	return &Service{client: client, logger: logger}
}

const variantInventoryQuery = `query VariantInventory($id: ID!) {
  productVariant(id: $id) {
    id
    product { id }
    inventoryItem { id requiresShipping }
  }
}`

const inventoryItemUpdateMutation = `mutation InventoryItemUpdate($id: ID!, $input: InventoryItemInput!) {
  inventoryItemUpdate(id: $id, input: $input) {
    inventoryItem { id requiresShipping }
    userErrors { field message }
  }
}`

type variantInventoryData struct {
	ProductVariant *struct {
		ID      string `json:"id"`
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
		InventoryItem *struct {
			ID               string `json:"id"`
			RequiresShipping bool   `json:"requiresShipping"`
		} `json:"inventoryItem"`
	} `json:"productVariant"`
}

type inventoryItemUpdateData struct {
	InventoryItemUpdate struct {
		UserErrors []shopify.UserError `json:"userErrors"`
	} `json:"inventoryItemUpdate"`
}

// SetRequiresShipping alinha a flag "requires shipping" do item de estoque da variante.
// Não faz a mutation se o valor já for o desejado.
func (s *Service) SetRequiresShipping(ctx context.Context, productExternalID, variantExternalID string, requiresShipping bool) (Result, error) {
	productGID := shopify.GID("Product", productExternalID)
	variantGID := shopify.GID("ProductVariant", variantExternalID)

	var lookup variantInventoryData
	if err := s.client.Do(ctx, variantInventoryQuery, map[string]interface{}{"id": variantGID}, &lookup); err != nil {
		return Result{}, apperror.NewStorefrontSyncError("setRequiresShipping", variantGID, err)
	}

	v := lookup.ProductVariant
	if v == nil {
		return Result{Success: false, Message: "variante não encontrada na loja"}, nil
	}
	if v.Product.ID != "" && v.Product.ID != productGID {
		return Result{Success: false, Message: "variante não pertence ao produto informado"}, nil
	}
	if v.InventoryItem == nil {
		return Result{Success: false, Message: "item de estoque da variante não encontrado"}, nil
	}
	if v.InventoryItem.RequiresShipping == requiresShipping {
		return Result{Success: true, Changed: false}, nil
	}

	var update inventoryItemUpdateData
	vars := map[string]interface{}{
		"id":    v.InventoryItem.ID,
		"input": map[string]interface{}{"requiresShipping": requiresShipping},
	}
	if err := s.client.Do(ctx, inventoryItemUpdateMutation, vars, &update); err != nil {
		return Result{}, apperror.NewStorefrontSyncError("setRequiresShipping", variantGID, err)
	}
	if errs := update.InventoryItemUpdate.UserErrors; len(errs) > 0 {
		return Result{Success: false, Message: shopify.JoinUserErrors(errs)}, nil
	}

	s.logger.Debug("Flag de envio atualizada na loja.", map[string]interface{}{
		"variant_id":        variantGID,
		"requires_shipping": requiresShipping,
	})
	return Result{Success: true, Changed: true}, nil
}

const productTagsQuery = `query ProductTags($id: ID!) {
  product(id: $id) { id tags }
}`

const productTagsUpdateMutation = `mutation ProductTagsUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id tags }
    userErrors { field message }
  }
}`

type productTagsData struct {
	Product *struct {
		ID   string   `json:"id"`
		Tags []string `json:"tags"`
	} `json:"product"`
}

type productUpdateData struct {
	ProductUpdate struct {
		UserErrors []shopify.UserError `json:"userErrors"`
	} `json:"productUpdate"`
}

// MergeTags une as tags atuais do produto com tagsToAdd e grava somente se houver diferença.
func (s *Service) MergeTags(ctx context.Context, productExternalID string, tagsToAdd []string) (Result, error) {
	productGID := shopify.GID("Product", productExternalID)

	var current productTagsData
	if err := s.client.Do(ctx, productTagsQuery, map[string]interface{}{"id": productGID}, &current); err != nil {
		return Result{}, apperror.NewStorefrontSyncError("mergeTags", productGID, err)
	}
	if current.Product == nil {
		return Result{Success: false, Message: "produto não encontrado na loja"}, nil
	}

	merged, changed := unionTags(current.Product.Tags, tagsToAdd)
	if !changed {
		return Result{Success: true, Changed: false, Tags: current.Product.Tags}, nil
	}

	var update productUpdateData
	vars := map[string]interface{}{
		"input": map[string]interface{}{"id": productGID, "tags": merged},
	}
	if err := s.client.Do(ctx, productTagsUpdateMutation, vars, &update); err != nil {
		return Result{}, apperror.NewStorefrontSyncError("mergeTags", productGID, err)
	}
	if errs := update.ProductUpdate.UserErrors; len(errs) > 0 {
		return Result{Success: false, Message: shopify.JoinUserErrors(errs)}, nil
	}

	s.logger.Debug("Tags do produto atualizadas na loja.", map[string]interface{}{
		"product_id": productGID,
		"tags":       merged,
	})
	return Result{Success: true, Changed: true, Tags: merged}, nil
}

// unionTags devolve a união ordenada e informa se ela difere do conjunto atual.
func unionTags(current, toAdd []string) ([]string, bool) {
	set := make(map[string]struct{}, len(current)+len(toAdd))
	for _, t := range current {
		set[t] = struct{}{}
	}
	before := len(set)
	for _, t := range toAdd {
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	if len(set) == before {
		return current, false
	}

	merged := make([]string, 0, len(set))
	for t := range set {
		merged = append(merged, t)
	}
	sort.Strings(merged)
	return merged, true
}
