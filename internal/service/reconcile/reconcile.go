// Package reconcile decide, para cada variante de um produto digital, qual arquivo ela
// deve referenciar depois de uma gravação, quais blobs ficaram órfãos e quais variantes
// deixaram de existir. O pacote é puro: não faz I/O e não guarda estado.
package reconcile

import (
	"godigital/internal/domain"
)

// Input agrupa o estado anterior, a submissão e os uploads desta requisição.
type Input struct {
	// Previous é o produto gravado anteriormente; nil em uma criação.
	Previous *domain.Product
	// Incoming é a submissão já convertida para o modelo de domínio. Os campos de
	// arquivo das variantes são os valores enviados pelo cliente (podem repetir os antigos).
	Incoming domain.Product
	// NewCommonFile é o upload para o modo comum, se houver.
	NewCommonFile *domain.UploadedFile
	// NewPerVariantFiles mapeia o ID externo da variante para o seu upload.
	NewPerVariantFiles map[string]domain.UploadedFile
}

// Reconcile calcula o estado final do produto.
//
// Regras por variante (a primeira que se aplica vence):
//  1. modo comum com upload comum novo: todas recebem o upload;
//  2. modo por variante com upload para a variante: ela recebe o upload;
//  3. troca de modo sem nenhum upload para o modo novo: o primeiro arquivo anterior
//     é herdado (em comum -> por variante, um valor explícito enviado tem precedência);
//  4. caso contrário: o valor enviado, senão o valor gravado para a mesma variante,
//     senão vazio.
func Reconcile(in Input) domain.ReconcilePlan {
	newMode := in.Incoming.FileMode
	if newMode == "" {
		newMode = domain.FileModePerVariant
	}
	prevMode := PreviousMode(in.Previous)

	var prevVariants []domain.Variant
	if in.Previous != nil {
		prevVariants = in.Previous.Variants
	}
	prevByID := indexByID(prevVariants)

	// Verificado uma única vez por requisição, não por variante.
	var inherited *domain.FileRef
	if prevMode != "" && prevMode != newMode && !hasUploadFor(newMode, in) {
		inherited = firstFile(prevVariants)
	}

	finalized := make([]domain.Variant, 0, len(in.Incoming.Variants))
	for _, v := range in.Incoming.Variants {
		prev, hadPrev := prevByID[v.ExternalVariantID]

		switch {
		case newMode == domain.FileModeCommon && in.NewCommonFile != nil:
			v = v.WithFile(in.NewCommonFile.FileRef)
		case newMode == domain.FileModePerVariant && hasVariantUpload(in.NewPerVariantFiles, v.ExternalVariantID):
			v = v.WithFile(in.NewPerVariantFiles[v.ExternalVariantID].FileRef)
		case inherited != nil && (newMode == domain.FileModeCommon || !v.HasFile()):
			v = v.WithFile(*inherited)
		case v.HasFile():
			// Valor explícito enviado pelo cliente: mantido como veio.
		case hadPrev:
			v = v.WithFile(prev.File())
		default:
			v = v.WithFile(domain.FileRef{})
		}

		// O contador de downloads pertence a outro serviço e nunca diminui aqui.
		if hadPrev && prev.DownloadCount > v.DownloadCount {
			v.DownloadCount = prev.DownloadCount
		}
		finalized = append(finalized, v)
	}

	product := in.Incoming
	product.FileMode = newMode
	product.Variants = finalized
	if len(finalized) == 1 {
		product.Variants[0].Title = product.DisplayName
		product.Variants[0].Image = product.Image
	}
	if in.Previous != nil {
		product.ID = in.Previous.ID
		product.CreatedAt = in.Previous.CreatedAt
	}

	return domain.ReconcilePlan{
		Product:           product,
		PreviousMode:      prevMode,
		OrphanKeys:        OrphanKeys(prevVariants, finalized),
		RemovedVariantIDs: RemovedVariantIDs(prevVariants, finalized),
	}
}

// PreviousMode devolve o modo gravado do produto anterior. Registros antigos sem o
// campo têm o modo inferido a partir das chaves das variantes.
func PreviousMode(previous *domain.Product) domain.FileMode {
	if previous == nil {
		return ""
	}
	if previous.FileMode != "" {
		return previous.FileMode
	}
	return InferFileMode(previous.Variants)
}

// InferFileMode considera comum quando todas as variantes compartilham a mesma chave
// não vazia (uma única variante com arquivo conta como comum).
func InferFileMode(variants []domain.Variant) domain.FileMode {
	if len(variants) == 0 || variants[0].FileKey == "" {
		return domain.FileModePerVariant
	}
	key := variants[0].FileKey
	for _, v := range variants[1:] {
		if v.FileKey != key {
			return domain.FileModePerVariant
		}
	}
	return domain.FileModeCommon
}

// OrphanKeys devolve as chaves referenciadas antes que não são mais referenciadas
// por nenhuma variante final, na ordem em que aparecem no estado anterior.
func OrphanKeys(previous, finalized []domain.Variant) []string {
	live := make(map[string]struct{}, len(finalized))
	for _, v := range finalized {
		if v.FileKey != "" {
			live[v.FileKey] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var orphans []string
	for _, v := range previous {
		if v.FileKey == "" {
			continue
		}
		if _, ok := live[v.FileKey]; ok {
			continue
		}
		if _, ok := seen[v.FileKey]; ok {
			continue
		}
		seen[v.FileKey] = struct{}{}
		orphans = append(orphans, v.FileKey)
	}
	return orphans
}

// RemovedVariantIDs devolve, uma única vez cada, as variantes anteriores ausentes da lista final.
func RemovedVariantIDs(previous, finalized []domain.Variant) []string {
	kept := indexByID(finalized)

	seen := make(map[string]struct{})
	var removed []string
	for _, v := range previous {
		if _, ok := kept[v.ExternalVariantID]; ok {
			continue
		}
		if _, ok := seen[v.ExternalVariantID]; ok {
			continue
		}
		seen[v.ExternalVariantID] = struct{}{}
		removed = append(removed, v.ExternalVariantID)
	}
	return removed
}

func hasUploadFor(mode domain.FileMode, in Input) bool {
	if mode == domain.FileModeCommon {
		return in.NewCommonFile != nil
	}
	return len(in.NewPerVariantFiles) > 0
}

func hasVariantUpload(files map[string]domain.UploadedFile, variantID string) bool {
	_, ok := files[variantID]
	return ok
}

// firstFile devolve o arquivo da primeira variante (na ordem gravada) que tem chave.
func firstFile(variants []domain.Variant) *domain.FileRef {
	for _, v := range variants {
		if v.HasFile() {
			f := v.File()
			return &f
		}
	}
	return nil
}

func indexByID(variants []domain.Variant) map[string]domain.Variant {
	idx := make(map[string]domain.Variant, len(variants))
	for _, v := range variants {
		if _, dup := idx[v.ExternalVariantID]; !dup {
			idx[v.ExternalVariantID] = v
		}
	}
	return idx
}
