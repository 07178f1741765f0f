package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados usados como label "outcome".
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// Recorder agrupa os contadores do serviço de produtos digitais.
type Recorder struct {
	registry *prometheus.Registry

	BlobUploads   *prometheus.CounterVec // labels: target, outcome
	BlobDeletes   *prometheus.CounterVec // labels: outcome
	ProductSaves  *prometheus.CounterVec // labels: operation, outcome
	StorefrontOps *prometheus.CounterVec // labels: operation, outcome
}

// NewRecorder registra os contadores em um registry próprio.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		BlobUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "godigital",
			Name:      "blob_uploads_total",
			Help:      "Uploads de arquivos para o blob store.",
		}, []string{"target", "outcome"}),
		BlobDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "godigital",
			Name:      "blob_deletes_total",
			Help:      "Remoções de blobs órfãos.",
		}, []string{"outcome"}),
		ProductSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "godigital",
			Name:      "product_saves_total",
			Help:      "Gravações de produtos digitais.",
		}, []string{"operation", "outcome"}),
		StorefrontOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "godigital",
			Name:      "storefront_operations_total",
			Help:      "Chamadas de sincronização com a loja.",
		}, []string{"operation", "outcome"}),
	}
}

// Handler expõe os contadores no formato do Prometheus.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
