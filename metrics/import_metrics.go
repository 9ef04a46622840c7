// Package metrics exposes Prometheus metrics for archive imports.
package metrics

import (
	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ImportMetrics counts import outcomes. It implements services.ImportObserver.
type ImportMetrics struct {
	importsTotal    *prometheus.CounterVec
	membersImported prometheus.Counter
	membersSkipped  *prometheus.CounterVec
	imagesPerImport prometheus.Histogram
}

// NewImportMetrics registers the import metrics with reg.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	factory := promauto.With(reg)
	return &ImportMetrics{
		importsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imagestore_imports_total",
			Help: "Archive imports by outcome.",
		}, []string{"status"}),
		membersImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagestore_import_members_imported_total",
			Help: "Archive members stored as images.",
		}),
		membersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imagestore_import_members_skipped_total",
			Help: "Archive members skipped, by reason.",
		}, []string{"reason"}),
		imagesPerImport: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagestore_import_images",
			Help:    "Images created per completed import.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}

func (m *ImportMetrics) MemberImported(_ string, _ *models.Album, _ *models.Image) {
	m.membersImported.Inc()
}

func (m *ImportMetrics) MemberSkipped(_ string, member services.SkippedMember) {
	m.membersSkipped.WithLabelValues(string(member.Reason)).Inc()
}

func (m *ImportMetrics) ImportFinished(_ string, result *services.ImportResult, err error) {
	if err != nil {
		m.importsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.importsTotal.WithLabelValues("done").Inc()
	if result != nil {
		m.imagesPerImport.Observe(float64(len(result.Images)))
	}
}

var _ services.ImportObserver = (*ImportMetrics)(nil)
