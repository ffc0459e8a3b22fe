package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/resputil"
)

type MetricsMgr struct {
	name string
	db   *gorm.DB
}

func NewMetricsMgr(conf *RegisterConfig) Manager {
	return &MetricsMgr{
		name: "metrics",
		db:   conf.DB,
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("metrics", mgr.GetMetrics)
}

func (mgr *MetricsMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterAdmin(_ *gin.RouterGroup) {}

var registry *prometheus.Registry

var promHTTPHandler http.Handler

var communitiesGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "communities_total",
		Help: "Total number of communities",
	},
)

var membershipsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "memberships_total",
		Help: "Total number of community memberships",
	},
)

var pendingEventsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Number of outbox events waiting for delivery",
	},
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
	registry = prometheus.NewRegistry()
	promHTTPHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	registry.MustRegister(communitiesGauge)
	registry.MustRegister(membershipsGauge)
	registry.MustRegister(pendingEventsGauge)
}

// GetMetrics godoc
//
//	@Summary		Prometheus metrics
//	@Description	Gauges are refreshed from the database at scrape time
//	@Tags			Metrics
//	@Produce		plain
//	@Success		200	{string}	string	"metrics exposition"
//	@Router			/v1/metrics [get]
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	var communities, memberships, pending int64
	if err := mgr.db.WithContext(c).Model(&model.Community{}).Count(&communities).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if err := mgr.db.WithContext(c).Model(&model.CommunityMember{}).Count(&memberships).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if err := mgr.db.WithContext(c).Model(&model.EventOutbox{}).
		Where("status = ?", model.EventStatusPending).
		Count(&pending).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	communitiesGauge.Set(float64(communities))
	membershipsGauge.Set(float64(memberships))
	pendingEventsGauge.Set(float64(pending))

	promHTTPHandler.ServeHTTP(c.Writer, c.Request)
}

// MetricsHandler exposes the registry for the standalone metrics
// listener. Gauges are refreshed from the database on every scrape.
func MetricsHandler(db *gorm.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var communities, memberships, pending int64
		_ = db.WithContext(r.Context()).Model(&model.Community{}).Count(&communities).Error
		_ = db.WithContext(r.Context()).Model(&model.CommunityMember{}).Count(&memberships).Error
		_ = db.WithContext(r.Context()).Model(&model.EventOutbox{}).
			Where("status = ?", model.EventStatusPending).
			Count(&pending).Error
		communitiesGauge.Set(float64(communities))
		membershipsGauge.Set(float64(memberships))
		pendingEventsGauge.Set(float64(pending))
		promHTTPHandler.ServeHTTP(w, r)
	})
}
