package metrics

import (
	"net/http/pprof"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GetHandler mounts the Prometheus scrape endpoint on router. Profiling
// endpoints are mounted only when withProfiling is set.
func GetHandler(router *gin.RouterGroup, m Manager, withProfiling bool) {
	router.GET("/metrics", runtimeGauges(m), gin.WrapH(promhttp.Handler()))

	if !withProfiling {
		return
	}
	pprofGroup := router.Group("/debug/pprof")
	{
		pprofGroup.GET("/", gin.WrapF(pprof.Index))
		pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
		pprofGroup.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofGroup.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}
}

// runtimeGauges samples the Go runtime right before each scrape.
func runtimeGauges(m Manager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)

		m.SetGauge(Goroutines, float64(runtime.NumGoroutine()))
		m.SetGauge(HeapAllocBytes, float64(stats.HeapAlloc))
		m.SetGauge(GCCycles, float64(stats.NumGC))
		m.SetGauge(SysBytes, float64(stats.Sys))

		ctx.Next()
	}
}
