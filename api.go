package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (robo *Robot) api(ctx context.Context, listen string, mux *http.ServeMux, metrics []prometheus.Collector) error {
	robo.routes(mux, metrics)
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// routes registers the API's handlers on mux.
func (robo *Robot) routes(mux *http.ServeMux, metrics []prometheus.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/gogc:percent|/gc/gomemlimit:bytes|/gc/heap/allocs:bytes|/gc/heap/goal:bytes|/memory/classes/total:bytes|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	for _, m := range metrics {
		if m != nil {
			reg.MustRegister(m)
		}
	}
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /api/colors", robo.apiColors)
	mux.HandleFunc("GET /api/colors/{guild}", robo.apiGuildColors)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

type apiColor struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Role    string `json:"role"`
	// Members is the number of members holding the color, when known.
	Members *int `json:"members,omitzero"`
}

type apiColors struct {
	Group  string     `json:"group"`
	Data   []apiColor `json:"data"`
	Status int        `json:"status"`
}

func (robo *Robot) colors() apiColors {
	e := robo.group.Entries()
	u := apiColors{
		Group:  robo.group.Name(),
		Data:   make([]apiColor, len(e)),
		Status: http.StatusOK,
	}
	for i, v := range e {
		u.Data[i] = apiColor{Name: v.Name, Display: v.Display(), Role: v.Role}
	}
	return u
}

func (robo *Robot) apiColors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "colors"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	u := robo.colors()
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

// apiGuildColors lists the colors along with the number of members of a guild
// holding each.
func (robo *Robot) apiGuildColors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "guild-colors"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	guild := r.PathValue("guild")
	if len(robo.guilds) != 0 && !robo.guilds[guild] {
		log.WarnContext(ctx, "unknown guild", slog.String("guild", guild))
		jsonerror(w, http.StatusNotFound, "unknown guild")
		return
	}
	members, err := robo.dir.Members(ctx, guild)
	if err != nil {
		log.ErrorContext(ctx, "couldn't list members", slog.String("guild", guild), slog.Any("err", err))
		jsonerror(w, http.StatusBadGateway, "couldn't list members")
		return
	}
	u := robo.colors()
	counts := make([]int, len(u.Data))
	for _, m := range members {
		for i, c := range u.Data {
			for _, role := range m.Roles {
				if role == c.Role {
					counts[i]++
				}
			}
		}
	}
	for i := range u.Data {
		u.Data[i].Members = &counts[i]
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}
