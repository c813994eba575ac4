package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"

	"github.com/SyedAnees21/spatial/featureflag"
	spatialhttp "github.com/SyedAnees21/spatial/http"
	"github.com/SyedAnees21/spatial/server"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatial_info",
		Help:        "Spatial server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This keeps the config struct keys readable for the cli package when the
// binary is built with obfuscation.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr         string       `cli:""        env:"SPATIAL_ADDR"          help:"Listening address for client connections."`
	AdminAddr    string       `cli:""        env:"SPATIAL_ADMIN_ADDR"    help:"Admin listening address."`
	LogLevel     string       `cli:""        env:"SPATIAL_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogIndent    bool         `cli:""        env:"SPATIAL_LOG_INDENT"    help:"Indent logs."`
	Space        spaceConfig  `cli:",hidden" env:"-"                     help:"Indexed space configuration."`
	Grid         gridConfig   `cli:",hidden" env:"-"                     help:"Hash grid configuration."`
	Events       eventsConfig `cli:",hidden" env:"-"                     help:"Event pusher configuration."`
	FeatureFlags []string     `cli:",hidden" env:"SPATIAL_FEATURE_FLAGS" help:"Comma separated feature flags."`
	Version      bool         `cli:""        env:"-"                     help:"Show version."`
	Help         bool         `cli:""        env:"-"                     help:"Show help."`
}

type spaceConfig struct {
	MinX         float64 `cli:",hidden" env:"SPATIAL_SPACE_MIN_X"         help:"Lower X bound of the indexed space."`
	MinY         float64 `cli:",hidden" env:"SPATIAL_SPACE_MIN_Y"         help:"Lower Y bound of the indexed space."`
	MaxX         float64 `cli:",hidden" env:"SPATIAL_SPACE_MAX_X"         help:"Upper X bound of the indexed space."`
	MaxY         float64 `cli:",hidden" env:"SPATIAL_SPACE_MAX_Y"         help:"Upper Y bound of the indexed space."`
	MinZ         float64 `cli:",hidden" env:"SPATIAL_SPACE_MIN_Z"         help:"Lower Z bound of the indexed space."`
	MaxZ         float64 `cli:",hidden" env:"SPATIAL_SPACE_MAX_Z"         help:"Upper Z bound of the indexed space."`
	TreeCapacity int     `cli:",hidden" env:"SPATIAL_SPACE_TREE_CAPACITY" help:"Entities a quadtree node holds before subdividing."`
}

type gridConfig struct {
	CellsX int  `cli:",hidden" env:"SPATIAL_GRID_CELLS_X" help:"Hash grid cells along the X axis."`
	CellsY int  `cli:",hidden" env:"SPATIAL_GRID_CELLS_Y" help:"Hash grid cells along the Y axis."`
	Floors int  `cli:",hidden" env:"SPATIAL_GRID_FLOORS"  help:"Hash grid floors along the Z axis."`
	Wrap   bool `cli:",hidden" env:"SPATIAL_GRID_WRAP"    help:"Clamp out-of-bounds entities to the grid edge instead of dropping them."`
}

type eventsConfig struct {
	Endpoint  string `cli:",hidden" env:"SPATIAL_EVENTS_ENDPOINT"   help:"Endpoint to where events are pushed."`
	BatchSize int    `cli:",hidden" env:"SPATIAL_EVENTS_BATCH_SIZE" help:"The maximum number of events sent at once."`
	QueueSize int    `cli:",hidden" env:"SPATIAL_EVENTS_QUEUE_SIZE" help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:      ":4000",
		AdminAddr: ":18190",
		LogLevel:  logs.InfoLevel.String(),
		Space: spaceConfig{
			MinX:         -1000,
			MinY:         -1000,
			MaxX:         1000,
			MaxY:         1000,
			TreeCapacity: 8,
		},
		Grid: gridConfig{
			CellsX: 100,
			CellsY: 100,
			Floors: 1,
		},
		Events: eventsConfig{
			BatchSize: events.DefaultBatchSize,
			QueueSize: events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the spatial index server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "spatial",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)

	index, err := server.New(server.Options{
		MinX:         conf.Space.MinX,
		MinY:         conf.Space.MinY,
		MaxX:         conf.Space.MaxX,
		MaxY:         conf.Space.MaxY,
		MinZ:         conf.Space.MinZ,
		MaxZ:         conf.Space.MaxZ,
		TreeCapacity: conf.Space.TreeCapacity,
		GridCellsX:   conf.Grid.CellsX,
		GridCellsY:   conf.Grid.CellsY,
		GridFloors:   conf.Grid.Floors,
		GridWrap:     conf.Grid.Wrap,
		Flags:        flags,
	})
	if err != nil {
		logs.Fatal(errors.New("creating the spatial indexes failed").Wrap(err))
	}

	readinessCheck := func() bool {
		return true
	}

	var service http.ServeMux
	service.Handle("/health", spatialhttp.HandleWithCORS(http.HandlerFunc(spatialhttp.HandleHealthCheck)))
	service.Handle("/version", spatialhttp.HandleWithCORS(http.HandlerFunc(spatialhttp.HandleVersion(version))))
	service.Handle("/ready", spatialhttp.HandleWithCORS(http.HandlerFunc(spatialhttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/", spatialhttp.HandleWithCORS(index.Mux()))

	flags.IfNotSet(featureflag.FlagDisableRealtime, func() {
		realtime := &server.RealtimeHandler{
			Index: index,
			Flags: flags,
		}

		service.Handle("/realtime", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()
				realtime.Handle(ctx, conn)
			},
		})
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", spatialhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", spatialhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("admin_addr", conf.AdminAddr).
		Info("starting spatial server")

	spatialhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			spatialhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.Space.MinX >= conf.Space.MaxX || conf.Space.MinY >= conf.Space.MaxY {
		return errors.New("invalid space bounds").
			WithTag("min_x", conf.Space.MinX).
			WithTag("min_y", conf.Space.MinY).
			WithTag("max_x", conf.Space.MaxX).
			WithTag("max_y", conf.Space.MaxY)
	}

	if conf.Space.MinZ > conf.Space.MaxZ {
		return errors.New("invalid vertical bounds").
			WithTag("min_z", conf.Space.MinZ).
			WithTag("max_z", conf.Space.MaxZ)
	}

	if conf.Space.TreeCapacity <= 0 {
		return errors.New("tree capacity must be positive").
			WithTag("tree_capacity", conf.Space.TreeCapacity)
	}

	return nil
}
