package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eosc4cancer/cbiobridge/cmd/bridged/handlers"
	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	"github.com/eosc4cancer/cbiobridge/pkg/cache"
	configs "github.com/eosc4cancer/cbiobridge/pkg/configs/bridge"
	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	kpg "github.com/eosc4cancer/cbiobridge/pkg/db/postgres"
	"github.com/eosc4cancer/cbiobridge/pkg/galaxy"
	"github.com/eosc4cancer/cbiobridge/pkg/importer"
	"github.com/eosc4cancer/cbiobridge/pkg/metrics"
	"github.com/eosc4cancer/cbiobridge/pkg/study"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/echoutil"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/filewatch"
	"github.com/eosc4cancer/cbiobridge/pkg/xnat"
	"github.com/labstack/gommon/log"
)

// timeouts of outbound requests.
const (
	portalTimeout = time.Minute
	galaxyTimeout = 2 * time.Minute
	xnatTimeout   = time.Minute
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run starts the bridge and blocks until it stops. It returns the exit code.
//
// Deferred cleanups, including closing the database pool, run before returning.
func run(args []string) int {
	flags := flag.NewFlagSet("bridged", flag.ContinueOnError)
	pconfig := flags.String(
		"config-path", os.Getenv("BRIDGE_CONFIG"),
		"path to config file. when empty, configurations are read from environment variables.",
	)
	loglevel := flags.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flags.String("cert", "", "certification file for TLS")
	pkey := flags.String("certkey", "", "key of certification file for TLS")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger := log.New("bridged")
	if lvl, ok := echoutil.ParseLevel(*loglevel); ok {
		logger.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := configs.LoadConfig(*pconfig, os.LookupEnv)
	if err != nil {
		logger.Errorf("can not read configuration: %s", err)
		return 1
	}

	if *pconfig != "" {
		wctx, wcancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Errorf("can not watch configuration: %s", err)
			return 1
		}
		defer wcancel()
		ctx = wctx
	}

	m := metrics.New()

	var jobs kdb.ImportJobInterface
	if uri := conf.Database(); uri != "" {
		db, err := kpg.New(ctx, uri)
		if err != nil {
			logger.Errorf("can not connect to the database: %s", err)
			return 1
		}
		defer db.Close()
		jobs = db.ImportJobs()
	} else {
		logger.Info("database is not configured. import jobs are not recorded.")
	}

	deps := Dependencies{
		Portal:    portal(conf, jobs, m, logger),
		Validator: bridge.MustValidator(),
		Jobs:      jobs,
		Galaxy:    galaxyOf(conf, m, logger),
		Metrics:   m,
	}
	if ic := conf.Images(); ic != nil {
		deps.Images = &handlers.Images{Directory: ic.Directory(), PublicURL: ic.PublicURL()}
	}

	server := BuildServer(deps, *loglevel)
	server.Server.ReadTimeout = conf.Server().ReadTimeout()
	server.Server.WriteTimeout = conf.Server().WriteTimeout()
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		addr := fmt.Sprintf(":%d", conf.Server().Port())
		var err error
		if cert, key := *pcert, *pkey; cert != "" && key != "" {
			err = server.StartTLS(addr, cert, key)
		} else {
			err = server.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		server.Logger.Infof("context has been done: %s, cause: %s", ctx.Err(), context.Cause(ctx))
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("Shutdown with error. %+v", err)
		exit = 1
	}
	return exit
}

func portal(conf *configs.Config, jobs kdb.ImportJobInterface, m *metrics.Metrics, logger *log.Logger) *handlers.Portal {
	cb := conf.CBioPortal()

	command := cb.Importer()
	options := []importer.Option{importer.WithObserver(m), importer.WithLogger(logger)}
	if jobs != nil {
		options = append(options, importer.WithLedger(jobs))
	}
	imp := importer.New(importer.ExecCommand{Path: command[0], Args: command[1:]}, options...)

	var inv cache.Invalidator
	switch cb.CacheClear() {
	case configs.CacheClearCommand:
		inv = cache.NewCommand(cache.Curl(), cb.URL(), cb.CacheAPIKey(), cache.WithObserver(m))
	default:
		inv = cache.NewHTTP(
			cb.URL(), cb.CacheAPIKey(),
			cache.WithObserver(m),
			cache.WithHTTPClient(&http.Client{Timeout: portalTimeout}),
		)
	}

	return &handlers.Portal{
		StudyRoot: conf.StudyDirectory(),
		PortalURL: cb.URL(),
		Importer:  imp,
		Cache:     inv,
		Locker:    study.NewLocker(),
		Observer:  m,
	}
}

func galaxyOf(conf *configs.Config, m *metrics.Metrics, logger *log.Logger) *handlers.Galaxy {
	gc := conf.Galaxy()
	if gc == nil {
		logger.Info("galaxy is not configured.")
		return nil
	}

	g := &handlers.Galaxy{
		Connect: func(ctx context.Context, token string) (handlers.GalaxySession, error) {
			client, err := galaxy.Connect(
				ctx, gc.URL(), token, gc.Retry(),
				galaxy.WithLogger(logger), galaxy.WithConnectObserver(m),
				galaxy.WithHTTPClient(&http.Client{Timeout: galaxyTimeout}),
			)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		WorkflowName:  gc.WorkflowName(),
		ReadyInterval: gc.ReadyInterval(),
		ReadyTries:    gc.ReadyTries(),
	}
	if xc := conf.XNAT(); xc != nil {
		g.XNAT = xnat.New(xc.URL(), &http.Client{Timeout: xnatTimeout})
	}
	return g
}
