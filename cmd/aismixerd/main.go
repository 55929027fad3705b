package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/iliyan85/aismixer/internal/assembler"
	"github.com/iliyan85/aismixer/internal/buildinfo"
	"github.com/iliyan85/aismixer/internal/config"
	"github.com/iliyan85/aismixer/internal/dedup"
	"github.com/iliyan85/aismixer/internal/forwarder"
	"github.com/iliyan85/aismixer/internal/ingress"
	"github.com/iliyan85/aismixer/internal/logging"
	"github.com/iliyan85/aismixer/internal/pipeline"
	"github.com/iliyan85/aismixer/internal/secure"
	"github.com/iliyan85/aismixer/internal/spolicy"
	"github.com/iliyan85/aismixer/internal/udpin"
)

const defaultConfigLoc = `/opt/aismixer/etc/aismixer.yaml`

var (
	confLoc = flag.String("config-file", defaultConfigLoc, "Location for configuration file")
	verbose = flag.Bool("v", false, "Enable verbose (debug-level) logging")
	ver     = flag.Bool("version", false, "Print the version information and exit")
)

func main() {
	flag.Parse()
	if *ver {
		buildinfo.PrintVersion(os.Stdout)
		os.Exit(0)
	}

	cfg, err := config.Load(*confLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{LogFile: cfg.LogFile, LogLevel: cfg.LogLevel, Debug: cfg.Debug || *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		log.Info("verbose mode requested via -v")
	}

	// A fresh run id tags every pipeline log line so operators can
	// correlate one process's debug trace across a shared log aggregator.
	runID := uuid.NewString()
	runLog := log.WithField("run_id", runID)

	mixer := ingress.NewMixer(4096)
	var closers []func() error
	var serveWg sync.WaitGroup

	if len(cfg.UDPInputs) > 0 {
		aliasMap := map[string]string{}
		if cfg.UDPAliasMapFile != "" {
			aliasMap, err = config.LoadAliasMap(cfg.UDPAliasMapFile)
			if err != nil {
				log.WithError(err).Fatal("failed to load udp_alias_map_file")
			}
		}
		resolver := func(ip string) (string, bool) {
			a, ok := aliasMap[ip]
			return a, ok
		}
		for _, in := range cfg.UDPInputs {
			l, err := udpin.Listen(in.Bind(), in.ID, resolver, log)
			if err != nil {
				log.WithError(err).WithField("bind", in.Bind()).Fatal("failed to bind udp input")
			}
			mixer.Attach(l.Out)
			closers = append(closers, l.Close)
			serveWg.Add(1)
			go func(l *udpin.Listener) {
				defer serveWg.Done()
				l.Serve()
				close(l.Out)
			}(l)
		}
	}

	if len(cfg.SecInputs) > 0 {
		serverPriv, err := secure.LoadServerPrivateKey(cfg.ServerKeyFile)
		if err != nil {
			log.WithError(err).Fatal("failed to load server_key_file")
		}
		rawKeys, err := config.LoadAuthorizedKeys(cfg.AuthorizedKeysFile)
		if err != nil {
			log.WithError(err).Fatal("failed to load authorized_keys_file")
		}
		clientKeys, err := secure.BuildClientKeys(rawKeys)
		if err != nil {
			log.WithError(err).Fatal("failed to decode authorized keys")
		}
		keys := secure.NewKeyStore(serverPriv, clientKeys)
		for _, in := range cfg.SecInputs {
			l, err := secure.Listen(in.Bind(), keys, log)
			if err != nil {
				log.WithError(err).WithField("bind", in.Bind()).Fatal("failed to bind sec input")
			}
			mixer.Attach(l.Out)
			closers = append(closers, l.Close)
			serveWg.Add(1)
			go func(l *secure.Listener) {
				defer serveWg.Done()
				l.Serve()
				close(l.Out)
			}(l)
		}
	}

	targets := make([]forwarder.Target, 0, len(cfg.Forwarders))
	for _, f := range cfg.Forwarders {
		targets = append(targets, forwarder.Target{Host: f.Host, Port: f.Port})
	}
	fwd := forwarder.New(log, targets)
	defer fwd.Close()

	pl := pipeline.New(
		assembler.New(),
		dedup.New(),
		spolicy.NewCache(spolicy.CacheOptions{}),
		fwd,
		cfg.StationID,
		cfg.Debug,
		runLog,
	)

	var pipelineWg sync.WaitGroup
	pipelineWg.Add(1)
	go func() {
		defer pipelineWg.Done()
		pl.Run(mixer.Out)
	}()

	var mixerWaitWg sync.WaitGroup
	mixerWaitWg.Add(1)
	go func() {
		defer mixerWaitWg.Done()
		mixer.Wait()
	}()

	runLog.WithField("version", buildinfo.GetVersion()).Info("aismixerd started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	for _, c := range closers {
		if err := c(); err != nil {
			log.WithError(err).Warn("error closing listener")
		}
	}

	done := make(chan struct{})
	go func() {
		serveWg.Wait()
		mixerWaitWg.Wait()
		pipelineWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("timed out waiting for graceful shutdown")
	}
}
