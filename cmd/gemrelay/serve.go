package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gemrelay/gemrelay/pkg/cache"
	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/generate"
	"github.com/gemrelay/gemrelay/pkg/keepalive"
	"github.com/gemrelay/gemrelay/pkg/metrics"
	"github.com/gemrelay/gemrelay/pkg/modestore"
	"github.com/gemrelay/gemrelay/pkg/prompt"
	"github.com/gemrelay/gemrelay/pkg/quota"
	"github.com/gemrelay/gemrelay/pkg/relay"
	"github.com/gemrelay/gemrelay/pkg/render"
	"github.com/gemrelay/gemrelay/pkg/router"
	"github.com/gemrelay/gemrelay/pkg/server"
	"github.com/gemrelay/gemrelay/pkg/tracker"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LINE webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogging(cfg.Log)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			providers, err := generate.NewProviders(ctx, cfg.Providers)
			if err != nil {
				return fmt.Errorf("init providers: %w", err)
			}
			rt := router.New(cfg)
			m := metrics.New()

			opts := []generate.Option{
				generate.WithStripChars(cfg.Reply.StripChars),
				generate.WithMetrics(m),
			}

			var relayOpts []relay.Option
			if cfg.Usage.Enabled {
				tr, err := tracker.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("init tracker: %w", err)
				}
				defer func() { _ = tr.Close() }()
				opts = append(opts, generate.WithTracker(tr))
				if cfg.Quota.Enabled {
					relayOpts = append(relayOpts, relay.WithQuota(quota.New(cfg.Quota.Policies, tr)))
				}
			}

			if cfg.Cache.Enabled {
				var cacheOpts []cache.Option
				store, err := openCacheStore(ctx, cfg)
				if err != nil {
					return fmt.Errorf("init cache store: %w", err)
				}
				if store != nil {
					defer func() { _ = store.Close() }()
					cacheOpts = append(cacheOpts, cache.WithStore(store))
				}
				c, err := cache.New(cfg.Cache.Capacity, cacheOpts...)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				opts = append(opts, generate.WithCache(c))
			}

			adapter := generate.NewAdapter(rt, providers, cfg.Reply.FallbackText, opts...)

			modes, err := modestore.New(cfg.Modes.Capacity)
			if err != nil {
				return fmt.Errorf("init mode store: %w", err)
			}

			var engines []string
			if names := rt.Engines(); len(names) > 1 {
				engines = names
			}
			rl := relay.New(modes, prompt.New(cfg.Prompt), adapter, rt, render.New(cfg.Reply, engines), cfg.Reply, relayOpts...)

			line, err := messaging_api.NewMessagingApiAPI(cfg.Line.ChannelToken)
			if err != nil {
				return fmt.Errorf("create messaging API client: %w", err)
			}
			var pusher server.Messenger
			if cfg.Line.SecondaryToken != "" {
				pusher, err = messaging_api.NewMessagingApiAPI(cfg.Line.SecondaryToken)
				if err != nil {
					return fmt.Errorf("create secondary messaging API client: %w", err)
				}
			}

			if cfg.KeepAlive.Enabled {
				url := cfg.KeepAlive.URL
				if url == "" {
					url, err = localPingURL(cfg.Listen)
					if err != nil {
						return fmt.Errorf("keepalive url: %w", err)
					}
				}
				go keepalive.New(url, cfg.KeepAlive.Interval).Run(ctx)
			}

			srv := server.New(cfg, rl, line, pusher, m)
			log.WithFields(log.Fields{
				"providers": len(providers),
				"cache":     cfg.Cache.Enabled,
				"backend":   cfg.Cache.Backend,
				"render":    cfg.Reply.Render,
				"quota":     cfg.Quota.Enabled,
			}).Info("starting gemrelay")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (environment variables only when empty)")
	return cmd
}

// localPingURL returns the /ping URL of a server listening on addr. Wildcard
// hosts are reached through loopback.
func localPingURL(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/ping", nil
}
