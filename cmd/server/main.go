package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/damacus/iron-gallery/internal/cache"
	"github.com/damacus/iron-gallery/internal/config"
	"github.com/damacus/iron-gallery/internal/events"
	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "iron-gallery",
		Short: "Browse image folders of a file hosting account",
		Long: `Iron Gallery serves a browser gallery over a file hosting account,
reached either through its key-based API or its S3-compatible endpoint.

Settings are read from GALLERY_* environment variables.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			props, err := config.ReadProperties()
			if err != nil {
				return err
			}
			if verbose {
				props.LogLevel = "debug"
			}
			if err := logging.Init(logging.Config{Level: props.LogLevel, Format: props.LogFormat}); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), propsKey{}, props))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), propsFrom(cmd))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newSealCmd())
	return rootCmd
}

type propsKey struct{}

func propsFrom(cmd *cobra.Command) *config.Properties {
	props, _ := cmd.Context().Value(propsKey{}).(*config.Properties)
	return props
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gallery web server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), propsFrom(cmd))
		},
	}
}

// backendOptions maps settings onto both backend variants
func backendOptions(props *config.Properties, sorter *imageset.Sorter) services.BackendOptions {
	return services.BackendOptions{
		Native: services.NativeOptions{
			BaseURL:      props.Native.BaseURL,
			TimeZone:     props.Native.TimeZone,
			RatePerSec:   props.Native.RatePerSec,
			Burst:        props.Native.Burst,
			RetryMax:     props.Native.RetryMax,
			RetryWaitMin: props.Native.RetryWaitMin,
			RetryWaitMax: props.Native.RetryWaitMax,
			Timeout:      props.Native.Timeout,
		},
		S3: services.S3Options{
			Endpoint: props.S3.Endpoint,
			Region:   props.S3.Region,
			Insecure: props.S3.Insecure,
		},
		Sorter: sorter,
	}
}

// loadCredentials reads the store and applies environment overrides
func loadCredentials(props *config.Properties) (*services.CredentialStore, services.Credentials, error) {
	store := services.NewCredentialStore(props.Credentials.StorePath, props.Credentials.StoreKey)
	creds, err := store.Load()
	if err != nil {
		return nil, creds, err
	}
	creds = creds.Merge(services.Credentials{
		Mode:      models.ConnectionMode(props.Mode),
		APIKey:    props.Credentials.APIKey,
		AccessKey: props.Credentials.S3ID,
		SecretKey: props.Credentials.S3Secret,
	})
	return store, creds, nil
}

func runServe(ctx context.Context, props *config.Properties) error {
	defer func() { _ = logging.Sync() }()

	store, creds, err := loadCredentials(props)
	if err != nil {
		return err
	}

	byteCache, err := cache.Open(props.Cache.Path)
	if err != nil {
		return err
	}
	defer func() { _ = byteCache.Close() }()

	removed, err := byteCache.DeleteExpired(props.Cache.MaxAge)
	if err != nil {
		logging.Warn("cache sweep failed", logging.Err(err))
	} else {
		logging.Info("cache sweep finished", logging.Int("removed", removed))
	}

	sorter := imageset.NewSorter(props.Locale)
	opts := backendOptions(props, sorter)
	broadcaster := events.NewBroadcaster()
	session := gallery.NewSession(gallery.SessionOptions{
		NewBackend: func(c services.Credentials) (services.ListingBackend, error) {
			return services.NewBackend(c, opts)
		},
		Cache:    byteCache,
		Events:   broadcaster,
		Sorter:   sorter,
		PageSize: props.PageSize,
		Hydration: gallery.HydratorOptions{
			BatchSize:  props.Hydration.BatchSize,
			BatchDelay: props.Hydration.BatchDelay,
		},
	})
	defer session.Close()

	if _, err := services.ResolveMode(creds); err == nil {
		if err := session.Activate(creds); err != nil {
			logging.Warn("stored credentials unusable", logging.Err(err))
		}
	} else {
		logging.Info("no credentials configured, serving the config page")
	}

	e, err := newServer(serverDeps{
		Props:   props,
		Session: session,
		Store:   store,
		Events:  broadcaster,
	})
	if err != nil {
		return err
	}
	e.Server.ReadTimeout = props.Server.ReadTimeout
	e.Server.WriteTimeout = props.Server.WriteTimeout

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", logging.String("address", props.Server.Address))
		errCh <- e.Start(props.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newValidateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configured credentials against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			props := propsFrom(cmd)
			_, creds, err := loadCredentials(props)
			if err != nil {
				return err
			}
			backend, err := services.NewBackend(creds, backendOptions(props, nil))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := backend.ValidateCredentials(ctx); err != nil {
				return errors.New(services.Describe(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials accepted (%s)\n", backend.Mode())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Validation timeout")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the downloaded image cache",
	}

	var maxAge time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached images older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			props := propsFrom(cmd)
			age := props.Cache.MaxAge
			if cmd.Flags().Changed("max-age") {
				age = maxAge
			}
			c, err := cache.Open(props.Cache.Path)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			removed, err := c.DeleteExpired(age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s cached images\n", utils.FormatCount(removed))
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&maxAge, "max-age", cache.DefaultMaxAge, "Maximum age of kept entries")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached image",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.Open(propsFrom(cmd).Cache.Path)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			if err := c.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}

	cacheCmd.AddCommand(pruneCmd, clearCmd)
	return cacheCmd
}
