package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/botirk38/semanticrouter/config"
	"github.com/botirk38/semanticrouter/metrics"
	"github.com/botirk38/semanticrouter/server"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "semanticrouter",
		Short: "Semantic FAQ cache with LLM fallback",
		Long: `Answers questions from a self-growing semantic cache.

Questions close enough to a known one are answered from the cache. Anything
else is sent to the configured LLM and the answer is added to the cache.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (default ./semanticrouter.yaml if present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web form and JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "Listen address, overrides server.listen_address")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	rootCmd.AddCommand(serveCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.ListenAddress = listen
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(metrics.InstanceInfo{Version: version})
	router, err := buildRouter(ctx, cfg, logger, m)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer router.Close()

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(router, m, logger, server.Config{
		FlashTTL:  cfg.Server.FlashTTL,
		FlashSize: cfg.Server.FlashSize,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question is empty")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	router, err := buildRouter(cmd.Context(), cfg, logger, metrics.NewMetrics(metrics.InstanceInfo{Version: version}))
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer router.Close()

	answer := router.Ask(cmd.Context(), question)
	fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
	return nil
}
