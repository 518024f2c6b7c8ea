package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/jo-hoe/platewatch/internal/backend"
	"github.com/jo-hoe/platewatch/internal/common"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API",
		RunE: func(cmd *cobra.Command, args []string) error {
			coreService, err := newCoreService()
			if err != nil {
				return err
			}

			server := defineServer()
			apiService := backend.NewAPIService(coreService, coreService.Gatherer())
			apiService.SetRoutes(server)

			if port == 0 {
				port = coreService.Config().Port
			}
			portString := fmt.Sprintf(":%d", port)

			// Start HTTP server in a goroutine to allow graceful shutdown
			go func() {
				log.Printf("starting server on port %d", port)
				if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("http server error: %v", err)
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			<-quit
			log.Printf("shutdown signal received")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				log.Printf("server shutdown error: %v", err)
			}

			if err := coreService.Close(); err != nil {
				log.Printf("core service close error: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Configure request logger to skip the probe endpoint
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRoutePath: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("%s %s (route=%s) - Status: %d - Latency: %v - Error: %v - RemoteIP: %s",
					v.Method,
					v.URI,
					v.RoutePath,
					v.Status,
					v.Latency,
					v.Error,
					v.RemoteIP,
				)
			} else {
				log.Printf("%s %s (route=%s) - Status: %d - Latency: %v - RemoteIP: %s",
					v.Method,
					v.URI,
					v.RoutePath,
					v.Status,
					v.Latency,
					v.RemoteIP,
				)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.BodyLimit("25M"))

	e.Validator = &common.GenericEchoValidator{}

	return e
}
