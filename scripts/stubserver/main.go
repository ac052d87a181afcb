// Command stubserver serves the public auction listing endpoint locally so
// auctionload can be pointed at something without the real backend.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/Takch02/blabus-session2-item1/internal/auctiontest"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	fs := pflag.NewFlagSet("stubserver", pflag.ExitOnError)
	port := fs.Int("port", 8085, "Listening port")
	status := fs.Int("status", 200, "Status code returned for listing requests")
	latency := fs.Duration("latency", 0, "Delay added to every response")
	items := fs.Int("items", 10, "Auctions per page")
	_ = fs.Parse(os.Args[1:])

	if *port <= 0 {
		logger.Fatal().Msg("port must be > 0")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		logger.Fatal().Err(err).Msg("listen")
	}

	srv := auctiontest.NewUnstartedServer(
		auctiontest.WithStatus(*status),
		auctiontest.WithLatency(*latency),
		auctiontest.WithItems(*items),
		auctiontest.WithoutRecording(),
	)
	_ = srv.Listener.Close()
	srv.Listener = ln
	srv.Start()

	logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d%s?%s", *port, auctiontest.ListingPath, auctiontest.ListingQuery)).
		Int("status", *status).
		Dur("latency", *latency).
		Msg("stub auction listing ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	srv.Close()
	logger.Info().Int("requests", srv.Count()).Msg("stopped")
}
