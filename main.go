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

	"rss-scraper/config"
	"rss-scraper/internal/app"

	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cliApp := &cli.App{
		Name:  "rss-scraper",
		Usage: "Follow RSS feeds and keep their items fresh",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with background refreshes",
				Action: serve,
			},
			{
				Name:  "refresh",
				Usage: "Refresh feeds once and exit",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "feed-id",
						Aliases: []string{"f"},
						Usage:   "Refresh a single feed (if not set, refreshes all)",
					},
				},
				Action: refresh,
			},
			{
				Name:      "follow",
				Usage:     "Follow a feed on behalf of a subscriber",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Subscriber email (created if new)",
						Required: true,
					},
				},
				Action: follow,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.StartBackground(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("Server started on port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func refresh(c *cli.Context) error {
	application, err := app.New(config.Load())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	application.Pipeline.Start()

	if id := c.Int("feed-id"); id > 0 {
		if err := application.Pipeline.RefreshFeed(id); err != nil {
			return err
		}
	} else {
		n, err := application.Pipeline.RefreshAllFeeds(c.Context)
		if err != nil {
			return err
		}
		log.Printf("Refreshing %d feeds", n)
	}

	application.Pipeline.Wait()
	return nil
}

func follow(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: rss-scraper follow --email <email> <url>", 2)
	}

	application, err := app.New(config.Load())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	sub, err := application.SubscriberService.Login(c.Context, c.String("email"))
	if err != nil {
		return err
	}

	feed, err := application.FeedService.Follow(c.Context, sub.ID, c.Args().First())
	if err != nil {
		return err
	}

	fmt.Printf("Following %q (feed %d)\n", feed.Title, feed.ID)
	return nil
}
