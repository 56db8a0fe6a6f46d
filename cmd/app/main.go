package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvzzle/safescore/internal/app"
)

func main() {
	var (
		collectorFlag string
		threshold     = flag.Int("threshold", -1, "alert threshold (default: SCORE_ALERT_THRESHOLD)")
		timeout       = flag.Duration("timeout", 5*time.Minute, "upper bound for the whole run")
	)
	flag.StringVar(&collectorFlag, "collector", "", "collector: mock | eth (default: COLLECTOR)")
	flag.StringVar(&collectorFlag, "c", "", "shorthand for -collector")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *timeout)
		defer tcancel()
	}

	err := app.Run(ctx, app.Options{Collector: collectorFlag, Threshold: *threshold})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
