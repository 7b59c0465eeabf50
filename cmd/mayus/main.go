package main

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/CarlosCaoLopez/Redes-Practica3/internal/cli"
	"github.com/CarlosCaoLopez/Redes-Practica3/pkg/log"
)

func main() {
	defer func() {
		if err := recover(); err != nil {
			sentry.CurrentHub().Recover(err)
			sentry.Flush(time.Second * 5)
			panic(err)
		}
	}()

	l := log.MustNewLogger("info").Sugar().Named("main")
	app := cli.CreateCliAPP()
	if err := app.Run(os.Args); err != nil {
		sentry.CurrentHub().CaptureException(err)
		sentry.Flush(time.Second * 5)
		l.Errorf("mayus failed, err=%+v", err)
		os.Exit(1)
	}
}
