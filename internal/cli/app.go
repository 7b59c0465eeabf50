package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
	"github.com/CarlosCaoLopez/Redes-Practica3/internal/web"
	"github.com/CarlosCaoLopez/Redes-Practica3/pkg/log"
)

var cliLogger = log.MustNewLogger("info").Sugar().Named("cli")

var ServeCMD = &cli.Command{
	Name:   "serve",
	Usage:  "接收文本行并返回大写结果",
	Flags:  ServeFlags,
	Action: serveAction,
}

var SendCMD = &cli.Command{
	Name:   "send",
	Usage:  "逐行发送文件并写出大写后的副本",
	Flags:  SendFlags,
	Action: sendAction,
}

func serveAction(ctx *cli.Context) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	if err := initComponents(cfg.LogLevel); err != nil {
		return err
	}
	l := zap.S().Named("cli")

	mainCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := mayus.Listen(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	g, gctx := errgroup.WithContext(mainCtx)
	serveCtx, cancelServe := context.WithCancel(gctx)
	defer cancelServe()
	g.Go(func() error {
		// legacy 模式下 Serve 结束后其他组件也一起退出
		defer cancelServe()
		return srv.Serve(serveCtx)
	})
	if cfg.WebPort > 0 {
		ws, err := web.NewServer(cfg.WebPort, srv, nil)
		if err != nil {
			return err
		}
		g.Go(func() error { return ws.Start(serveCtx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	l.Info("mayus server exit now...")
	return nil
}

func sendAction(ctx *cli.Context) error {
	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	if err := initComponents(LogLevel); err != nil {
		return err
	}
	l := zap.S().Named("cli")

	mainCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := mayus.Dial(cfg.Remote, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Run(mainCtx, InputFile)
	if err != nil {
		return err
	}
	l.Infof("%s -> %s: %d lines, %d bytes, %d failed, %d count changed, %d retransmits in %s",
		res.InputPath, res.OutputPath, res.Lines, res.Bytes, res.FailedLines,
		res.CountChanged, res.Retransmits, res.Elapsed)
	return nil
}

func CreateCliAPP() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		println(fmt.Sprintf("mayus version=%s", mayus.Version))
	}
	app := cli.NewApp()
	app.Name = "mayus"
	app.Version = mayus.Version
	app.Usage = "uppercase a text file line by line over UDP"
	app.Commands = []*cli.Command{ServeCMD, SendCMD}
	return app
}
