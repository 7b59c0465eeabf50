package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
	"github.com/CarlosCaoLopez/Redes-Practica3/pkg/log"
)

// Starts a server, sends it a small file and prints the uppercased copy.
func main() {
	if err := log.InitGlobalLogger("info"); err != nil {
		panic(err)
	}
	l := zap.S().Named("example")

	srv, err := mayus.Listen(&mayus.ServerConfig{Listen: "127.0.0.1:12344"})
	if err != nil {
		l.Fatal(err)
	}
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go srv.Serve(ctx)

	dir, err := os.MkdirTemp("", "mayus-example")
	if err != nil {
		l.Fatal(err)
	}
	defer os.RemoveAll(dir)
	input := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(input, []byte("hello from client\nñandú\nStraße\n"), 0o644); err != nil {
		l.Fatal(err)
	}

	c, err := mayus.Dial("127.0.0.1:12344", &mayus.ClientConfig{
		Listen:         "127.0.0.1:0",
		OutputDir:      dir,
		ReplyTimeoutMs: 500,
		MaxRetries:     3,
	})
	if err != nil {
		l.Fatal(err)
	}
	defer c.Close()

	res, err := c.Run(ctx, input)
	if err != nil {
		l.Fatal(err)
	}
	out, err := os.ReadFile(res.OutputPath)
	if err != nil {
		l.Fatal(err)
	}
	l.Infof("%s:\n%s", filepath.Base(res.OutputPath), out)
}
