package mayus

import (
	"context"
	"net"
	"strings"
	"testing"
)

func BenchmarkFoldASCII(b *testing.B) {
	benchmarkFold(b, MustNewFolder("", ""), []byte(strings.Repeat("the quick brown fox ", 50)+"\n"))
}

func BenchmarkFoldUnicode(b *testing.B) {
	benchmarkFold(b, MustNewFolder("", ""), []byte(strings.Repeat("ñandú résumé straße ", 50)+"\n"))
}

func BenchmarkFoldLatin1(b *testing.B) {
	f := MustNewFolder("", "iso-8859-1")
	line := []byte(strings.Repeat("r\xe9sum\xe9 ", 100) + "\n")
	benchmarkFold(b, f, line)
}

func benchmarkFold(b *testing.B, f *Folder, line []byte) {
	b.SetBytes(int64(len(line)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.Fold(line); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAppendFrame(b *testing.B) {
	f := &Frame{Kind: KindLine, Seq: 1, Payload: make([]byte, 1024)}
	buf := make([]byte, 0, MaxDatagramSize)
	b.SetBytes(int64(f.Size()))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var err error
		if buf, err = AppendFrame(buf[:0], f); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRoundTrip64(b *testing.B) {
	speedRoundTrip(b, 64)
}

func BenchmarkRoundTrip1K(b *testing.B) {
	speedRoundTrip(b, 1024)
}

// speedRoundTrip measures one line request and its reply over loopback.
func speedRoundTrip(b *testing.B, size int) {
	sconn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		b.Fatal(err)
	}
	defer sconn.Close()
	srv, err := NewServer(sconn, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	cconn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		b.Fatal(err)
	}
	defer cconn.Close()
	c := NewClient(cconn, srv.Addr(), nil)
	if _, err := c.roundTrip(ctx, KindName, []byte("bench.txt"), KindAssign); err != nil {
		b.Fatal(err)
	}

	line := []byte(strings.Repeat("a", size-1) + "\n")
	b.SetBytes(int64(size))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.roundTrip(ctx, KindLine, line, KindUpper); err != nil {
			b.Fatal(err)
		}
	}
}
