// Command scan decodes student QR codes from image files through the same
// local and remote decoders the server uses.
//
//	scan [-remote] [-timeout 5s] photo1.jpg photo2.png
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qrscan/internal/platform/logger"
	"qrscan/internal/scanner/decode/local"
	"qrscan/internal/scanner/decode/remote"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type line struct {
	File     string `json:"file"`
	DNI      string `json:"dni,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	useRemote := fs.Bool("remote", false, "Fall back to the remote decode services when local decoding misses")
	primary := fs.String("primary-url", remote.DefaultQuickChartURL, "Primary remote decode endpoint")
	secondary := fs.String("secondary-url", remote.DefaultQRServerURL, "Secondary remote decode endpoint (empty disables)")
	timeout := fs.Duration("timeout", remote.DefaultTimeout, "Remote decode timeout per image")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: scan [flags] image...")
		fs.PrintDefaults()
		return 2
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	log := logger.NewWithWriter(stderr, level, "text")

	opts := []pipeline.Option{pipeline.WithLocal(local.New()), pipeline.WithLogger(log)}
	if *useRemote {
		fallback, err := newFallback(*primary, *secondary, *timeout, log)
		if err != nil {
			fmt.Fprintf(stderr, "remote decoder: %v\n", err)
			return 2
		}
		opts = append(opts, pipeline.WithRemote(fallback))
	}
	p, err := pipeline.New(opts...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	enc := json.NewEncoder(stdout)
	failed := false
	for _, path := range fs.Args() {
		out := scanFile(ctx, p, path)
		if out.Error != "" {
			failed = true
		}
		_ = enc.Encode(out)
	}
	if failed {
		return 1
	}
	return 0
}

func scanFile(ctx context.Context, p *pipeline.Pipeline, path string) line {
	out := line{File: path}
	stills, err := frame.LoadStills(path, []string{path})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	defer stills.Close()

	fr, err := stills.Acquire(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	det, err := p.Decode(ctx, path, fr.Image)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.DNI = det.DNI.String()
	out.Rule = string(det.Rule)
	out.Strategy = string(det.Strategy)
	out.Provider = det.Provider
	return out
}

func newFallback(primary, secondary string, timeout time.Duration, log *slog.Logger) (*remote.Fallback, error) {
	if primary == "" {
		return nil, errors.New("primary url is required")
	}
	client := &http.Client{}
	var second remote.Provider
	if secondary != "" {
		second = remote.NewQRServer("qrserver", secondary, client)
	}
	return remote.New(remote.NewQuickChart("quickchart", primary, client), second,
		remote.WithTimeout(timeout),
		remote.WithLogger(log),
	)
}
