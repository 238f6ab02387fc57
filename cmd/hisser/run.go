package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/agg"
	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/buffer"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/config"
	"github.com/hisserdb/hisser/pkg/index"
	"github.com/hisserdb/hisser/pkg/ingestserver"
	"github.com/hisserdb/hisser/pkg/linkrpc"
	"github.com/hisserdb/hisser/pkg/model"
	"github.com/hisserdb/hisser/pkg/reader"
	"github.com/hisserdb/hisser/pkg/selfmetrics"
	"github.com/hisserdb/hisser/pkg/taskmanager"
)

const runShutdownTimeout = 10 * time.Second

// housekeepingKinds are the taskmanager-scheduled kinds whose running
// status selfmetrics exposes. Buffer flushing isn't in this list: it runs
// synchronously on every housework tick rather than through the task
// manager, since it must never be skipped for being "already running".
var housekeepingKinds = []string{"merge", "downsample", "cleanup"}

// housekeepingPeriod is how many HouseworkInterval ticks pass between
// merge/downsample/cleanup sweeps; the buffer itself is ticked every
// interval, since that's the only way flushes happen at all.
const housekeepingPeriod = 10

func newRunCmd() *cobra.Command {
	var carbonBind, carbonBindUDP, linkBind string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if carbonBind != "" {
				cfg.CarbonTCPBind = carbonBind
			}
			if carbonBindUDP != "" {
				cfg.CarbonUDPBind = carbonBindUDP
			}
			if linkBind != "" {
				cfg.LinkBind = linkBind
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVarP(&carbonBind, "carbon-bind", "l", "", "host:port to listen carbon text protocol on tcp")
	cmd.Flags().StringVar(&carbonBindUDP, "carbon-bind-udp", "", "host:port to listen carbon text protocol on udp")
	cmd.Flags().StringVar(&linkBind, "link-bind", "", "host:port to listen graphite finder link protocol on")
	return cmd
}

// runServer wires every storage-engine package into one running process:
// Carbon ingest feeds the buffer, the housework loop flushes/merges/
// downsamples/cleans up in the background, link RPC and the admin surface
// serve reads, and a signal drives graceful shutdown. Grounded in shape on
// cmd/server/main.go's listen-then-wait-for-signal-then-drain structure.
func runServer(cfg config.Config) error {
	if err := requireOneRetention(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("run: create data dir: %w", err)
	}

	cats := catalogues(cfg)
	for _, cat := range cats {
		if err := os.MkdirAll(cat.Dir(), 0o755); err != nil {
			return fmt.Errorf("run: create %s: %w", cat.Dir(), err)
		}
	}

	idx, err := index.Open(indexPath(cfg))
	if err != nil {
		return fmt.Errorf("run: open index: %w", err)
	}
	defer idx.Close()

	rules, err := aggRules(cfg)
	if err != nil {
		return err
	}

	rawRes := resolutionSeconds(cfg.Resolution)
	buf := buffer.New(rawRes, cfg.FlushSize, time.Now().Unix())
	buf.SetCompactRatio(cfg.CompactRatio)

	rd := &reader.Reader{Resolutions: resolutions(cfg), Cats: cats, Buf: buf}
	task := taskmanager.New(cfg.TaskRetries, cfg.TaskBackoffBase)

	registry := prometheus.NewRegistry()
	registry.MustRegister(selfmetrics.NewCollector(buf, task, housekeepingKinds))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	tcpLn, err := net.Listen("tcp", cfg.CarbonTCPBind)
	if err != nil {
		return fmt.Errorf("run: listen carbon tcp: %w", err)
	}
	defer tcpLn.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.CarbonUDPBind)
	if err != nil {
		return fmt.Errorf("run: resolve carbon udp bind: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("run: listen carbon udp: %w", err)
	}
	defer udpConn.Close()

	linkLn, err := net.Listen("tcp", cfg.LinkBind)
	if err != nil {
		return fmt.Errorf("run: listen link rpc: %w", err)
	}
	defer linkLn.Close()

	ingestSrv := &ingestserver.Server{Buf: buf}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestSrv.ServeTCP(tcpLn); err != nil {
			log.Printf("run: carbon tcp listener stopped: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestSrv.ServeUDP(udpConn); err != nil {
			log.Printf("run: carbon udp listener stopped: %v", err)
		}
	}()

	linkSrv := &linkrpc.Server{Fetch: func(names []string, start, stop int64) (int64, int64, [][]float64, error) {
		alignedStart, resolution, _, result, err := rd.Fetch(names, start, stop)
		return alignedStart, resolution, result, err
	}}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := linkSrv.Serve(linkLn); err != nil {
			log.Printf("run: link rpc listener stopped: %v", err)
		}
	}()

	adminMux := selfmetrics.NewAdminMux(registry, buf, task, housekeepingKinds)
	adminSrv := &http.Server{Addr: cfg.AdminBind, Handler: adminMux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("run: admin listener stopped: %v", err)
		}
	}()

	log.Printf("hisser: listening carbon=%s(tcp)/%s(udp) link=%s admin=%s data=%s",
		cfg.CarbonTCPBind, cfg.CarbonUDPBind, cfg.LinkBind, cfg.AdminBind, cfg.DataDir)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHousework(ctx, cfg, cats, buf, idx, task, rules)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("hisser: shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), runShutdownTimeout)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("run: admin shutdown: %v", err)
	}
	tcpLn.Close()
	udpConn.Close()
	linkLn.Close()

	if res, names := buf.Tick(true, time.Now().Unix()); res != nil || len(names) > 0 {
		if err := flushResult(cats[0], idx, res, names); err != nil {
			log.Printf("run: final flush failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("hisser: shutdown complete")
	case <-time.After(runShutdownTimeout):
		log.Println("hisser: shutdown timed out, exiting anyway")
	}
	return nil
}

// runHousework ticks the buffer every cfg.HouseworkInterval, writing
// flushed rows to a block and indexing newly seen names, and runs
// merge/downsample/cleanup through the task manager every
// housekeepingPeriod ticks — slower operations than a flush, and each
// single-flighted so a slow sweep never overlaps itself.
func runHousework(ctx context.Context, cfg config.Config, cats []*catalogue.List, buf *buffer.Buffer, idx *index.Index, task *taskmanager.Manager, rules *agg.Rules) {
	ticker := time.NewTicker(cfg.HouseworkInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			res, names := buf.Tick(false, time.Now().Unix())
			if res != nil || len(names) > 0 {
				if err := flushResult(cats[0], idx, res, names); err != nil {
					log.Printf("hisser: flush failed: %v", err)
				}
			}

			if tick%housekeepingPeriod != 0 {
				continue
			}
			task.Run(ctx, "merge", func(ctx context.Context) error { return runMergeAll(cfg, cats) })
			task.Run(ctx, "downsample", func(ctx context.Context) error { return runDownsampleAll(cfg, cats, rules) })
			task.Run(ctx, "cleanup", func(ctx context.Context) error { return runCleanupAll(cfg, cats, time.Now()) })
		}
	}
}

// flushResult indexes newly observed metric names and, if rows were
// flushed, writes them as a new immutable block and notifies the
// catalogue so readers pick it up.
func flushResult(cat *catalogue.List, idx *index.Index, res *buffer.FlushResult, newNames []string) error {
	for _, name := range newNames {
		if err := idx.Add(name); err != nil {
			log.Printf("hisser: index add %q: %v", name, err)
		}
	}
	if res == nil || len(res.Data) == 0 {
		return nil
	}

	info := model.NewBlockInfo(res.Start, res.Start+int64(res.Rows)*res.Resolution, res.Resolution, "")
	if _, err := blockstore.Write(cat.Dir(), info, res.Data, res.Names); err != nil {
		return fmt.Errorf("flush: write block: %w", err)
	}
	return cat.NotifyChanged()
}
