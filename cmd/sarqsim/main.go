// Command sarqsim runs simulated conversations across a lossy channel
// and reports how the protocol coped. Optional HTTP endpoints expose
// Prometheus metrics and a live websocket event feed while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	sarq "github.com/nicosta1132/sarq-go"
	"github.com/nicosta1132/sarq-go/config"
	"github.com/nicosta1132/sarq-go/emulator"
	"github.com/nicosta1132/sarq-go/feed"
	"github.com/nicosta1132/sarq-go/metrics"
)

const exampleConfigPath = "sarqsim.example.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("c", "", "path to a YAML config file")
	genConfig := flag.Bool("gen-config", false, "write "+exampleConfigPath+" and exit")
	messages := flag.Int("messages", 0, "messages per trial, overrides the config when > 0")
	trials := flag.Int("trials", 0, "number of trials, overrides the config when > 0")
	seed := flag.Uint64("seed", 0, "base random seed, overrides the config when > 0")
	loss := flag.Float64("loss", -1, "packet loss probability, overrides the config when >= 0")
	corrupt := flag.Float64("corrupt", -1, "packet corruption probability, overrides the config when >= 0")
	realtime := flag.Float64("realtime", -1, "wall seconds per simulated time unit, overrides the config when >= 0")
	trace := flag.Int("trace", -1, "trace level 0-3, overrides the config when >= 0")
	flag.Parse()

	if *genConfig {
		if err := config.WriteExampleConfig(exampleConfigPath); err != nil {
			return err
		}
		fmt.Println("wrote", exampleConfigPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *messages > 0 {
		cfg.Harness.Messages = *messages
	}
	if *trials > 0 {
		cfg.Harness.Trials = *trials
	}
	if *seed > 0 {
		cfg.Harness.Seed = *seed
	}
	if *loss >= 0 {
		cfg.Channel.LossProb = *loss
	}
	if *corrupt >= 0 {
		cfg.Channel.CorruptProb = *corrupt
	}
	if *realtime >= 0 {
		cfg.Harness.RealTime = *realtime
	}
	if *trace >= 0 {
		cfg.Harness.Trace = *trace
	}
	// Flags can push a loaded config out of its valid range.
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := newSession(uuid.New(), cfg.Harness.Trials)

	if cfg.Feed.Enabled {
		hub := feed.NewHub()
		feedServer := feed.NewServer(cfg.Feed.Listen, cfg.Feed.Path, hub)
		if err := feedServer.Start(); err != nil {
			return err
		}
		defer shutdownServer("feed", feedServer.Shutdown)
		sess.hub = hub
		log.Printf("event feed on ws://%s%s", feedServer.Addr(), cfg.Feed.Path)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, cfg.Metrics.HealthPath)
		metricsServer.MustRegister(metrics.NewProtocolCollector(sess), metrics.NewHarnessCollector(sess))
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer shutdownServer("metrics", metricsServer.Shutdown)
		log.Printf("metrics on http://%s%s", metricsServer.Addr(), cfg.Metrics.Path)
	}

	log.Printf("run %s: %d trial(s) of %d message(s), loss %.2f, corruption %.2f, seed %d",
		sess.id, cfg.Harness.Trials, cfg.Harness.Messages,
		cfg.Channel.LossProb, cfg.Channel.CorruptProb, cfg.Harness.Seed)

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for trial := 0; trial < cfg.Harness.Trials; trial++ {
		trial := trial
		g.Go(func() error {
			emCfg := cfg.EmulatorConfig()
			emCfg.Seed = cfg.Harness.Seed + uint64(trial)
			em, err := emulator.New(emCfg, trialTracer(cfg.TraceLevel(), trial), &trialObserver{sess: sess, trial: trial})
			if err != nil {
				return err
			}
			res, err := em.Run(gctx)
			if err != nil {
				return errors.Wrapf(err, "trial %d", trial)
			}
			sess.complete(trial, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sess.report(os.Stdout, time.Since(started))

	if cfg.Metrics.Enabled || cfg.Feed.Enabled {
		log.Println("serving until interrupted, press Ctrl+C to stop")
		<-ctx.Done()
	}
	return nil
}

func shutdownServer(name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("%s shutdown: %v", name, err)
	}
}

// trialTracer gives every trial its own prefixed logger so interleaved
// output stays readable.
func trialTracer(level sarq.TraceLevel, trial int) *sarq.Tracer {
	if level == sarq.TraceOff {
		return nil
	}
	return sarq.NewTracer(level, log.New(os.Stderr, fmt.Sprintf("trial %d | ", trial), 0))
}

// session aggregates trial results and serves them to the metrics
// collectors and the event feed.
type session struct {
	id      uuid.UUID
	planned int
	hub     *feed.Hub

	mu     sync.Mutex
	done   int
	totals emulator.Result
	trials []emulator.Result
}

func newSession(id uuid.UUID, planned int) *session {
	return &session{id: id, planned: planned, trials: make([]emulator.Result, planned)}
}

func (s *session) complete(trial int, res emulator.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials[trial] = res
	s.done++
	s.totals.Accumulate(res)
}

func (s *session) observe(trial int, ev emulator.TraceEvent) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastJSON(feedEvent{RunID: s.id.String(), Trial: trial, Event: ev})
}

func (s *session) SenderStats() sarq.SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.Sender
}

func (s *session) ReceiverStats() sarq.ReceiverStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.Receiver
}

func (s *session) ChannelStats() metrics.ChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metrics.ChannelStats{
		Generated:     s.totals.Generated,
		Accepted:      s.totals.Accepted,
		Refused:       s.totals.Refused,
		LostData:      s.totals.LostData,
		LostAcks:      s.totals.LostAcks,
		CorruptedData: s.totals.CorruptedData,
		CorruptedAcks: s.totals.CorruptedAcks,
	}
}

func (s *session) TrialsCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *session) TrialsPlanned() int { return s.planned }

func (s *session) SimTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.SimTime
}

func (s *session) TimerWarnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.TimerWarnings
}

func (s *session) report(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "run %s: %d/%d trials in %s\n", s.id, s.done, s.planned, elapsed.Round(time.Millisecond))
	for i, res := range s.trials {
		fmt.Fprintf(w, "  trial %d: delivered %d of %d accepted, resent %d, sim time %.1f\n",
			i, res.Receiver.Delivered, res.Accepted, res.Sender.Resent, res.SimTime)
	}
	t := s.totals
	fmt.Fprintf(w, "traffic: generated %d, accepted %d, refused %d\n", t.Generated, t.Accepted, t.Refused)
	fmt.Fprintf(w, "channel: lost %d data / %d acks, corrupted %d data / %d acks\n",
		t.LostData, t.LostAcks, t.CorruptedData, t.CorruptedAcks)
	fmt.Fprintf(w, "sender: submitted %d, resent %d, acks %d new / %d seen\n",
		t.Sender.Submitted, t.Sender.Resent, t.Sender.NewAcks, t.Sender.AcksReceived)
	fmt.Fprintf(w, "receiver: received %d, delivered %d, buffered %d, duplicates %d\n",
		t.Receiver.Received, t.Receiver.Delivered, t.Receiver.Buffered, t.Receiver.Duplicates)
	if t.TimerWarnings > 0 {
		fmt.Fprintf(w, "timers: %d start(s) while already armed\n", t.TimerWarnings)
	}
}

// feedEvent is the JSON message pushed to feed subscribers.
type feedEvent struct {
	RunID string              `json:"run_id"`
	Trial int                 `json:"trial"`
	Event emulator.TraceEvent `json:"event"`
}

// trialObserver forwards one trial's events to the shared session.
type trialObserver struct {
	sess  *session
	trial int
}

func (o *trialObserver) Observe(ev emulator.TraceEvent) {
	o.sess.observe(o.trial, ev)
}
