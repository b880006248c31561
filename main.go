// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go-button-wars/button"
	"go-button-wars/config"
	"go-button-wars/controllers"
	"go-button-wars/engine"
	"go-button-wars/game"
	"go-button-wars/hal"
	"go-button-wars/led"
	"go-button-wars/logger"
	"go-button-wars/middleware"
	"go-button-wars/models"
	"go-button-wars/shared"
	"go-button-wars/telemetry"
	"go-button-wars/watchdog"
	"golang.org/x/sync/errgroup"
)

// exitWatchdogReset is the process exit code when the simulated watchdog starves.
const exitWatchdogReset = 3

// app holds every wired component of one device.
type app struct {
	cfg   config.Config
	clock clockwork.Clock

	board    *hal.Board
	buttons  [2]*button.Button
	leds     *led.Board
	hub      *telemetry.Hub
	recorder *telemetry.Recorder
	nats     *telemetry.NATSSink
	metrics  *telemetry.MetricsSink
	sink     telemetry.Sink

	failSafe *watchdog.FailSafe
	store    *game.Store
	wd       *shared.Cell[hal.Watchdog]
	feeder   *watchdog.Feeder
	monitor  *watchdog.LongPressMonitor
	engine   *engine.Engine
}

// newApp runs the boot sequence: peripherals, sinks, fail-safe, game
// singleton, watchdog, engine. Nothing is started yet except the watchdog
// countdown.
func newApp(ctx context.Context, cfg config.Config, clock clockwork.Clock) (*app, error) {
	a := &app{cfg: cfg, clock: clock}

	board, err := hal.Open(cfg.HALOptions(), clock)
	if err != nil {
		return nil, fmt.Errorf("open peripherals: %w", err)
	}
	a.board = board

	for i, in := range []hal.Input{board.ButtonP1, board.ButtonP2} {
		b, err := button.New(models.Roles[i], in, clock, cfg.Debounce)
		if err != nil {
			return nil, fmt.Errorf("button %s: %w", models.Roles[i], err)
		}
		a.buttons[i] = b
	}
	a.leds = led.NewBoard(board, clock)

	if err := a.openSinks(); err != nil {
		return nil, err
	}

	a.failSafe = watchdog.NewFailSafe(clock, a.sink)
	a.store = game.NewStore(clock, a.failSafe, a.sink)
	if err := a.store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize game: %w", err)
	}

	a.wd = shared.NewCell[hal.Watchdog]("watchdog", board.Watchdog, clock)
	if err := watchdog.Start(ctx, a.wd, cfg.WatchdogTimeout); err != nil {
		return nil, err
	}
	a.feeder = watchdog.NewFeeder(a.wd, a.failSafe, cfg.FeedInterval, clock)
	a.monitor = watchdog.NewLongPressMonitor(a.buttons[0], a.buttons[1], a.failSafe, cfg.MonitorConfig(), clock, a.sink)

	a.engine, err = engine.New(engine.Deps{
		P1:      a.buttons[0],
		P2:      a.buttons[1],
		Signals: a.leds,
		Store:   a.store,
		Sink:    a.sink,
		Clock:   clock,
	}, cfg.EngineSettings())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return a, nil
}

// openSinks builds the telemetry fan-out: websocket hub and recorder always,
// NATS and CloudWatch when configured.
func (a *app) openSinks() error {
	a.hub = telemetry.NewHub(256)
	a.recorder = telemetry.NewRecorder(500)
	sinks := telemetry.Multi{a.hub, a.recorder}

	if a.cfg.NATSURL != "" {
		ns, err := telemetry.DialNATS(a.cfg.NATSURL, a.cfg.NATSSubject)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		a.nats = ns
		sinks = append(sinks, ns)
	}
	if a.cfg.MetricsEnabled {
		ms, err := telemetry.NewCloudWatchSink(a.cfg.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("cloudwatch: %w", err)
		}
		a.metrics = ms
		a.hub.OnCount(ms.PublishConnections)
		sinks = append(sinks, ms)
	}
	a.sink = sinks
	return nil
}

// router registers the HTTP surface.
func (a *app) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", controllers.Health)
	router.GET("/status", controllers.Status(a.store, a.engine, a.failSafe))
	router.GET("/events", controllers.RecentEvents(a.recorder))
	router.GET("/telemetry", controllers.Telemetry(a.hub))
	router.GET("/qrcode", controllers.GetQRCode)

	sim := router.Group("/sim/buttons", middleware.SimOnly(a.board.Sim))
	{
		sim.POST("/:player/press", controllers.SimPress(a.board.Sim))
		sim.POST("/:player/release", controllers.SimRelease(a.board.Sim))
	}
	return router
}

func (a *app) handler() http.Handler {
	r := a.router()
	if !a.cfg.XRayEnabled {
		return r
	}
	logger.Info().Msg("[app.handler] X-Ray tracing enabled")
	return xray.Handler(xray.NewFixedSegmentNamer("button-wars"), r)
}

// calibrate replaces each button's debounce with a measured one. Bots never
// bounce, so the simulated backend skips it while they play.
func (a *app) calibrate(ctx context.Context) error {
	if !a.cfg.CalibrateDebounce {
		return nil
	}
	if a.board.Sim != nil && a.cfg.SimBots {
		logger.Warn().Msg("[app.calibrate] Skipping debounce calibration with bot players")
		return nil
	}
	for _, b := range a.buttons {
		ld := a.leds.For(models.LedFor(b.Role()))
		ld.TurnOn()
		d, err := b.MeasureMinimalDebounce(ctx, a.cfg.CalibrationWindow, a.cfg.CalibrationIterations)
		ld.TurnOff()
		if err != nil {
			return fmt.Errorf("calibrate %s: %w", b.Role(), err)
		}
		if err := b.SetDebounce(d); err != nil {
			return err
		}
		a.sink.Publish(telemetry.Event{
			Type: telemetry.EventCalibration,
			Time: a.clock.Now(),
			Data: map[string]interface{}{"player": b.Role().String(), "debounceMs": d.Milliseconds()},
		})
	}
	return nil
}

// run starts every task and returns when the first one fails or ctx ends.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.feeder.Run(ctx) })
	g.Go(func() error { return a.monitor.Run(ctx) })
	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error {
		if err := a.calibrate(ctx); err != nil {
			return err
		}
		return a.engine.Run(ctx)
	})
	if a.metrics != nil {
		g.Go(func() error { return a.metrics.Run(ctx) })
	}
	if sim := a.board.Sim; sim != nil {
		g.Go(func() error { return sim.Watchdog.Run(ctx) })
		if a.cfg.SimBots {
			now := a.clock.Now().UnixNano()
			bots := []*hal.Bot{
				hal.NewBot("bot-1", sim.LedP1, sim.ButtonP1, a.clock, now),
				hal.NewBot("bot-2", sim.LedP2, sim.ButtonP2, a.clock, now+1),
			}
			for _, bot := range bots {
				bot := bot
				g.Go(func() error { return bot.Run(ctx) })
			}
		}
	}

	srv := &http.Server{Addr: a.cfg.ListenAddr, Handler: a.handler(), ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("[app.run] 🚀 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) close() {
	a.leds.AllOff()
	if err := a.nats.Close(); err != nil {
		logger.Warn().Err(err).Msg("[app.close] NATS drain failed")
	}
	if err := a.board.Close(); err != nil {
		logger.Warn().Err(err).Msg("[app.close] Peripheral release failed")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("[main] No .env file loaded")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal().Err(err).Msg("[main] Failed to load configuration")
	}

	if err := logger.InitLogger(cfg.LogDir); err != nil {
		logger.Fatal().Err(err).Msg("[main] Failed to initialize logger")
	}
	defer logger.Close()
	logger.SetLogLevel(cfg.Environment)
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("[main] Ignoring log level")
		}
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	controllers.SetConfig(cfg.ApplicationURL, cfg.WebsocketURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, clockwork.NewRealClock())
	if err != nil {
		logger.Fatal().Err(err).Msg("[main] Boot failed")
	}
	defer a.close()

	logger.Info().Str("backend", cfg.HALBackend).Int("rounds", cfg.TotalRounds).Msg("[main] ✅ Button Wars ready")

	err = a.run(ctx)
	switch {
	case errors.Is(err, hal.ErrWatchdogReset):
		logger.Error().Str("reason", a.failSafe.Reason()).Msg("[main] 🔁 Watchdog reset")
		a.close()
		os.Exit(exitWatchdogReset)
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Error().Err(err).Msg("[main] Stopped with error")
		a.close()
		os.Exit(1)
	}
	logger.Info().Msg("[main] Shut down")
}
