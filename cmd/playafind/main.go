package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"playafind/internal/config"
	"playafind/internal/dataset"
	"playafind/internal/events"
	"playafind/internal/favorites"
	"playafind/internal/geo"
	"playafind/internal/geocode"
	appLog "playafind/internal/log"
	"playafind/internal/web"
)

type serveCmd struct {
	Listen string `arg:"--listen" help:"HTTP listen address (overrides config if set)"`
}

type eventsCmd struct {
	Lat      float64 `arg:"--lat" help:"Viewer latitude for distance filtering"`
	Lon      float64 `arg:"--lon" help:"Viewer longitude for distance filtering"`
	Radius   float64 `arg:"--radius" help:"Distance radius in meters (0 = config default)"`
	Window   int     `arg:"--window" help:"Lookahead window in minutes (0 = config default)"`
	Types    string  `arg:"--types" help:"Comma-separated event type abbreviations"`
	Active   bool    `arg:"--active" help:"Only events happening or starting soon"`
	Upcoming bool    `arg:"--upcoming" help:"Only events not yet started"`
	Sort     string  `arg:"--sort" default:"default" help:"Sort strategy: default, distance, time, ending, type, title"`
	Now      string  `arg:"--now" help:"RFC3339 reference time override"`
}

type geocodeCmd struct {
	Address []string `arg:"positional,required" help:"Address to resolve, e.g. '6:00 & D'"`
}

type refreshCmd struct{}

type args struct {
	Serve   *serveCmd   `arg:"subcommand:serve" help:"Run the HTTP API server"`
	Events  *eventsCmd  `arg:"subcommand:events" help:"Run one processing pass and print matching events"`
	Geocode *geocodeCmd `arg:"subcommand:geocode" help:"Resolve a city address to lat/lon"`
	Refresh *refreshCmd `arg:"subcommand:refresh" help:"Force a dataset refresh and print a summary"`

	Config string `arg:"--config" default:"./playafind.yaml" help:"Path to config file"`
	Debug  bool   `arg:"--debug" help:"Enable debug logging"`
}

func (args) Description() string {
	return "playafind locates and filters time-bounded events on the open playa."
}

func main() {
	// A .env alongside the binary is a convenience for development; its
	// absence is not an error.
	_ = godotenv.Load()

	var a args
	p := arg.MustParse(&a)

	if a.Debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(a.Config)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", a.Config)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	switch {
	case a.Serve != nil:
		if a.Serve.Listen != "" {
			conf.Listen = a.Serve.Listen
		}
		err = runServe(ctx, conf)
	case a.Events != nil:
		err = runEvents(ctx, conf, a.Events)
	case a.Geocode != nil:
		err = runGeocode(a.Geocode)
	case a.Refresh != nil:
		err = runRefresh(ctx, conf)
	default:
		p.WriteHelp(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func openStores(conf *config.Config) (*dataset.Loader, *favorites.Store, error) {
	loader := dataset.NewLoader(conf.DataBaseURL, conf.CacheDir)
	favs, err := favorites.Open(conf.FavoritesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open favorites store: %w", err)
	}
	return loader, favs, nil
}

func runServe(ctx context.Context, conf *config.Config) error {
	loader, favs, err := openStores(conf)
	if err != nil {
		return err
	}

	srv := web.NewServer(conf, loader, favs)
	if err := srv.Refresh(ctx); err != nil {
		// Serve anyway; the first request retries the load.
		appLog.Error("initial dataset load failed", err)
	}

	if removed, err := favs.Sweep(time.Now()); err != nil {
		appLog.Error("favorites sweep failed", err)
	} else if removed > 0 {
		appLog.Info("swept stale favorites", "removed", removed)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := srv.Refresh(refreshCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	return srv.Run(ctx)
}

func runEvents(ctx context.Context, conf *config.Config, cmd *eventsCmd) error {
	loader, favs, err := openStores(conf)
	if err != nil {
		return err
	}

	snap, err := loader.Refresh(ctx, conf.Year)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		loc = time.Local
	}

	params := events.Params{
		RadiusMeters:      conf.DefaultRadiusMeters,
		TimeWindowMinutes: conf.DefaultWindowMinutes,
		Location:          loc,
		ActiveOnly:        cmd.Active,
		UpcomingOnly:      cmd.Upcoming,
	}
	if cmd.Lat != 0 || cmd.Lon != 0 {
		params.ViewerLocation = &geo.Coordinate{Lat: cmd.Lat, Lon: cmd.Lon}
	}
	if cmd.Radius > 0 {
		params.RadiusMeters = cmd.Radius
	}
	if cmd.Window > 0 {
		params.TimeWindowMinutes = cmd.Window
	}
	if cmd.Types != "" {
		params.EventTypes = make(map[string]bool)
		for _, abbr := range strings.Split(cmd.Types, ",") {
			if abbr = strings.TrimSpace(abbr); abbr != "" {
				params.EventTypes[abbr] = true
			}
		}
	}
	if cmd.Now != "" {
		now, err := time.Parse(time.RFC3339, cmd.Now)
		if err != nil {
			return fmt.Errorf("invalid --now value %q: %w", cmd.Now, err)
		}
		params.Now = now
	}
	params.FavoriteIDs = favs.IDs()

	processed := events.Process(snap.Events, snap.Index, params)
	processed = events.Sort(processed, events.SortStrategy(cmd.Sort))

	for _, pe := range processed {
		line := fmt.Sprintf("[%s] %s  %s  %s",
			strings.ToUpper(pe.Status.String()),
			pe.Start.Format("Mon 15:04"),
			pe.Title,
			pe.LocationLabel,
		)
		if pe.DistanceMeters != nil {
			line += fmt.Sprintf("  (%sm)", humanize.CommafWithDigits(*pe.DistanceMeters, 0))
		}
		if pe.TimeLabel != "" {
			line += "  " + pe.TimeLabel
		}
		fmt.Println(line)
	}
	fmt.Printf("%s events matched\n", humanize.Comma(int64(len(processed))))
	return nil
}

func runGeocode(cmd *geocodeCmd) error {
	address := strings.Join(cmd.Address, " ")
	coord, err := geocode.ResolveAddress(address)
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %.6f, %.6f\n", address, coord.Lat, coord.Lon)
	return nil
}

func runRefresh(ctx context.Context, conf *config.Config) error {
	loader := dataset.NewLoader(conf.DataBaseURL, conf.CacheDir)
	snap, err := loader.Refresh(ctx, conf.Year)
	if err != nil {
		return err
	}
	fmt.Printf("year %d: %s events, %s art, %s camps (%s fetched)\n",
		snap.Year,
		humanize.Comma(int64(len(snap.Events))),
		humanize.Comma(int64(snap.Index.ArtCount())),
		humanize.Comma(int64(snap.Index.CampCount())),
		humanize.Bytes(uint64(loader.BytesFetched())),
	)
	return nil
}
