// Package tasks assembles the static task registry: one entry per upstream
// source, with its adapter, cadence, and runner options. Both the daemon and
// the one-shot command wire their tasks here so the two can never drift.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oogsj/coastwatch/internal/config"
	"github.com/oogsj/coastwatch/internal/ingest"
	"github.com/oogsj/coastwatch/internal/scheduler"
	"github.com/oogsj/coastwatch/internal/source"
)

// Platform names and location ids as seeded in the catalog.
const (
	platformTideGauge    = "Mareografo Puerto Comodoro Rivadavia"
	platformTideForecast = "Hidrografia Naval - Tablas de Marea"
	platformBuoy         = "Boya EMAC EACC"
	platformPuerto       = "Davis Puerto Comodoro Rivadavia"
	platformMuelle       = "APPCR Muelle Caleta Cordova"

	locationPort        = 1
	locationBuoy        = 2
	locationCaletaMuele = 4
)

// Build creates the full registry. Every configured source appears here;
// the documents task is always last.
func Build(cfg *config.Config, client *source.Client, runner *ingest.Runner, clock clockwork.Clock, logger *slog.Logger) []scheduler.Task {
	tideGauge := source.NewTideGauge(source.TideGaugeConfig{
		URL:        cfg.TideGaugeURL,
		Platform:   platformTideGauge,
		LocationID: locationPort,
		Timeout:    cfg.RequestTimeout,
	}, logger)

	tideForecast := source.NewTideForecast(source.TideForecastConfig{
		URL:        cfg.TideForecastURL,
		Locality:   cfg.TideForecastLocality,
		Platform:   platformTideForecast,
		LocationID: locationPort,
		Timeout:    cfg.RequestTimeout,
	}, clock, logger)

	buoy := source.NewBuoy(source.BuoyConfig{
		BaseURL:     cfg.BuoyBaseURL,
		StationCode: cfg.BuoyStationCode,
		Platform:    platformBuoy,
		LocationID:  locationBuoy,
	}, client, logger)

	puerto := source.NewWeatherLink(source.WeatherLinkConfig{
		BaseURL:    cfg.WeatherLinkBaseURL,
		StationID:  cfg.PuertoStationID,
		APIKey:     cfg.PuertoAPIKey,
		APISecret:  cfg.PuertoAPISecret,
		TaskName:   "weather_puerto",
		Platform:   platformPuerto,
		LocationID: locationPort,
	}, client, logger)

	muelle := source.NewWeatherLink(source.WeatherLinkConfig{
		BaseURL:    cfg.WeatherLinkBaseURL,
		StationID:  cfg.MuelleStationID,
		APIKey:     cfg.MuelleAPIKey,
		APISecret:  cfg.MuelleAPISecret,
		TaskName:   "weather_muelle",
		Platform:   platformMuelle,
		LocationID: locationCaletaMuele,
	}, client, logger)

	openalex := source.NewOpenAlex(source.OpenAlexConfig{
		URL:    cfg.OpenAlexURL,
		Filter: cfg.OpenAlexFilter,
	}, client, logger)

	return []scheduler.Task{
		sensorTask(runner, tideGauge, 10*time.Minute, ingest.Options{}),
		sensorTask(runner, buoy, time.Hour, ingest.Options{}),
		sensorTask(runner, tideForecast, 6*time.Hour, ingest.Options{}),
		// The station API replays the last console record between updates;
		// the staleness guard keeps those replays out of the database.
		sensorTask(runner, puerto, 10*time.Minute, ingest.Options{SkipStale: true}),
		sensorTask(runner, muelle, 10*time.Minute, ingest.Options{SkipStale: true}),
		{
			Name:  openalex.Name(),
			Every: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				_, err := runner.RunDocuments(ctx, openalex)
				return err
			},
		},
	}
}

func sensorTask(runner *ingest.Runner, src source.Source, every time.Duration, opts ingest.Options) scheduler.Task {
	return scheduler.Task{
		Name:  src.Name(),
		Every: every,
		Run: func(ctx context.Context) error {
			_, err := runner.Run(ctx, src, opts)
			return err
		},
	}
}
