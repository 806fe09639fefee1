package source

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/oogsj/coastwatch/internal/domain"
)

// tideGaugeLayout matches the table cells published by the gauge page,
// e.g. "09/03/25 23:40".
const tideGaugeLayout = "02/01/06 15:04"

// TideGaugeConfig configures the mareograph HTML scraper.
type TideGaugeConfig struct {
	URL        string
	Platform   string
	LocationID int
	Timeout    time.Duration
}

// TideGauge scrapes the port tide gauge's published HTML table of
// (date-time, level in metres) rows.
type TideGauge struct {
	cfg    TideGaugeConfig
	logger *slog.Logger
}

// NewTideGauge creates the tide gauge adapter.
func NewTideGauge(cfg TideGaugeConfig, logger *slog.Logger) *TideGauge {
	return &TideGauge{cfg: cfg, logger: logger}
}

func (t *TideGauge) Name() string { return "mareograph" }

func (t *TideGauge) identity() domain.SensorIdentity {
	return domain.SensorIdentity{
		Platform: t.cfg.Platform,
		Variable: "Nivel del Mar",
		Unit:     domain.Unit{Name: "Metros", Symbol: "m"},
		Sensor:   "Mareografo - Puerto Comodoro Rivadavia",
	}
}

// Fetch scrapes the gauge table. Rows with a cell count other than two are
// skipped; individual unparsable rows are logged and skipped, never fatal.
func (t *TideGauge) Fetch(ctx context.Context) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.NetworkError{Source: t.Name(), Err: err}
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(t.cfg.Timeout)

	var (
		readings []domain.Reading
		sawTable bool
		fetchErr error
	)

	c.OnHTML("table.dataframe", func(*colly.HTMLElement) {
		sawTable = true
	})

	c.OnHTML("table.dataframe tr", func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		if cells.Length() != 2 {
			return
		}

		rawTS := strings.TrimSpace(cells.Eq(0).Text())
		rawLevel := strings.TrimSpace(cells.Eq(1).Text())

		ts, err := time.ParseInLocation(tideGaugeLayout, rawTS, time.UTC)
		if err != nil {
			t.logger.Warn("skipping gauge row with bad timestamp", "raw", rawTS)
			return
		}
		level, err := strconv.ParseFloat(rawLevel, 64)
		if err != nil {
			t.logger.Warn("skipping gauge row with bad level", "raw", rawLevel, "ts", rawTS)
			return
		}

		readings = append(readings, domain.Reading{
			Identity:        t.identity(),
			Timestamp:       ts,
			Value:           level,
			QualityFlag:     domain.QualityProbablyGood,
			ProcessingLevel: domain.ProcessingRaw,
			LocationID:      t.cfg.LocationID,
		})
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = &domain.NetworkError{Source: t.Name(), Err: err}
	})

	if err := c.Visit(t.cfg.URL); err != nil && fetchErr == nil {
		fetchErr = &domain.NetworkError{Source: t.Name(), Err: err}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if !sawTable {
		return nil, &domain.FormatError{
			Source: t.Name(),
			Err:    errors.New("no dataframe table in response"),
		}
	}

	return readings, nil
}
