package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/jonboulle/clockwork"

	"github.com/oogsj/coastwatch/internal/domain"
)

// TideForecastConfig configures the naval hydrography tide-table scraper.
type TideForecastConfig struct {
	URL        string
	Locality   string // form code, e.g. "COMO" for Comodoro Rivadavia
	Platform   string
	LocationID int
	Timeout    time.Duration
}

// TideForecast posts the current year/month/locality form to the naval
// hydrography service and parses the predicted high/low water table.
// Only some rows carry an explicit day; continuation rows inherit the last
// one seen.
type TideForecast struct {
	cfg    TideForecastConfig
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTideForecast creates the tide forecast adapter. The clock decides
// which year/month to request.
func NewTideForecast(cfg TideForecastConfig, clock clockwork.Clock, logger *slog.Logger) *TideForecast {
	return &TideForecast{cfg: cfg, clock: clock, logger: logger}
}

func (t *TideForecast) Name() string { return "tide_forecast" }

func (t *TideForecast) identity() domain.SensorIdentity {
	return domain.SensorIdentity{
		Platform: t.cfg.Platform,
		Variable: "Altura de Marea Predicha",
		Unit:     domain.Unit{Name: "Metros", Symbol: "m"},
		Sensor:   "Prediccion de Marea - Hidrografia Naval",
	}
}

// Fetch requests the current month's tide table and normalizes its rows.
// Predicted values are tagged estimated/model-output rather than raw.
func (t *TideForecast) Fetch(ctx context.Context) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.NetworkError{Source: t.Name(), Err: err}
	}

	now := t.clock.Now().UTC()
	year, month := now.Year(), int(now.Month())

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(t.cfg.Timeout)

	var (
		readings []domain.Reading
		sawTable bool
		fetchErr error
		lastDay  int
	)

	c.OnHTML("div.LetraMasChica table", func(*colly.HTMLElement) {
		sawTable = true
	})

	c.OnHTML("div.LetraMasChica table tr", func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		if cells.Length() < 3 {
			return
		}

		rawDay := strings.TrimSpace(cells.Eq(0).Text())
		rawTime := strings.TrimSpace(cells.Eq(1).Text())
		rawHeight := strings.Replace(strings.TrimSpace(cells.Eq(2).Text()), ",", ".", 1)

		if rawDay != "" {
			day, err := strconv.Atoi(rawDay)
			if err != nil {
				t.logger.Warn("skipping forecast row with bad day", "raw", rawDay)
				return
			}
			lastDay = day
		}
		if lastDay == 0 {
			return
		}

		hm := strings.SplitN(rawTime, ":", 2)
		if len(hm) != 2 {
			t.logger.Warn("skipping forecast row with bad time", "raw", rawTime)
			return
		}
		hour, errH := strconv.Atoi(hm[0])
		minute, errM := strconv.Atoi(hm[1])
		if errH != nil || errM != nil || hour > 23 || minute > 59 {
			t.logger.Warn("skipping forecast row with bad time", "raw", rawTime)
			return
		}

		height, err := strconv.ParseFloat(rawHeight, 64)
		if err != nil {
			t.logger.Warn("skipping forecast row with bad height", "raw", rawHeight)
			return
		}

		readings = append(readings, domain.Reading{
			Identity:        t.identity(),
			Timestamp:       time.Date(year, time.Month(month), lastDay, hour, minute, 0, 0, time.UTC),
			Value:           height,
			QualityFlag:     domain.QualityEstimated,
			ProcessingLevel: domain.ProcessingModelOutput,
			LocationID:      t.cfg.LocationID,
		})
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = &domain.NetworkError{Source: t.Name(), Err: err}
	})

	form := map[string]string{
		"Fanio":     strconv.Itoa(year),
		"Localidad": t.cfg.Locality,
		"Fmes":      fmt.Sprintf("%02d", month),
		"B1":        "",
	}
	if err := c.Post(t.cfg.URL, form); err != nil && fetchErr == nil {
		fetchErr = &domain.NetworkError{Source: t.Name(), Err: err}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if !sawTable {
		return nil, &domain.FormatError{
			Source: t.Name(),
			Err:    errors.New("tide table not found in response"),
		}
	}

	return readings, nil
}
