package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oogsj/coastwatch/internal/domain"
)

// buoyVariable describes one tracked EMAC variable code and the sensor it
// feeds. Codes are fixed by the upstream service.
type buoyVariable struct {
	Code     string
	Key      string // sensor name prefix, matches the historical catalog
	Variable string
	Unit     domain.Unit
}

// buoyVariables is the canonical set of seven codes tracked on the EACC buoy.
var buoyVariables = []buoyVariable{
	{Code: "14", Key: "altura_olas", Variable: "Altura de Olas", Unit: domain.Unit{Name: "Metros", Symbol: "m"}},
	{Code: "15", Key: "periodo_olas", Variable: "Periodo de Olas", Unit: domain.Unit{Name: "Segundos", Symbol: "s"}},
	{Code: "32", Key: "direccion_olas", Variable: "Direccion de Olas", Unit: domain.Unit{Name: "Grados", Symbol: "°"}},
	{Code: "23", Key: "velocidad_corriente", Variable: "Velocidad de Corriente", Unit: domain.Unit{Name: "Metros por segundo", Symbol: "m/s"}},
	{Code: "29", Key: "direccion_corriente", Variable: "Direccion de Corriente", Unit: domain.Unit{Name: "Grados", Symbol: "°"}},
	{Code: "33", Key: "radiacion_par", Variable: "Radiacion PAR", Unit: domain.Unit{Name: "Micromoles por metro cuadrado por segundo", Symbol: "µmol/m²/s"}},
	{Code: "08", Key: "bateria", Variable: "Tension de Bateria", Unit: domain.Unit{Name: "Voltios", Symbol: "V"}},
}

// buoyTimestampLayouts covers the formats the EMAC service has been seen
// emitting.
var buoyTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// BuoyConfig configures the wave buoy adapter.
type BuoyConfig struct {
	BaseURL     string
	StationCode string
	Platform    string
	LocationID  int
}

// Buoy pulls one two-column CSV time series per tracked variable code from
// the EMAC history endpoint.
type Buoy struct {
	cfg    BuoyConfig
	client *Client
	logger *slog.Logger
}

// NewBuoy creates the wave buoy adapter.
func NewBuoy(cfg BuoyConfig, client *Client, logger *slog.Logger) *Buoy {
	return &Buoy{cfg: cfg, client: client, logger: logger}
}

func (b *Buoy) Name() string { return "buoy" }

// Fetch retrieves every tracked variable series. A failing variable is
// logged and skipped; the fetch only fails when no variable could be
// retrieved at all.
func (b *Buoy) Fetch(ctx context.Context) ([]domain.Reading, error) {
	var (
		readings []domain.Reading
		firstErr error
		failed   int
	)

	for _, v := range buoyVariables {
		series, err := b.fetchVariable(ctx, v)
		if err != nil {
			b.logger.Warn("buoy variable fetch failed", "variable", v.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		readings = append(readings, series...)
	}

	if failed == len(buoyVariables) {
		return nil, firstErr
	}
	return readings, nil
}

func (b *Buoy) fetchVariable(ctx context.Context, v buoyVariable) ([]domain.Reading, error) {
	q := url.Values{
		"station_code": {b.cfg.StationCode},
		"var_code":     {v.Code},
	}
	body, err := b.client.Get(ctx, b.Name(), b.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &domain.FormatError{
			Source: b.Name(),
			Err:    fmt.Errorf("empty response for variable %s", v.Key),
		}
	}

	identity := domain.SensorIdentity{
		Platform: b.cfg.Platform,
		Variable: v.Variable,
		Unit:     v.Unit,
		Sensor:   fmt.Sprintf("%s - %s", v.Key, b.cfg.StationCode),
	}

	var out []domain.Reading
	for _, line := range strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		if len(cols) < 2 {
			continue
		}

		ts, ok := parseBuoyTimestamp(strings.TrimSpace(cols[0]))
		if !ok {
			// Header line or malformed row; both are dropped the same way.
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(cols[1]), 64)
		if err != nil {
			continue
		}

		out = append(out, domain.Reading{
			Identity:        identity,
			Timestamp:       ts,
			Value:           value,
			QualityFlag:     domain.QualityProbablyGood,
			ProcessingLevel: domain.ProcessingRaw,
			LocationID:      b.cfg.LocationID,
		})
	}

	return out, nil
}

func parseBuoyTimestamp(raw string) (time.Time, bool) {
	for _, layout := range buoyTimestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
