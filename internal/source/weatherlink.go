package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/oogsj/coastwatch/internal/domain"
)

// stationField describes one console field the adapter tracks and how it is
// normalized into a catalog variable.
type stationField struct {
	Field    string // key inside the console's data record
	Key      string // sensor name prefix in the catalog
	Variable string
	FromUnit string
	Unit     domain.Unit
	Kind     domain.VariableKind
}

// stationFields is the tracked subset of the console payload. wind_speed is
// cataloged as wind_speed_avg; the console reports a short-window average
// under the plain name.
var stationFields = []stationField{
	{Field: "temp_out", Key: "temp_out", Variable: "Temperatura del Aire", FromUnit: "°F",
		Unit: domain.Unit{Name: "Grados Celsius", Symbol: "°C"}, Kind: domain.KindAirTemperature},
	{Field: "hum_out", Key: "hum_out", Variable: "Humedad Relativa", FromUnit: "%",
		Unit: domain.Unit{Name: "Porcentaje", Symbol: "%"}, Kind: domain.KindRelativeHumidity},
	{Field: "bar", Key: "bar", Variable: "Presion Barometrica", FromUnit: "inHg",
		Unit: domain.Unit{Name: "Hectopascales", Symbol: "hPa"}, Kind: domain.KindBarometricPressure},
	{Field: "wind_speed", Key: "wind_speed_avg", Variable: "Velocidad del Viento", FromUnit: "mph",
		Unit: domain.Unit{Name: "Metros por segundo", Symbol: "m/s"}, Kind: domain.KindWindSpeed},
	{Field: "wind_dir", Key: "wind_dir", Variable: "Direccion del Viento", FromUnit: "°",
		Unit: domain.Unit{Name: "Grados", Symbol: "°"}, Kind: domain.KindDirection},
	{Field: "dew_point", Key: "dew_point", Variable: "Punto de Rocio", FromUnit: "°F",
		Unit: domain.Unit{Name: "Grados Celsius", Symbol: "°C"}, Kind: domain.KindAirTemperature},
	{Field: "rain_rate_clicks", Key: "rain_rate", Variable: "Intensidad de Lluvia", FromUnit: "clicks/min",
		Unit: domain.Unit{Name: "Milimetros por hora", Symbol: "mm/h"}, Kind: domain.KindUnknown},
}

// WeatherLinkConfig configures one Davis station pulled through the
// WeatherLink v2 API.
type WeatherLinkConfig struct {
	BaseURL    string
	StationID  string
	APIKey     string
	APISecret  string
	TaskName   string // e.g. "weather_puerto"
	Platform   string
	LocationID int
}

// WeatherLink reads the current-conditions endpoint for a single Davis
// station and normalizes the console fields to SI units.
type WeatherLink struct {
	cfg       WeatherLinkConfig
	client    *Client
	sentinels domain.Sentinels
	logger    *slog.Logger
}

// NewWeatherLink creates a station adapter. Console sentinels default to the
// Davis set {-1, 255, 32767}.
func NewWeatherLink(cfg WeatherLinkConfig, client *Client, logger *slog.Logger) *WeatherLink {
	return &WeatherLink{
		cfg:       cfg,
		client:    client,
		sentinels: domain.NewSentinels(-1, 255, 32767),
		logger:    logger,
	}
}

func (w *WeatherLink) Name() string { return w.cfg.TaskName }

// currentResponse mirrors the slice of the v2 payload the adapter reads.
// Data records are decoded as loose maps because the key set varies by
// console firmware and sensor type.
type currentResponse struct {
	Sensors []struct {
		Data []map[string]json.RawMessage `json:"data"`
	} `json:"sensors"`
}

// Fetch pulls the station's current conditions and emits one reading per
// tracked field present in the merged record. Missing credentials are a
// configuration fault, not a transient one.
func (w *WeatherLink) Fetch(ctx context.Context) ([]domain.Reading, error) {
	if w.cfg.APIKey == "" || w.cfg.APISecret == "" {
		return nil, &domain.ConfigError{
			Err: fmt.Errorf("weatherlink credentials for station %s are not set", w.cfg.StationID),
		}
	}

	url := fmt.Sprintf("%s/current/%s?t=%d&api-key=%s",
		w.cfg.BaseURL, w.cfg.StationID, time.Now().Unix(), w.cfg.APIKey)
	header := http.Header{"X-Api-Secret": {w.cfg.APISecret}}

	body, err := w.client.Get(ctx, w.Name(), url, header)
	if err != nil {
		return nil, err
	}

	var payload currentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.FormatError{Source: w.Name(), Err: err}
	}

	record, ts, ok := mergeRecords(payload)
	if !ok {
		return nil, &domain.FormatError{
			Source: w.Name(),
			Err:    fmt.Errorf("no timestamped data records for station %s", w.cfg.StationID),
		}
	}

	var readings []domain.Reading
	for _, f := range stationFields {
		raw, present := record[f.Field]
		if !present {
			continue
		}
		value := domain.Convert(raw, f.FromUnit, f.Unit.Symbol, w.sentinels)
		if value == nil {
			continue
		}
		if !domain.InRange(f.Kind, *value) {
			w.logger.Warn("dropping implausible station value",
				"task", w.Name(), "field", f.Field, "value", *value)
			continue
		}

		readings = append(readings, domain.Reading{
			Identity: domain.SensorIdentity{
				Platform: w.cfg.Platform,
				Variable: f.Variable,
				Unit:     f.Unit,
				Sensor:   fmt.Sprintf("%s - %s", f.Key, w.cfg.StationID),
			},
			Timestamp:       ts,
			Value:           *value,
			QualityFlag:     domain.QualityProbablyGood,
			ProcessingLevel: domain.ProcessingRaw,
			LocationID:      w.cfg.LocationID,
		})
	}

	return readings, nil
}

// mergeRecords flattens the per-sensor data records into one field->value
// map. The newest record wins; older records only backfill fields the newer
// ones lack, so a console whose outdoor sensor reports on a different cycle
// than its barometer still yields a complete picture. The reported timestamp
// is the newest record's.
func mergeRecords(payload currentResponse) (map[string]*float64, time.Time, bool) {
	type timestamped struct {
		ts   int64
		data map[string]json.RawMessage
	}

	var records []timestamped
	for _, s := range payload.Sensors {
		for _, d := range s.Data {
			ts, ok := recordTimestamp(d)
			if !ok {
				continue
			}
			records = append(records, timestamped{ts: ts, data: d})
		}
	}
	if len(records) == 0 {
		return nil, time.Time{}, false
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ts > records[j].ts })

	merged := make(map[string]*float64)
	for _, r := range records {
		for key, raw := range r.data {
			if _, seen := merged[key]; seen {
				continue
			}
			merged[key] = decodeNumber(raw)
		}
	}

	return merged, time.Unix(records[0].ts, 0).UTC(), true
}

func recordTimestamp(data map[string]json.RawMessage) (int64, bool) {
	for _, key := range []string{"ts", "generated_at"} {
		raw, ok := data[key]
		if !ok {
			continue
		}
		v := decodeNumber(raw)
		if v == nil {
			continue
		}
		return int64(*v), true
	}
	return 0, false
}

// decodeNumber coerces a raw JSON value to a float. The API serializes some
// fields as quoted numbers depending on firmware; both forms are accepted.
// Nulls and non-numeric values come back as nil.
func decodeNumber(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return &v
		}
	}
	return nil
}
