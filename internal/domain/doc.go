// Package domain models environmental observations for the Golfo San Jorge
// coastal monitoring network.
//
// # Data Sources
//
// Readings are pulled from four kinds of upstream platforms, each with its
// own transport and quirks (see internal/source):
//
//   - Tide gauge (mareograph) at Puerto Comodoro Rivadavia, published as an
//     HTML table of (local date-time, level in metres) rows.
//   - EMAC wave buoy EACC, one CSV time series per variable code
//     (wave height/period/direction, current speed/direction, PAR, battery).
//   - Two Davis WeatherLink stations, via the signed v2 REST API returning a
//     nested sensors[].data[] structure in imperial units.
//   - The naval hydrography tide-table service, an HTTP form endpoint
//     returning predicted high/low waters as an HTML table.
//
// All adapters converge on [Reading]: a UTC timestamp, a value in SI units,
// a quality flag, a processing level, and a [SensorIdentity] that the catalog
// resolver maps to a concrete sensor row.
//
// # Sentinel Values
//
// Station hardware reports "no data" in-band with magic numbers (-1, 255,
// 32767 on WeatherLink consoles). Sentinel sets are instrument-specific and
// configured per adapter via [Sentinels]; sentinel values are filtered before
// a Reading is ever produced.
//
// # Unit Conversion
//
// Upstream imperial/instrument units are converted to SI with fixed affine
// formulas (see [Convert]). Unknown unit pairs pass through unchanged: the
// permissive default keeps new upstream fields flowing while the catalog
// gains a proper mapping.
//
// # Quality Flags and Processing Levels
//
// Small-integer codes shared with the relational catalog:
//
//	quality:    0 none, 1 good, 2 probably good, 4 bad, 7 estimated
//	processing: 1 raw, 5 model output, 6 derived
package domain
