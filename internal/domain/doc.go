// Package domain models hazard events, subscriber clusters, and the
// classification rules that turn provider data into alerts.
//
// # Hazard families
//
// Four families are tracked, split into two shapes:
//
//	Discrete events (earthquake, tsunami): a provider feed of point events.
//	Subscribers are matched by great-circle distance to each event.
//	Continuous measurements (flood, weather): a per-location series or
//	current-conditions reading. Subscribers are grouped into radius-bounded
//	clusters so one provider fetch serves many users.
//
// # Provider conventions
//
// Earthquake data comes from the USGS fdsnws event catalog as GeoJSON:
// feature geometry coordinates are [lon, lat, depth_km] and magnitudes are
// in properties.mag. Events are fetched over a rolling 24 hour window above
// a configured minimum magnitude.
//
// Tsunami data comes from the GDACS RSS feed. Items carry a georss:point
// ("lat lon" string), a gdacs:alertlevel color (Red, Orange, Green), and an
// optional gdacs:severity value holding the triggering earthquake magnitude.
// Only items whose title mentions a tsunami are kept.
//
// Flood data comes from the Open-Meteo flood API as a daily river discharge
// series (m³/s) covering 7 past and 7 forecast days per cluster center. All
// cluster centers are fetched in a single batched request.
//
// Weather data comes from OpenWeatherMap current conditions (metric units)
// per cluster center, supplemented by the 5-day forecast reduced to per-day
// maximum temperatures for heatwave counting.
//
// # Severity scales
//
// Discrete events map to a three-level alert level:
//
//	Earthquake: magnitude ≥7 error | ≥5 warning | else info
//	Tsunami:    Red error | Orange warning | else info
//
// Continuous hazards map to a four-tier scale ranked Low(1) < Moderate(2) <
// High(3) < Severe(4). Flood tiers come from the ratio of a day's discharge
// to the series average: >3x Severe, >2x High, >1.5x Moderate. The alert
// threshold itself is 1.5x the average, so a flagged day is at least
// Moderate. Heatwave detection is a fixed 35 °C cutoff with no scaling.
//
// # Cluster identity
//
// A cluster id is a deterministic function of its centroid rounded to two
// decimal places ("cluster_33.69_73.06", flood clusters use the
// "flood_cluster_" prefix), so re-clustering the same membership reproduces
// the same id. Cluster membership is append-only: the radius bound is
// enforced only when a cluster forms or a user is assigned, and clusters are
// never split, merged, or re-centered afterwards.
package domain
