// Package domain models INMET (Instituto Nacional de Meteorologia) weather
// alerts for Brazilian municipalities.
//
// # Data Source
//
// INMET publishes every alert currently in force at
// https://apiprevmet3.inmet.gov.br/avisos/ativos as a JSON object with two
// arrays: "hoje" (alerts valid today) and "futuro" (alerts starting later).
// The feed is national; an alert applies to a municipality when the
// municipality's IBGE code appears in the comma-separated "geocodes" field.
// Filtering is done client side by [Parser.Parse].
//
// Municipality details come from
// https://apiprevmet3.inmet.gov.br/buscar/cidade/<code>, which returns a list
// whose first element has "latitude", "longitude" and "label". Every record
// for a city carries that single representative point.
//
// # Feed Conventions
//
// Alert fields (Portuguese):
//
//	id             alert code, number or string
//	id_sequencia   republication counter
//	descricao      event type headline, e.g. "Chuvas Intensas", "Onda de Calor"
//	severidade     "Perigo Potencial" | "Perigo" | "Grande Perigo"
//	id_severidade  1 | 2 | 3, matching the labels above
//	riscos         list of risks (may contain blank entries)
//	instrucoes     list of instructions (may contain blank entries)
//	alterado       true when the alert was amended
//	encerrado      true when the alert was closed early
//	inicio, fim    "YYYY-MM-DD HH:MM" in Brasília time (UTC-03:00); fim may be empty
//
// Severity scale:
//
//	Perigo Potencial -> moderate (yellow)
//	Perigo           -> severe   (orange)
//	Grande Perigo    -> extreme  (red)
//
// English labels (minor, moderate, severe, extreme) are accepted as well.
// Anything else maps to [SeverityUnknown] instead of failing, because the feed
// has no published schema. Color and icon are always derived from the tier via
// a fixed table; the feed's own "aviso_cor" is ignored.
//
// # Identity
//
// An alert's identity key is "<city code>:<alert code>:<event type>", where
// the event type is [EventTypeKey] of the headline. INMET republishes alerts
// with reworded text and reorders the arrays freely, so neither array position
// nor raw text takes part in identity. Duplicate entries for one key are merged
// by [Resolve].
package domain
