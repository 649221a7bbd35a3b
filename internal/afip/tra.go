package afip

import (
	"encoding/xml"
	"time"
)

// ticketWindow is the validity window of a login ticket request: WSAA demands
// generationTime in the past and expirationTime in the future, with a small
// server-side tolerance. ±10 minutes keeps us well inside it.
const ticketWindow = 10 * time.Minute

// argTZ is the fixed -03:00 offset WSAA expects in TRA timestamps.
var argTZ = time.FixedZone("-03:00", -3*60*60)

// LoginTicketRequest is the TRA document submitted (signed) to WSAA.
type LoginTicketRequest struct {
	UniqueID       int64
	GenerationTime time.Time
	ExpirationTime time.Time
	Service        string
}

// BuildLoginTicket builds a TRA for the named service at time now.
// Pure and deterministic given the clock.
func BuildLoginTicket(service string, now time.Time) LoginTicketRequest {
	return LoginTicketRequest{
		UniqueID:       now.Unix(),
		GenerationTime: now.Add(-ticketWindow),
		ExpirationTime: now.Add(ticketWindow),
		Service:        service,
	}
}

type traXML struct {
	XMLName xml.Name `xml:"loginTicketRequest"`
	Version string   `xml:"version,attr"`
	Header  struct {
		UniqueID       int64  `xml:"uniqueId"`
		GenerationTime string `xml:"generationTime"`
		ExpirationTime string `xml:"expirationTime"`
	} `xml:"header"`
	Service string `xml:"service"`
}

// XML serializes the TRA with second-precision timestamps in -03:00.
func (t LoginTicketRequest) XML() ([]byte, error) {
	doc := traXML{Version: "1.0", Service: t.Service}
	doc.Header.UniqueID = t.UniqueID
	doc.Header.GenerationTime = formatTRATime(t.GenerationTime)
	doc.Header.ExpirationTime = formatTRATime(t.ExpirationTime)

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, wrapError(KindSigningFailure, "afip.tra", "no se pudo serializar el TRA", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func formatTRATime(t time.Time) string {
	return t.In(argTZ).Format("2006-01-02T15:04:05-07:00")
}
