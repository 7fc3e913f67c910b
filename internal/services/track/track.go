// Package track converts GPX and KML track files into the tabular shape the
// import pipeline expects. Tracks have no plate of their own; the caller
// binds one before building the upload workbook.
package track

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"casetrack-desktop/internal/services/schema"
)

// Point is one normalized track sample
type Point struct {
	Fecha       string
	Hora        string
	CoordenadaX float64
	CoordenadaY float64
	Altitud     *float64
	Velocidad   *float64
}

// Track is a parsed file: its points plus the headers the mapping UI offers
type Track struct {
	Points  []Point
	Headers []string
}

// Parse reads a .gpx or .kml file into a normalized track. A file that
// yields no points is an error.
func Parse(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var points []Point
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		points, err = parseGPX(data)
	case ".kml":
		points, err = parseKML(data)
	default:
		return nil, fmt.Errorf("unsupported track file extension: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points found in file")
	}

	return &Track{Points: points, Headers: deriveHeaders(points)}, nil
}

type gpxTrackPoint struct {
	Lat   string `xml:"lat,attr"`
	Lon   string `xml:"lon,attr"`
	Time  string `xml:"time"`
	Ele   string `xml:"ele"`
	Speed string `xml:"speed"`
}

type gpxFile struct {
	Tracks []struct {
		Segments []struct {
			Points []gpxTrackPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

func parseGPX(data []byte) ([]Point, error) {
	var doc gpxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse gpx: %w", err)
	}

	var points []Point
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, tp := range seg.Points {
				point, err := normalizeGPXPoint(tp)
				if err != nil {
					log.Printf("WARNING: skipping track point: %v", err)
					continue
				}
				points = append(points, point)
			}
		}
	}

	return points, nil
}

func normalizeGPXPoint(tp gpxTrackPoint) (Point, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(tp.Lat), 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad latitude %q", tp.Lat)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(tp.Lon), 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad longitude %q", tp.Lon)
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tp.Time))
	if err != nil {
		return Point{}, fmt.Errorf("bad timestamp %q", tp.Time)
	}
	ts = ts.UTC()

	point := Point{
		Fecha:       ts.Format("2006-01-02"),
		Hora:        ts.Format("15:04:05"),
		CoordenadaX: lon,
		CoordenadaY: lat,
	}

	if ele := strings.TrimSpace(tp.Ele); ele != "" {
		if v, err := strconv.ParseFloat(ele, 64); err == nil {
			point.Altitud = &v
		}
	}
	if speed := strings.TrimSpace(tp.Speed); speed != "" {
		if v, err := strconv.ParseFloat(speed, 64); err == nil {
			point.Velocidad = &v
		}
	}

	return point, nil
}

func parseKML(data []byte) ([]Point, error) {
	// KML carries no per-point timestamps, so every point gets the ingestion
	// time. Downstream analysis must not rely on KML capture times.
	blocks, err := kmlCoordinateBlocks(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kml: %w", err)
	}
	if len(blocks) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	fecha := now.Format("2006-01-02")
	hora := now.Format("15:04:05")
	log.Printf("WARNING: kml files carry no timestamps, stamping %d coordinate block(s) with ingestion time %s %s",
		len(blocks), fecha, hora)

	var points []Point
	for _, block := range blocks {
		for _, triplet := range strings.Fields(block) {
			parts := strings.Split(triplet, ",")
			if len(parts) < 2 {
				log.Printf("WARNING: skipping malformed coordinate %q", triplet)
				continue
			}
			lon, errLon := strconv.ParseFloat(parts[0], 64)
			lat, errLat := strconv.ParseFloat(parts[1], 64)
			if errLon != nil || errLat != nil {
				log.Printf("WARNING: skipping malformed coordinate %q", triplet)
				continue
			}

			point := Point{
				Fecha:       fecha,
				Hora:        hora,
				CoordenadaX: lon,
				CoordenadaY: lat,
			}
			if len(parts) >= 3 {
				// Altitude zero means "not recorded" in most exports
				if alt, err := strconv.ParseFloat(parts[2], 64); err == nil && alt != 0 {
					point.Altitud = &alt
				}
			}

			points = append(points, point)
		}
	}

	return points, nil
}

// kmlCoordinateBlocks collects the text of every <coordinates> element,
// wherever it nests (Placemark, Folder, MultiGeometry).
func kmlCoordinateBlocks(data []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var blocks []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "coordinates" {
			continue
		}
		var text string
		if err := decoder.DecodeElement(&text, &start); err != nil {
			return nil, err
		}
		blocks = append(blocks, text)
	}
}

// deriveHeaders lists the columns the track actually carries: the four
// positional fields always, altitude and speed only when some point has them.
func deriveHeaders(points []Point) []string {
	headers := []string{schema.FieldFecha, schema.FieldHora, schema.FieldCoordenadaX, schema.FieldCoordenadaY}

	var hasAltitud, hasVelocidad bool
	for _, p := range points {
		if p.Altitud != nil {
			hasAltitud = true
		}
		if p.Velocidad != nil {
			hasVelocidad = true
		}
	}
	if hasAltitud {
		headers = append(headers, schema.FieldAltitud)
	}
	if hasVelocidad {
		headers = append(headers, schema.FieldVelocidad)
	}

	return headers
}
