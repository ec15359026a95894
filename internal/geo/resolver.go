package geo

import (
	"context"
	"strings"

	"placement-workers/internal/common/logger"
)

// DefaultZIP is downtown Rochester, NY.
const DefaultZIP = "14604"

// PostcodeLookup finds the postcode of a free-text place.
type PostcodeLookup interface {
	LookupPostcode(ctx context.Context, place string) (string, error)
}

type areaZIP struct {
	phrase string
	zip    string
}

// rochesterAreas is matched in order; the first phrase contained in the input wins.
var rochesterAreas = []areaZIP{
	{"downtown rochester", "14604"},
	{"central rochester", "14604"},
	{"city center", "14604"},

	{"west side of rochester", "14611"},
	{"west rochester", "14611"},
	{"westside", "14611"},

	{"east side of rochester", "14609"},
	{"east rochester", "14445"},
	{"eastside", "14609"},

	{"north side of rochester", "14621"},
	{"north rochester", "14621"},
	{"northside", "14621"},

	{"south side of rochester", "14620"},
	{"south rochester", "14620"},
	{"southside", "14620"},

	{"pittsford", "14534"},
	{"brighton", "14618"},
	{"henrietta", "14467"},
	{"penfield", "14526"},
	{"webster", "14580"},
	{"greece", "14626"},
	{"irondequoit", "14617"},
	{"fairport", "14450"},
	{"victor", "14564"},
	{"canandaigua", "14424"},
}

// Resolver turns a client's location preference into a ZIP code.
type Resolver struct {
	lookup     PostcodeLookup
	defaultZIP string
	logger     logger.Logger
}

// NewResolver creates a Resolver. lookup may be nil to disable geocoding of unknown
// place names.
func NewResolver(lookup PostcodeLookup, defaultZIP string, log logger.Logger) *Resolver {
	if defaultZIP == "" {
		defaultZIP = DefaultZIP
	}
	return &Resolver{
		lookup:     lookup,
		defaultZIP: defaultZIP,
		logger:     log.With(map[string]interface{}{"component": "location-resolver"}),
	}
}

// Resolve never fails: explicit ZIPs pass through, known Rochester-area names map to
// their ZIP, anything else is geocoded and finally falls back to the default ZIP.
func (r *Resolver) Resolve(ctx context.Context, location string) string {
	text := strings.TrimSpace(location)
	if text == "" || strings.EqualFold(text, "null") {
		return r.defaultZIP
	}

	if IsZIP(text) {
		return text
	}

	normalized := strings.ToLower(text)
	for _, area := range rochesterAreas {
		if strings.Contains(normalized, area.phrase) {
			r.logger.Debug("resolved location from area table", map[string]interface{}{
				"location": text,
				"zip":      area.zip,
			})
			return area.zip
		}
	}

	if r.lookup != nil {
		zip, err := r.lookup.LookupPostcode(ctx, text)
		if err != nil {
			r.logger.Warn("could not geocode location", map[string]interface{}{
				"location": text,
				"error":    err.Error(),
			})
		} else if zip != "" {
			return zip
		}
	}

	r.logger.Warn("could not resolve location, using default", map[string]interface{}{
		"location": text,
		"zip":      r.defaultZIP,
	})
	return r.defaultZIP
}
