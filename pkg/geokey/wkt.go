package geokey

import (
	"fmt"

	"github.com/pkg/errors"
)

// ToWKT renders a best effort well known text description for the
// common model types: projected 2D and geographic 2D backed by an EPSG
// code. Anything else yields ErrUnsupportedCRS and the caller falls back
// to the raw key set. Full name resolution needs an EPSG registry,
// which is outside this package; the authority element carries the code
// for consumers that have one.
func (s *KeySet) ToWKT() (string, error) {
	model, ok := s.Short(KeyModelType)
	if !ok {
		return "", errors.Wrap(ErrUnsupportedCRS, "no model type key")
	}

	switch model {
	case ModelProjected:
		code, ok := s.Short(KeyProjectedCSType)
		if !ok || !isEPSG(code) {
			return "", errors.Wrap(ErrUnsupportedCRS, "projected model without an EPSG code")
		}
		name := s.citation(KeyPCSCitation)
		if name == "" {
			name = fmt.Sprintf("EPSG:%d", code)
		}
		geog := ""
		if gcode, ok := s.Short(KeyGeographicType); ok && isEPSG(gcode) {
			geog = fmt.Sprintf("%s,", geographicWKT(s.citation(KeyGeogCitation), gcode))
		}
		return fmt.Sprintf(`PROJCS[%q,%sAUTHORITY["EPSG","%d"]]`, name, geog, code), nil

	case ModelGeographic:
		code, ok := s.Short(KeyGeographicType)
		if !ok || !isEPSG(code) {
			return "", errors.Wrap(ErrUnsupportedCRS, "geographic model without an EPSG code")
		}
		return geographicWKT(s.citation(KeyGeogCitation), code), nil
	}
	return "", errors.Wrapf(ErrUnsupportedCRS, "model type %d", model)
}

func geographicWKT(name string, code uint16) string {
	if name == "" {
		name = fmt.Sprintf("EPSG:%d", code)
	}
	return fmt.Sprintf(`GEOGCS[%q,AUTHORITY["EPSG","%d"]]`, name, code)
}

// citation returns the named citation key, falling back to the general
// one.
func (s *KeySet) citation(id uint16) string {
	if text, ok := s.Text(id); ok {
		return text
	}
	if text, ok := s.Text(KeyCitation); ok {
		return text
	}
	return ""
}

// EPSG returns the authoritative EPSG code of the set: the projected
// code for projected models, the geographic one otherwise.
func (s *KeySet) EPSG() (uint16, bool) {
	if model, ok := s.Short(KeyModelType); ok && model == ModelProjected {
		if code, ok := s.Short(KeyProjectedCSType); ok && isEPSG(code) {
			return code, true
		}
	}
	if code, ok := s.Short(KeyGeographicType); ok && isEPSG(code) {
		return code, true
	}
	return 0, false
}

// CRSOf resolves a container CRS string from a key set: "EPSG:nnnn"
// when a code is present.
func (s *KeySet) CRSOf() (string, bool) {
	code, ok := s.EPSG()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("EPSG:%d", code), true
}
