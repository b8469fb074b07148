package converters

// OffsetElevationCorrector shifts every elevation by a constant offset.
type OffsetElevationCorrector struct {
	Offset float64
}

func NewOffsetElevationCorrector(offset float64) ElevationCorrector {
	return &OffsetElevationCorrector{Offset: offset}
}

func (c *OffsetElevationCorrector) CorrectElevation(lon, lat, z float64) float64 {
	return z + c.Offset
}
