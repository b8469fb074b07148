package cloud

import (
	"path/filepath"

	"github.com/geodense/lascloud/internal/ply"
	"github.com/geodense/lascloud/tools"
)

// WritePly exports the cloud coordinates, and colors when red, green
// and blue columns are present, as a binary PLY file. Colors are taken
// from the high byte of the 16 bit LAS channels.
func (pc *PointCloud) WritePly(path string) error {
	x, y, z, err := pc.Coordinates()
	if err != nil {
		return err
	}
	if err := tools.CreateDirectoryIfDoesNotExist(filepath.Dir(path)); err != nil {
		return err
	}

	colorAt := func(i int) (uint8, uint8, uint8) { return 255, 255, 255 }
	red, rok := pc.Column("red")
	green, gok := pc.Column("green")
	blue, bok := pc.Column("blue")
	if rok && gok && bok {
		colorAt = func(i int) (uint8, uint8, uint8) {
			r, _ := red.Float64At(i)
			g, _ := green.Float64At(i)
			b, _ := blue.Float64At(i)
			return uint8(uint16(r) / 256), uint8(uint16(g) / 256), uint8(uint16(b) / 256)
		}
	}

	verts := make([]ply.Vertex, len(x))
	for i := range verts {
		r, g, b := colorAt(i)
		verts[i] = ply.Vertex{
			X: float32(x[i]),
			Y: float32(y[i]),
			Z: float32(z[i]),
			R: r,
			G: g,
			B: b,
		}
	}
	return ply.WritePlyFile(path, verts)
}
