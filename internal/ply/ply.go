// Package ply writes point data as binary little endian PLY, a compact
// interchange format most point cloud viewers accept.
package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Vertex is one PLY vertex with an RGB color.
type Vertex struct {
	X float32
	Y float32
	Z float32
	R uint8
	G uint8
	B uint8
}

// WritePlyFile writes the vertices to a binary PLY file.
func WritePlyFile(filePath string, verts []Vertex) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ply\n")
	fmt.Fprintf(w, "format binary_little_endian 1.0\n")
	fmt.Fprintf(w, "element vertex %d\n", len(verts))
	fmt.Fprintf(w, "property float x\n")
	fmt.Fprintf(w, "property float y\n")
	fmt.Fprintf(w, "property float z\n")
	fmt.Fprintf(w, "property uchar red\n")
	fmt.Fprintf(w, "property uchar green\n")
	fmt.Fprintf(w, "property uchar blue\n")
	fmt.Fprintf(w, "end_header\n")

	var buf [15]byte
	for _, v := range verts {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z))
		buf[12] = v.R
		buf[13] = v.G
		buf[14] = v.B
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}
