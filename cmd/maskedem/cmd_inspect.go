package main

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hupe1980/maskedem/checkpoint"
)

func runInspect(cmd *cobra.Command, args []string) error {
	return inspectCheckpoint(cmd.OutOrStdout(), args[0])
}

func inspectCheckpoint(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	h, err := checkpoint.ReadHeader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "format     v%d, %s, %d of %d bytes stored, crc32c %08x\n",
		h.Version, h.Compression, h.PayloadSize, h.RawSize, h.Checksum)

	s, err := checkpoint.Unmarshal(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run        %s\n", s.RunID)
	fmt.Fprintf(w, "data       %d points, %d features\n", s.NumPoints, s.NumFeatures)
	fmt.Fprintf(w, "state      %s at iteration %d (last split %d, next id %d)\n",
		s.State, s.Iteration, s.LastSplit, s.NextID)

	sizes := make(map[int]int)
	for _, id := range s.Assignment {
		sizes[id]++
	}
	fmt.Fprintf(w, "clusters   %d\n", len(sizes))
	for _, id := range slices.Sorted(maps.Keys(sizes)) {
		fmt.Fprintf(w, "  %4d  %d\n", id, sizes[id])
	}
	if s.BestAssignment != nil {
		fmt.Fprintf(w, "best       %.4f\n", s.BestScore)
	}
	return nil
}
