// Package mmap maps files read-only into memory.
//
// It backs reads of the local checkpoint store: a checkpoint is mapped,
// copied out once and unmapped.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	data := bytes.Clone(m.Bytes())
package mmap
