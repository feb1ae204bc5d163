package main

import "fmt"

const (
	kilobyte = 1 << 10
	megabyte = 1 << 20
)

// formatSize renders a byte count as B, KB or MB for console output.
func formatSize(size int64) string {
	switch {
	case size >= megabyte:
		return fmt.Sprintf("%.1f MB", float64(size)/megabyte)
	case size >= kilobyte:
		return fmt.Sprintf("%.1f KB", float64(size)/kilobyte)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
