package storage

import (
	"os"
	"path/filepath"
)

// DiskUsage is the on-disk footprint of the stores, per named path.
type DiskUsage struct {
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"total"`
}

// MeasureDiskUsage sums the size of each named path. A path may be a file or a
// directory (recursively summed). Missing paths count as 0; walk errors are returned.
func MeasureDiskUsage(named map[string]string) (*DiskUsage, error) {
	usage := &DiskUsage{Paths: make(map[string]int64, len(named))}
	for name, p := range named {
		n, err := pathSize(p)
		if err != nil {
			return nil, err
		}
		usage.Paths[name] = n
		usage.Total += n
	}
	return usage, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(p, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
