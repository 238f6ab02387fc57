package main

import (
	"fmt"
	"time"

	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/config"
)

// resolutionSeconds expresses a retention's resolution in seconds, the
// unit every storage-engine package operates in.
func resolutionSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// catalogues opens one catalogue.List per configured retention, finest
// first, matching cfg.Retentions' order.
func catalogues(cfg config.Config) []*catalogue.List {
	cats := make([]*catalogue.List, len(cfg.Retentions))
	for i, ret := range cfg.Retentions {
		cats[i] = catalogue.New(cfg.DataDir, resolutionSeconds(ret.Resolution))
	}
	return cats
}

// resolutions lists every configured retention's resolution in seconds,
// finest first, index-for-index with catalogues(cfg).
func resolutions(cfg config.Config) []int64 {
	res := make([]int64, len(cfg.Retentions))
	for i, ret := range cfg.Retentions {
		res[i] = resolutionSeconds(ret.Resolution)
	}
	return res
}

func indexPath(cfg config.Config) string {
	return cfg.DataDir + "/metric.index"
}

func requireOneRetention(cfg config.Config) error {
	if len(cfg.Retentions) == 0 {
		return fmt.Errorf("hisser: config has no retentions configured")
	}
	return nil
}
