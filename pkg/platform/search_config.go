package platform

import "fmt"

// SearchConfig is the per-platform search tuning, one typed variant per
// platform instead of a string-keyed table of loose fields. Resolved once at
// startup; the orchestrator only reads the common surface.
type SearchConfig interface {
	// PlatformKey names the platform the variant belongs to.
	PlatformKey() string
	// PageSize is the platform's fixed result-page length.
	PageSize() int
}

// XHSSearchConfig tunes xiaohongshu note search.
type XHSSearchConfig struct {
	Sort     string // "general", "time_descending", "popularity_descending"
	NoteType int    // 0 all, 1 video, 2 image
}

func (XHSSearchConfig) PlatformKey() string { return "xhs" }
func (XHSSearchConfig) PageSize() int       { return 20 }

// DouyinSearchConfig tunes douyin video search.
type DouyinSearchConfig struct {
	// PublishTime filters by publication window: 0 unlimited, 1 day,
	// 7 week, 180 half a year.
	PublishTime int
}

func (DouyinSearchConfig) PlatformKey() string { return "douyin" }
func (DouyinSearchConfig) PageSize() int       { return 10 }

// WeiboSearchConfig tunes weibo search.
type WeiboSearchConfig struct {
	SearchType string // "default", "real_time", "popular", "video"
}

func (WeiboSearchConfig) PlatformKey() string { return "weibo" }
func (WeiboSearchConfig) PageSize() int       { return 10 }

// BilibiliSearchConfig tunes bilibili video search.
type BilibiliSearchConfig struct {
	Order string // "totalrank", "click", "pubdate", "dm", "stow"
}

func (BilibiliSearchConfig) PlatformKey() string { return "bilibili" }
func (BilibiliSearchConfig) PageSize() int       { return 20 }

// ResolveSearchConfig returns the variant for a platform key with its
// defaults. Resolution happens once at orchestrator construction.
func ResolveSearchConfig(platform string) (SearchConfig, error) {
	switch platform {
	case "xhs":
		return XHSSearchConfig{Sort: "general", NoteType: 0}, nil
	case "douyin":
		return DouyinSearchConfig{PublishTime: 0}, nil
	case "weibo":
		return WeiboSearchConfig{SearchType: "default"}, nil
	case "bilibili":
		return BilibiliSearchConfig{Order: "totalrank"}, nil
	default:
		return nil, fmt.Errorf("no search config for platform %q", platform)
	}
}
