package stock

import (
	"context"
	"log/slog"
	"strings"

	"broll/internal/logging"
	"broll/internal/services"
	"broll/internal/services/pexels"
)

const stageName = "resolve"

// Reasons reported on a Match without footage.
const (
	ReasonEmptyKeyword = "empty keyword"
	ReasonNoResults    = "no results"
	ReasonNoFiles      = "no downloadable file"
	ReasonFetchFailed  = "stock fetch failed"
)

// Searcher runs a stock video search. *pexels.Client satisfies it.
type Searcher interface {
	SearchVideos(ctx context.Context, query pexels.SearchQuery) (pexels.SearchResponse, error)
}

// Match is the outcome of one keyword lookup.
type Match struct {
	Found        bool
	Keyword      string
	VideoURL     string
	ThumbnailURL string
	Width        int
	Height       int
	Duration     float64
	Reason       string
}

// Resolver maps keywords to the first matching stock clip.
type Resolver struct {
	searcher Searcher
	size     string
	logger   *slog.Logger
}

// NewResolver wraps searcher. size is forwarded to the search as the
// minimum rendition size.
func NewResolver(searcher Searcher, size string, logger *slog.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		size:     strings.TrimSpace(size),
		logger:   logging.NewComponentLogger(logger, "stock"),
	}
}

// Resolve looks up keyword. The error is non-nil only when ctx ended.
func (r *Resolver) Resolve(ctx context.Context, keyword, orientation string) (Match, error) {
	keyword = strings.TrimSpace(keyword)
	match := Match{Keyword: keyword}
	if keyword == "" {
		match.Reason = ReasonEmptyKeyword
		return match, nil
	}
	if r == nil || r.searcher == nil {
		match.Reason = ReasonFetchFailed
		return match, nil
	}

	resp, err := r.searcher.SearchVideos(ctx, pexels.SearchQuery{
		Query:       keyword,
		Orientation: orientation,
		Size:        r.size,
		PerPage:     1,
	})
	if err != nil {
		if ctxErr := services.FromContext(ctx, stageName); ctxErr != nil {
			return match, ctxErr
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "stock search failed",
			"stock_fetch_failed",
			logging.String("keyword", keyword),
			logging.String(logging.FieldErrorKind, services.KindStockFetch),
			logging.Error(services.Wrap(services.ErrStockFetch, stageName, "search", "stock search failed", err)),
			logging.String(logging.FieldImpact, "segment keeps original footage"),
			logging.String(logging.FieldErrorHint, "check stock.api_key and stock service availability"),
		)
		match.Reason = ReasonFetchFailed
		return match, nil
	}
	if len(resp.Videos) == 0 {
		match.Reason = ReasonNoResults
		return match, nil
	}

	video := resp.Videos[0]
	file, ok := video.BestFile()
	if !ok {
		match.Reason = ReasonNoFiles
		return match, nil
	}
	match.Found = true
	match.VideoURL = file.Link
	match.ThumbnailURL = video.Image
	match.Width = firstPositive(file.Width, video.Width)
	match.Height = firstPositive(file.Height, video.Height)
	match.Duration = video.Duration
	return match, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
