package aggregate

import (
	"sort"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/textutil"
	"github.com/goodtune/workdigest/internal/timeutil"
)

type blockKey struct {
	start string
	end   string
}

func (s *Service) localize(ts time.Time) time.Time {
	if s.config.Location != nil {
		return ts.In(s.config.Location)
	}
	return ts
}

// groupByTimeBlock partitions records into blocks, returned in lexical
// (start, end) order. A block that ends at midnight renders its end as
// "00:00" and sorts by its start like any other.
func (s *Service) groupByTimeBlock(records []*domain.Record) ([]blockKey, map[blockKey][]*domain.Record) {
	groups := make(map[blockKey][]*domain.Record)
	keys := make([]blockKey, 0)
	for _, r := range records {
		ts := r.Timestamp()
		if ts.IsZero() {
			continue
		}
		start, end := timeutil.Block(s.localize(ts), s.config.TimeBlockMinutes)
		key := blockKey{start, end}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].start != keys[j].start {
			return keys[i].start < keys[j].start
		}
		return keys[i].end < keys[j].end
	})
	return keys, groups
}

func (s *Service) buildTimeBlocks(records []*domain.Record) ([]domain.TimeBlock, error) {
	keys, groups := s.groupByTimeBlock(records)
	blocks := make([]domain.TimeBlock, 0, len(keys))
	for _, key := range keys {
		blockRecords := groups[key]

		counter := textutil.NewExactCounter()
		for _, r := range blockRecords {
			counter.Add(textutil.NormalizeAppName(r.ProcessName()))
		}
		total := len(blockRecords)

		apps := make([]domain.AppUsage, 0, maxBlockApps)
		for _, entry := range counter.MostCommon(maxBlockApps) {
			usage, err := domain.NewAppUsage(entry.Value, float64(entry.Count)/float64(total)*100)
			if err != nil {
				return nil, err
			}
			apps = append(apps, usage)
		}

		block, err := domain.NewTimeBlock(
			key.start,
			key.end,
			apps,
			truncate(textutil.MergeKeywords(blockRecords, domain.FieldKeywords), s.config.TopKeywords),
			truncate(textutil.MergeKeywords(blockRecords, domain.FieldFiles), s.config.TopFiles),
		)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (s *Service) buildAppSummary(records []*domain.Record) ([]domain.AppSummary, error) {
	groups := make(map[string][]*domain.Record)
	order := make([]string, 0)
	for _, r := range records {
		process := r.ProcessName()
		if process == "" {
			process = textutil.UnknownApp
		}
		if _, ok := groups[process]; !ok {
			order = append(order, process)
		}
		groups[process] = append(groups[process], r)
	}

	total := len(records)
	interval := s.config.SamplingInterval.Seconds()
	summaries := make([]domain.AppSummary, 0, len(order))
	for _, process := range order {
		appRecords := groups[process]
		count := len(appRecords)

		summary, err := domain.NewAppSummary(domain.AppSummary{
			Name:        textutil.NormalizeAppName(process),
			Process:     process,
			Count:       count,
			DurationMin: float64(count) * interval / 60,
			Rank:        textutil.ClassifyRank(count, total),
			TopKeywords: truncate(textutil.MergeKeywords(appRecords, domain.FieldKeywords), s.config.TopKeywords),
			TopFiles:    truncate(textutil.MergeKeywords(appRecords, domain.FieldFiles), s.config.TopFiles),
			TopURLs:     truncate(textutil.MergeKeywords(appRecords, domain.FieldURLs), s.config.TopURLs),
		})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].DurationMin > summaries[j].DurationMin
	})
	return summaries, nil
}

func (s *Service) buildGlobalKeywords(records []*domain.Record) (domain.GlobalKeywords, error) {
	return domain.NewGlobalKeywords(
		truncate(textutil.MergeKeywords(records, domain.FieldKeywords), s.config.GlobalTopKeywords),
		truncate(textutil.MergeKeywords(records, domain.FieldURLs), s.config.GlobalTopURLs),
		truncate(textutil.MergeKeywords(records, domain.FieldFiles), s.config.GlobalTopFiles),
	)
}

func (s *Service) buildMeta(date string, records []*domain.Record, now time.Time) domain.FeaturesMeta {
	meta := domain.FeaturesMeta{
		Date:         date,
		GeneratedAt:  s.localize(now).Format(time.RFC3339),
		CaptureCount: len(records),
		FirstCapture: "00:00:00",
		LastCapture:  "00:00:00",
	}

	var first, last time.Time
	for _, r := range records {
		ts := r.Timestamp()
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	if first.IsZero() {
		return meta
	}

	meta.FirstCapture = s.localize(first).Format(timeutil.CaptureLayout)
	meta.LastCapture = s.localize(last).Format(timeutil.CaptureLayout)
	meta.TotalDurationMin = float64(timeutil.EstimatedDuration(first, last, s.config.SamplingInterval))
	return meta
}

func truncate(values []string, limit int) []string {
	if limit >= 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}
