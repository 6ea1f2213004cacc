package hls

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/grafov/m3u8"
)

// Level is one rendition of the stream.
type Level struct {
	Bandwidth uint32
	Codecs    string
	URL       string
	fragments []Fragment
	closed    bool
	loaded    bool
}

// Fragment is one media segment of a level, positioned on the stream timeline.
type Fragment struct {
	SeqID    uint64
	URL      string
	Start    time.Duration
	Duration time.Duration
}

// End returns the timeline offset where the fragment ends.
func (f Fragment) End() time.Duration { return f.Start + f.Duration }

// manifest is the decoded result of a top-level playlist.
type manifest struct {
	levels []Level
}

// decodeManifest parses body fetched from src into a set of levels.
//
// A media playlist yields a single, already-loaded level. A master playlist yields one unloaded level per
// variant, sorted by ascending bandwidth.
func decodeManifest(src string, body []byte) (*manifest, error) {
	base, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL: %w", err)
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	switch listType {
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected media playlist type %T", pl)
		}
		level := Level{URL: src}
		level.fragments, level.closed = mediaFragments(base, media)
		level.loaded = true
		if len(level.fragments) == 0 {
			return nil, fmt.Errorf("media playlist has no segments")
		}
		return &manifest{levels: []Level{level}}, nil

	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected master playlist type %T", pl)
		}
		var levels []Level
		for _, v := range master.Variants {
			if v == nil || v.URI == "" || v.Iframe {
				continue
			}
			levels = append(levels, Level{
				Bandwidth: v.Bandwidth,
				Codecs:    v.Codecs,
				URL:       resolve(base, v.URI),
			})
		}
		if len(levels) == 0 {
			return nil, fmt.Errorf("master playlist has no variants")
		}
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Bandwidth < levels[j].Bandwidth })
		return &manifest{levels: levels}, nil
	}

	return nil, fmt.Errorf("unknown playlist type")
}

// decodeLevel parses a media playlist fetched for a master variant.
func decodeLevel(src string, body []byte) ([]Fragment, bool, error) {
	base, err := url.Parse(src)
	if err != nil {
		return nil, false, fmt.Errorf("invalid level URL: %w", err)
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode level playlist: %w", err)
	}
	media, ok := pl.(*m3u8.MediaPlaylist)
	if listType != m3u8.MEDIA || !ok {
		return nil, false, fmt.Errorf("level playlist is not a media playlist")
	}

	fragments, closed := mediaFragments(base, media)
	if len(fragments) == 0 {
		return nil, false, fmt.Errorf("level playlist has no segments")
	}
	return fragments, closed, nil
}

func mediaFragments(base *url.URL, media *m3u8.MediaPlaylist) ([]Fragment, bool) {
	var (
		fragments []Fragment
		start     time.Duration
	)

	// Segments is allocated to capacity; unused tail entries are nil
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		d := time.Duration(seg.Duration * float64(time.Second))
		fragments = append(fragments, Fragment{
			SeqID:    seg.SeqId,
			URL:      resolve(base, seg.URI),
			Start:    start,
			Duration: d,
		})
		start += d
	}
	return fragments, media.Closed
}

// resolve returns ref relative to base, carrying base's query when ref has none.
func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	abs := base.ResolveReference(r)
	if abs.RawQuery == "" && base.RawQuery != "" {
		abs.RawQuery = base.RawQuery
	}
	return abs.String()
}

// fragmentAt returns the index of the fragment containing offset, clamped to the last fragment.
func fragmentAt(fragments []Fragment, offset time.Duration) int {
	if len(fragments) == 0 || offset <= 0 {
		return 0
	}

	idx := sort.Search(len(fragments), func(i int) bool { return fragments[i].End() > offset })
	if idx >= len(fragments) {
		return len(fragments) - 1
	}
	return idx
}

// totalDuration sums fragment durations.
func totalDuration(fragments []Fragment) time.Duration {
	if len(fragments) == 0 {
		return 0
	}
	return fragments[len(fragments)-1].End()
}
