package market

import (
	"context"
	"time"

	"github.com/GoPolymarket/hypergate/internal/exchange"
)

// MetadataSource is the info API surface LiveMetadata wraps.
type MetadataSource interface {
	MetaAndAssetCtxs(ctx context.Context) (*exchange.Meta, []exchange.AssetCtx, error)
	AllMids(ctx context.Context) (map[string]string, error)
}

// LiveMetadata serves mids from the stream while it is connected and fresh,
// and from the info API otherwise. Metadata always comes from the info API.
type LiveMetadata struct {
	MetadataSource
	stream *Stream
	maxAge time.Duration
}

func NewLiveMetadata(src MetadataSource, stream *Stream, maxAge time.Duration) *LiveMetadata {
	return &LiveMetadata{MetadataSource: src, stream: stream, maxAge: maxAge}
}

func (l *LiveMetadata) AllMids(ctx context.Context) (map[string]string, error) {
	if l.stream != nil && l.stream.Connected() {
		if mids := l.stream.freshMids(l.maxAge); len(mids) > 0 {
			return mids, nil
		}
	}
	return l.MetadataSource.AllMids(ctx)
}

// freshMids returns nil if any streamed mid is older than maxAge.
func (s *Stream) freshMids(maxAge time.Duration) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.mids))
	for coin, e := range s.mids {
		if maxAge > 0 && time.Since(e.at) > maxAge {
			return nil
		}
		out[coin] = e.px.String()
	}
	return out
}
