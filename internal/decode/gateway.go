// Package decode turns image identifiers into decoded images, consulting the
// image cache first and delegating misses to a Decoder.
package decode

import (
	"context"
	"time"

	"dcmview/internal/errors"
	"dcmview/internal/imagecache"
	"dcmview/internal/log"
	"dcmview/pkg/types"

	"golang.org/x/sync/singleflight"
)

// Decoder is the external collaborator that decodes one identifier
type Decoder interface {
	Decode(ctx context.Context, id types.ImageID) (*types.DecodedImage, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(ctx context.Context, id types.ImageID) (*types.DecodedImage, error)

// Decode calls f
func (f DecoderFunc) Decode(ctx context.Context, id types.ImageID) (*types.DecodedImage, error) {
	return f(ctx, id)
}

// Gateway resolves identifiers through the cache and the decoder
type Gateway struct {
	cache   *imagecache.Cache
	decoder Decoder
	timeout time.Duration
	group   singleflight.Group
}

// NewGateway creates a gateway. A zero timeout leaves decodes unbounded.
func NewGateway(cache *imagecache.Cache, decoder Decoder, timeout time.Duration) *Gateway {
	return &Gateway{
		cache:   cache,
		decoder: decoder,
		timeout: timeout,
	}
}

// Resolve returns the decoded image for id. A cache hit returns immediately;
// a miss decodes, stores the result in the cache and returns it. Concurrent
// resolves of the same id share one decode. Failures are returned as
// *errors.DecodeError and are never retried here.
func (g *Gateway) Resolve(ctx context.Context, id types.ImageID) (*types.DecodedImage, error) {
	if img, ok := g.cache.Get(id); ok {
		log.LogWithFields(log.F("image_id", id)).Debug("cache hit")
		return img, nil
	}

	ch := g.group.DoChan(string(id), func() (interface{}, error) {
		return g.decode(ctx, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.DecodedImage), nil
	case <-ctx.Done():
		return nil, errors.NewDecodeError(string(id), ctx.Err())
	}
}

func (g *Gateway) decode(ctx context.Context, id types.ImageID) (*types.DecodedImage, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	img, err := g.decoder.Decode(ctx, id)
	if err != nil {
		if !errors.IsDecodeError(err) {
			err = errors.NewDecodeError(string(id), err)
		}
		return nil, err
	}
	if img == nil {
		return nil, errors.NewDecodeError(string(id), errors.New("decoder returned no image"))
	}

	g.cache.Put(id, img)
	log.LogWithFields(
		log.F("image_id", id),
		log.F("bytes", img.SizeBytes),
		log.F("elapsed", time.Since(start).Round(time.Millisecond)),
	).Debug("decoded")
	return img, nil
}
