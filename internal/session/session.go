package session

import (
	"dcmview/internal/config"
	"dcmview/internal/decode"
	"dcmview/internal/imagecache"
	"dcmview/internal/registry"
	"dcmview/internal/viewer"
)

// Session is the context object a front end owns. It wires one registry,
// cache, gateway and viewer to a Controller; independent sessions share
// nothing.
type Session struct {
	*Controller

	Registry *registry.Registry
	Cache    *imagecache.Cache
	Gateway  *decode.Gateway
	Viewer   *viewer.Session
}

// Option customizes a Session
type Option func(*sessionOptions)

type sessionOptions struct {
	decoder  decode.Decoder
	listener Listener
}

// WithDecoder replaces the DICOM decoder, mostly for tests
func WithDecoder(d decode.Decoder) Option {
	return func(o *sessionOptions) {
		o.decoder = d
	}
}

// WithListener registers a pipeline event listener
func WithListener(l Listener) Option {
	return func(o *sessionOptions) {
		o.listener = l
	}
}

// New builds a session rendering to surface. A nil cfg uses the defaults.
func New(cfg *config.Config, surface viewer.Surface, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.New()
	}
	var so sessionOptions
	for _, opt := range opts {
		opt(&so)
	}

	reg := registry.New()
	cache := imagecache.New(imagecache.Options{
		MaxBytes:      cfg.Cache.MaxBytes,
		MinEntryBytes: cfg.Cache.MinEntryBytes,
	})
	if so.decoder == nil {
		so.decoder = decode.NewDICOMDecoder(reg)
	}
	gateway := decode.NewGateway(cache, so.decoder, cfg.DecodeTimeout())
	view := viewer.NewSession()

	ctrl := NewController(Deps{
		Registry: reg,
		Cache:    cache,
		Gateway:  gateway,
		Viewer:   view,
		Surface:  surface,
	}, Options{
		PurgeOnDelete: cfg.Cache.PurgeOnDelete,
		PurgeOnSelect: cfg.Cache.PurgeOnSelect,
		Listener:      so.listener,
	})

	return &Session{
		Controller: ctrl,
		Registry:   reg,
		Cache:      cache,
		Gateway:    gateway,
		Viewer:     view,
	}
}
