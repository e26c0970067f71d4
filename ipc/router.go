package ipc

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"storesync/stats_collector"
	"storesync/writebehind"
)

const defaultResponseTTL = time.Minute

// Handler serves one decoded message. The returned value becomes the
// response data.
type Handler func(ctx context.Context, msg Message) (any, error)

type RouterConfig struct {
	// Retry bounds how long a request waits for its handler to be registered
	Retry       writebehind.RetryPolicy
	ResponseTTL time.Duration
	Stats       stats_collector.StatsCollector
}

// Router dispatches requests to the handler registered for their kind.
// Successful responses to mutating requests are remembered per request id so
// a resubmitted request is answered again instead of being applied twice.
type Router struct {
	handlers  *xsync.MapOf[Kind, Handler]
	responses *ttlcache.Cache[string, Response]
	retry     writebehind.RetryPolicy
	stats     stats_collector.StatsCollector
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = defaultResponseTTL
	}
	if cfg.Stats == nil {
		cfg.Stats = stats_collector.NewNoopStatsCollector()
	}

	return &Router{
		handlers: xsync.NewMapOf[Kind, Handler](),
		responses: ttlcache.New[string, Response](
			ttlcache.WithTTL[string, Response](cfg.ResponseTTL),
			ttlcache.WithDisableTouchOnHit[string, Response](),
		),
		retry: cfg.Retry,
		stats: cfg.Stats,
	}
}

// Start runs the expiry loop of the response cache
func (r *Router) Start() {
	go r.responses.Start()
}

func (r *Router) Stop() {
	r.responses.Stop()
}

// Handle registers h for kind, replacing any earlier handler
func (r *Router) Handle(kind Kind, h Handler) {
	if !kind.Known() {
		log.Warnf("IPC: registering handler for unknown kind %s", kind)
	}
	r.handlers.Store(kind, h)
}

// Serve decodes a raw request and invokes it. It always produces a response;
// a request that fails to decode is answered with the id it carried, if any.
func (r *Router) Serve(ctx context.Context, body []byte) Response {
	req, msg, err := Decode(body)
	if err != nil {
		id := req.Id
		if id == "" {
			id = gjson.GetBytes(body, "id").String()
		}
		status := "malformed"
		if errors.Is(err, ErrUnknownKind) {
			status = "unknown_kind"
		}
		r.stats.IncIpcRequests("invalid", status)
		log.Debugf("IPC: rejected request %q: %s", id, err)
		return errorResponse(id, err)
	}
	return r.Invoke(ctx, req, msg)
}

func (r *Router) Invoke(ctx context.Context, req Request, msg Message) Response {
	cacheKey := string(req.Kind) + "/" + req.Id
	if item := r.responses.Get(cacheKey); item != nil {
		r.stats.IncIpcRequests(string(req.Kind), "replayed")
		return item.Value()
	}

	var handler Handler
	err := r.retry.Do(ctx,
		func(err error) bool { return errors.Is(err, ErrHandlerNotRegistered) },
		func(ctx context.Context) error {
			h, ok := r.handlers.Load(req.Kind)
			if !ok {
				return ErrHandlerNotRegistered
			}
			handler = h
			return nil
		})
	if err != nil {
		r.stats.IncIpcRequests(string(req.Kind), "unavailable")
		log.Warnf("IPC: no handler for %s after retrying", req.Kind)
		return errorResponse(req.Id, err)
	}

	data, err := handler(ctx, msg)
	if err != nil {
		r.stats.IncIpcRequests(string(req.Kind), "error")
		log.Debugf("IPC: %s [%s] failed: %s", req.Kind, req.Id, err)
		return errorResponse(req.Id, err)
	}

	resp := okResponse(req.Id, data)
	if req.Kind.Mutates() {
		r.responses.Set(cacheKey, resp, ttlcache.DefaultTTL)
	}
	r.stats.IncIpcRequests(string(req.Kind), "ok")
	return resp
}
