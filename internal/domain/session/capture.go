package session

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
)

// EnableCapture intercepts responses at the paused-response stage, records
// them into the session cache, and lets every request proceed unmodified.
// Capture never blocks or alters page loading; a failed body read just means
// that resource is absent from the next fork.
func (c *Context) EnableCapture() error {
	cctx, cancel := context.WithCancel(context.Background())
	p := c.page.Context(cctx)

	go p.EachEvent(func(e *proto.FetchRequestPaused) {
		c.onResponsePaused(e)
	})()

	err := proto.FetchEnable{
		Patterns: []*proto.FetchRequestPattern{
			{URLPattern: "*", RequestStage: proto.FetchRequestStageResponse},
		},
	}.Call(c.page)
	if err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.captureCancel = cancel
	c.mu.Unlock()
	return nil
}

// DisableCapture stops interception and drops the listener.
func (c *Context) DisableCapture() {
	c.mu.Lock()
	cancel := c.captureCancel
	c.captureCancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if c.page == nil {
		return
	}
	if err := (proto.FetchDisable{}).Call(c.page); err != nil {
		c.logger.Debug("disable capture", zap.Error(err))
	}
}

// onResponsePaused records one paused response and releases it. The request
// is always continued, even when recording fails.
func (c *Context) onResponsePaused(e *proto.FetchRequestPaused) {
	c.recordResponse(e)

	if err := (proto.FetchContinueRequest{RequestID: e.RequestID}).Call(c.page); err != nil {
		c.logger.Debug("continue request", zap.Error(err),
			zap.String("url", requestURL(e)))
	}
}

func (c *Context) recordResponse(e *proto.FetchRequestPaused) {
	if e.Request == nil || c.cache == nil {
		return
	}
	status := 0
	if e.ResponseStatusCode != nil {
		status = *e.ResponseStatusCode
	}
	// Redirects and errors carry no body worth replaying; the followup
	// request is intercepted separately.
	if status == 0 || (status >= 300 && status < 400) {
		return
	}

	body, err := proto.FetchGetResponseBody{RequestID: e.RequestID}.Call(c.page)
	if err != nil {
		c.logger.Debug("response body unavailable",
			zap.String("url", e.Request.URL), zap.Error(err))
		return
	}

	data := []byte(body.Body)
	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			c.logger.Debug("response body decode failed",
				zap.String("url", e.Request.URL), zap.Error(err))
			return
		}
		data = decoded
	}

	headers := make(map[string]string, len(e.Request.Headers))
	for k, v := range e.Request.Headers {
		headers[k] = v.Str()
	}

	respHeaders := make(map[string]string, len(e.ResponseHeaders))
	for _, h := range e.ResponseHeaders {
		if h != nil {
			respHeaders[h.Name] = h.Value
		}
	}

	reqBody := []byte(e.Request.PostData)
	key := netcache.ComputeKey(e.Request.Method, e.Request.URL, headers, reqBody)
	c.cache.Admit(key, &netcache.Response{
		Method:         e.Request.Method,
		URL:            e.Request.URL,
		RequestHeaders: headers,
		RequestBody:    reqBody,
		Status:         status,
		Headers:        respHeaders,
		Body:           data,
		MIME:           contentType(respHeaders),
		Category:       resourceCategory(e.ResourceType),
		CapturedAt:     time.Now(),
	})
}

func contentType(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			return v
		}
	}
	return ""
}

func requestURL(e *proto.FetchRequestPaused) string {
	if e.Request == nil {
		return ""
	}
	return e.Request.URL
}

// resourceCategory maps engine resource types onto the cache's category
// vocabulary; unknown types fall into "other" and get no special treatment.
func resourceCategory(t proto.NetworkResourceType) netcache.Category {
	switch t {
	case proto.NetworkResourceTypeDocument:
		return netcache.CategoryDocument
	case proto.NetworkResourceTypeScript:
		return netcache.CategoryScript
	case proto.NetworkResourceTypeStylesheet:
		return netcache.CategoryStylesheet
	case proto.NetworkResourceTypeXHR:
		return netcache.CategoryXHR
	case proto.NetworkResourceTypeFetch:
		return netcache.CategoryFetch
	case proto.NetworkResourceTypeImage:
		return netcache.CategoryImage
	case proto.NetworkResourceTypeFont:
		return netcache.CategoryFont
	case proto.NetworkResourceTypeMedia:
		return netcache.CategoryMedia
	default:
		return netcache.CategoryOther
	}
}
