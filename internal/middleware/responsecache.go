package middleware

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/pkg/logger"
)

// Per-operation response TTLs; operations not listed use the configured
// default.
var operationTTLs = map[string]time.Duration{
	"GetDoctors":          10 * time.Minute,
	"GetDoctor":           15 * time.Minute,
	"GetAppointments":     2 * time.Minute,
	"GetMedicalDocuments": 5 * time.Minute,
	"GetReviews":          5 * time.Minute,
}

// ResponseCacheOptions tune the GraphQL response cache.
type ResponseCacheOptions struct {
	// DefaultTTL applies to operations without a dedicated TTL. Zero means 5
	// minutes.
	DefaultTTL time.Duration
	// EnabledOperations, when non-empty, restricts caching to these operation
	// names.
	EnabledOperations []string
	// DisabledOperations are never cached.
	DisabledOperations []string
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// ResponseCache serves repeated GraphQL queries from the cache. The key is
// the operation name plus an md5 of the query text and variables; responses
// carrying resolver errors are never stored.
func ResponseCache(c *cache.Cache, opts ResponseCacheOptions) gin.HandlerFunc {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}

	disabled := make(map[string]struct{}, len(opts.DisabledOperations))
	for _, op := range opts.DisabledOperations {
		disabled[op] = struct{}{}
	}
	enabled := make(map[string]struct{}, len(opts.EnabledOperations))
	for _, op := range opts.EnabledOperations {
		enabled[op] = struct{}{}
	}

	log := logger.WithModule("response-cache")

	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.Request.Body == nil {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		var req graphqlRequest
		if err := json.Unmarshal(body, &req); err != nil || req.Query == "" {
			ctx.Next()
			return
		}

		if _, skip := disabled[req.OperationName]; skip {
			ctx.Next()
			return
		}
		if len(enabled) > 0 {
			if _, ok := enabled[req.OperationName]; !ok {
				ctx.Next()
				return
			}
		}

		key := cacheKey(req)

		var cached json.RawMessage
		if c.Get(ctx.Request.Context(), key, &cached) {
			log.Debug("cache hit", zap.String("operation", operationLabel(req)))
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			ctx.Abort()
			return
		}

		capture := &captureWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = capture

		ctx.Next()

		if capture.Status() != http.StatusOK || capture.body.Len() == 0 {
			return
		}
		if hasErrors(capture.body.Bytes()) {
			return
		}

		ttl := opts.DefaultTTL
		if dedicated, ok := operationTTLs[req.OperationName]; ok {
			ttl = dedicated
		}
		c.Set(ctx.Request.Context(), key, json.RawMessage(capture.body.Bytes()), ttl)
		log.Debug("cached response",
			zap.String("operation", operationLabel(req)),
			zap.Duration("ttl", ttl))
	}
}

func cacheKey(req graphqlRequest) string {
	payload, _ := json.Marshal(struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}{req.Query, req.Variables})

	sum := md5.Sum(payload)
	return "graphql:" + operationLabel(req) + ":" + hex.EncodeToString(sum[:])
}

func operationLabel(req graphqlRequest) string {
	if req.OperationName == "" {
		return "anonymous"
	}
	return req.OperationName
}

func hasErrors(body []byte) bool {
	var envelope struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return true
	}
	return len(envelope.Errors) > 0
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
