package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// Bodies below this size are not worth the encoder overhead.
const brotliMinLength = 1024

// Container formats that are already deflated; recompressing them burns
// CPU for nothing. Covers the xlsx results export.
var precompressedTypes = []string{
	"application/vnd.openxmlformats-officedocument",
	"application/zip",
}

// brotliWriter buffers output until it can decide whether the body is
// worth compressing, then commits to one encoding for the rest of the
// response.
type brotliWriter struct {
	gin.ResponseWriter
	br       *brotli.Writer
	pending  []byte
	decide   sync.Once
	compress bool
}

func (w *brotliWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	if len(w.pending) < brotliMinLength {
		return len(p), nil
	}

	w.decide.Do(func() {
		if isPrecompressed(w.Header().Get("Content-Type")) {
			return
		}
		w.compress = true
		w.Header().Set("Content-Encoding", "br")
		w.Header().Del("Content-Length")
	})

	if err := w.drain(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush supports streaming handlers: whatever is buffered goes out
// plain and the decision to compress is abandoned.
func (w *brotliWriter) Flush() {
	if len(w.pending) > 0 {
		_, _ = w.ResponseWriter.Write(w.pending)
		w.pending = w.pending[:0]
	}
	w.ResponseWriter.Flush()
}

// drain empties the buffer through whichever sink was committed to.
func (w *brotliWriter) drain() error {
	if len(w.pending) == 0 {
		return nil
	}
	var err error
	if w.compress {
		_, err = w.br.Write(w.pending)
	} else {
		_, err = w.ResponseWriter.Write(w.pending)
	}
	w.pending = w.pending[:0]
	return err
}

// Brotli compresses responses for clients that accept it. WebSocket
// upgrades pass through untouched since wrapping the writer breaks the
// handshake.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			c.Next()
			return
		}
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			br:             brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}

		defer func() {
			if err := bw.drain(); err != nil {
				_ = c.Error(err)
			}
			if bw.compress {
				bw.br.Close()
			}
		}()

		c.Writer = bw
		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}

func isPrecompressed(contentType string) bool {
	for _, prefix := range precompressedTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
