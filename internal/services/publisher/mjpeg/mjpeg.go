// Package mjpeg writes camera ticks as a multipart/x-mixed-replace response.
package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"spicam-server/internal/services/camera"
)

const Boundary = "frame"

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Source yields ticks until one reports Done.
type Source interface {
	Next() camera.Tick
}

// Result summarises one served stream.
type Result struct {
	Frames       int
	Placeholders int
	End          camera.TickKind
}

// Serve writes ticks from src to w until the source ends or ctx is
// cancelled. Idle ticks write nothing.
func Serve(ctx context.Context, w http.ResponseWriter, src Source) (Result, error) {
	var res Result
	flusher, ok := w.(http.Flusher)
	if !ok {
		return res, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		if err := ctx.Err(); err != nil {
			res.End = camera.TickStop
			return res, nil
		}
		tick := src.Next()
		if tick.Done() {
			res.End = tick.Kind
			return res, nil
		}
		if len(tick.JPEG) == 0 {
			continue
		}
		if err := WritePart(w, tick.JPEG); err != nil {
			// client went away
			res.End = camera.TickStop
			return res, nil
		}
		flusher.Flush()
		if tick.Kind == camera.TickFrame {
			res.Frames++
		} else {
			res.Placeholders++
		}
	}
}

// WritePart writes one JPEG part including its boundary line.
func WritePart(w io.Writer, jpeg []byte) error {
	if _, err := io.WriteString(w, "--"+Boundary+"\r\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
