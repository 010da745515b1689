package position

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
)

// FileSource reads fixes from a JSON file maintained by the platform's
// location bridge (gpsd adapter, mobile shell, simulator). The MaxAge
// option is honored against the sample's captured_at; a stale sample waits
// for the bridge to refresh it until the request times out.
type FileSource struct {
	Path string

	// Poll controls how often a stale file is re-read. Defaults to 500ms.
	Poll time.Duration
}

func (f *FileSource) Fix(ctx context.Context, opts FixOptions) (models.GeoPoint, error) {
	poll := f.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	for {
		fix, err := f.read()
		if err == nil && (opts.MaxAge <= 0 || time.Since(fix.CapturedAt) <= opts.MaxAge) {
			return fix, nil
		}
		if err != nil && os.IsPermission(err) {
			return models.GeoPoint{}, &Error{Kind: Denied, Cause: err}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return models.GeoPoint{}, &Error{Kind: Unavailable, Cause: err}
			}
			return models.GeoPoint{}, &Error{Kind: Timeout, Cause: ctx.Err()}
		case <-time.After(poll):
		}
	}
}

func (f *FileSource) read() (models.GeoPoint, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return models.GeoPoint{}, err
	}
	var fix models.GeoPoint
	if err := json.Unmarshal(b, &fix); err != nil {
		return models.GeoPoint{}, err
	}
	return fix, nil
}
