// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// progressEvery throttles download progress events.
const progressEvery = 256 << 10

// progressWriter counts bytes written and reports them every progressEvery
// bytes.
type progressWriter struct {
	w        io.Writer
	total    int64
	current  int64
	reported int64
	report   func(current, total int64)
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	pw.current += int64(n)
	if pw.current-pw.reported >= progressEvery {
		pw.reported = pw.current
		pw.report(pw.current, pw.total)
	}
	return n, err
}

// download fetches url into a temp file and returns its path. The partial
// file is removed on any failure, including cancellation.
func (p *Pipeline) download(ctx context.Context, mod owmod.UniqueName, url string, report func(current, total int64)) (_ string, err error) {
	fail := func(cause error) error {
		if ctx.Err() != nil {
			return &owmod.Error{Kind: owmod.Canceled, Mod: mod, Path: url, Err: ctx.Err()}
		}
		return &owmod.Error{Kind: owmod.NetworkError, Mod: mod, Path: url, Err: cause}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fail(err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fail(err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return "", fail(fmt.Errorf("unexpected status: %s", resp.Status))
	}
	if resp.ContentLength > p.maxArchiveBytes {
		return "", fail(fmt.Errorf("archive is %d bytes, limit is %d", resp.ContentLength, p.maxArchiveBytes))
	}

	tmp, err := os.CreateTemp(p.tempDir, "owmods-*.zip")
	if err != nil {
		return "", &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: p.tempDir, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath) // Best-effort cleanup of the partial archive
		}
	}()

	pw := &progressWriter{w: tmp, total: resp.ContentLength, report: report}
	n, copyErr := io.Copy(pw, io.LimitReader(resp.Body, p.maxArchiveBytes+1))
	closeErr := tmp.Close()
	downloadBytes.Add(float64(n))
	if copyErr != nil {
		return "", fail(copyErr)
	}
	if closeErr != nil {
		return "", &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: tmpPath, Err: closeErr}
	}
	if n > p.maxArchiveBytes {
		return "", fail(errors.New("archive exceeds size limit"))
	}
	report(n, resp.ContentLength)
	return tmpPath, nil
}
