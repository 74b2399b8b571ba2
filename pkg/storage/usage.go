// Package storage reports how full the overlay image is.
package storage

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/metaoverlayfs/panel/command"
)

// unmountedUsedRatio estimates usage of an image that is not mounted.
const unmountedUsedRatio = 0.11

// Usage describes the overlay image file.
type Usage struct {
	Used    int64 `json:"used"`
	Total   int64 `json:"total"`
	Free    int64 `json:"free"`
	Percent int   `json:"percent"`
	Mounted bool  `json:"mounted"`
	Exists  bool  `json:"exists"`
}

// UsedFormatted formats Used with FormatBytes.
func (u Usage) UsedFormatted() string { return FormatBytes(u.Used) }

// TotalFormatted formats Total with FormatBytes.
func (u Usage) TotalFormatted() string { return FormatBytes(u.Total) }

// FreeFormatted formats Free with FormatBytes.
func (u Usage) FreeFormatted() string { return FormatBytes(u.Free) }

// Reader queries image usage through the command bridge.
type Reader struct {
	bridge command.Bridge
	cmds   *command.Builder
}

// NewReader creates a Reader.
func NewReader(bridge command.Bridge, cmds *command.Builder) *Reader {
	return &Reader{bridge: bridge, cmds: cmds}
}

// Usage reads the image size from the image file and, when mounted, the
// used space from df. A failed check degrades to false or zero. The only
// error returned is cancellation of ctx, with a zeroed Usage.
func (r *Reader) Usage(ctx context.Context) (Usage, error) {
	p := r.cmds.Paths()

	u := Usage{
		Mounted: r.flag(ctx, r.cmds.MountCheck()),
		Exists:  r.flag(ctx, r.cmds.FileExists(p.ImageFile)),
	}
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	if !u.Exists {
		return u, nil
	}

	u.Total = r.number(ctx, r.cmds.FileSize(p.ImageFile), 0)
	if u.Mounted {
		u.Used = ParseDFUsed(r.output(ctx, r.cmds.DiskUsage(p.MountDir)))
	} else {
		u.Used = int64(math.Round(float64(u.Total) * unmountedUsedRatio))
	}
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}

	u.Free = u.Total - u.Used
	if u.Total > 0 {
		u.Percent = int(math.Round(float64(u.Used) / float64(u.Total) * 100))
	}
	return u, nil
}

func (r *Reader) output(ctx context.Context, cmd string) string {
	out, err := r.bridge.Execute(ctx, cmd)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (r *Reader) flag(ctx context.Context, cmd string) bool {
	return r.output(ctx, cmd) == "1"
}

func (r *Reader) number(ctx context.Context, cmd string, def int64) int64 {
	n, err := strconv.ParseInt(r.output(ctx, cmd), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// ParseDFUsed extracts the used column of a `df -k` line, in bytes.
func ParseDFUsed(line string) int64 {
	parts := strings.Fields(line)
	if len(parts) < 4 {
		return 0
	}
	kb, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}
