// Package collectors gathers metrics pushed by FFmpeg subprocesses.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics"
)

// ProgressCollector receives FFmpeg `-progress unix://<socket>` reports for
// one codec instance.
type ProgressCollector struct {
	logger     logging.Logger
	socketPath string
	instance   string
	listener   net.Listener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewProgressCollector creates a collector listening on socketPath.
func NewProgressCollector(socketPath, instance string) *ProgressCollector {
	return &ProgressCollector{
		logger:     logging.GetLogger("metrics").With("instance", instance),
		socketPath: socketPath,
		instance:   instance,
	}
}

// URL is the value to pass to FFmpeg's -progress option.
func (c *ProgressCollector) URL() string {
	return "unix://" + c.socketPath
}

// Start creates the socket and begins accepting FFmpeg connections.
func (c *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return err
	}
	c.listener = listener

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ctx.Done()
		listener.Close()
	}()

	c.wg.Add(1)
	go c.acceptLoop(ctx)
	return nil
}

// Stop closes the socket and removes the instance metrics.
func (c *ProgressCollector) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		os.Remove(c.socketPath)
		metrics.DeleteProgress(c.instance)
	})
}

func (c *ProgressCollector) acceptLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn("Error accepting connection", "error", err)
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleConnection(ctx, conn)
		}()
	}
}

func (c *ProgressCollector) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	report := make(map[string]string)

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		report[key] = strings.TrimSpace(value)

		// every report ends with progress=continue|end
		if key == "progress" {
			metrics.SetProgress(c.instance, ParseProgress(report))
			clear(report)
		}
	}
}

// ParseProgress converts one FFmpeg progress report into metric values.
func ParseProgress(report map[string]string) metrics.Progress {
	var p metrics.Progress
	p.FPS = parseFloat(report["fps"])
	p.Dropped = parseFloat(report["drop_frames"])
	p.Duplicated = parseFloat(report["dup_frames"])
	p.Speed = parseFloat(strings.TrimSuffix(report["speed"], "x"))
	return p
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
