package buildkit

import (
	"bytes"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/moby/buildkit/client"
	"github.com/opencontainers/go-digest"
)

// LogObserver forwards build output to a logger one line at a time and
// records each completed step once.
type LogObserver struct {
	Log logr.Logger

	mu      sync.Mutex
	names   map[digest.Digest]string
	partial map[digest.Digest]*bytes.Buffer
	done    map[digest.Digest]bool
}

func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{
		Log:     log,
		names:   map[digest.Digest]string{},
		partial: map[digest.Digest]*bytes.Buffer{},
		done:    map[digest.Digest]bool{},
	}
}

func (o *LogObserver) HandleStatus(s *client.SolveStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, v := range s.Vertexes {
		if v == nil {
			continue
		}
		o.names[v.Digest] = v.Name
		if v.Completed != nil && !o.done[v.Digest] {
			o.done[v.Digest] = true
			if v.Error != "" {
				o.Log.Info("build step failed", "step", v.Name, "error", v.Error)
			} else {
				o.Log.V(1).Info("build step done", "step", v.Name, "cached", v.Cached)
			}
		}
	}
	for _, l := range s.Logs {
		if l == nil {
			continue
		}
		buf, ok := o.partial[l.Vertex]
		if !ok {
			buf = &bytes.Buffer{}
			o.partial[l.Vertex] = buf
		}
		buf.Write(l.Data)
		for {
			line, err := buf.ReadString('\n')
			if err != nil {
				// keep the unterminated tail for the next chunk
				buf.Reset()
				buf.WriteString(line)
				break
			}
			if text := strings.TrimRight(line, "\r\n"); text != "" {
				o.Log.Info(text, "step", o.names[l.Vertex])
			}
		}
	}
}
