package ingestserver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	points []point
}

type point struct {
	ts    int64
	name  string
	value float64
}

func (f *fakeSink) Add(ts int64, name string, value float64) {
	f.points = append(f.points, point{ts, name, value})
}

func TestServeTCPParsesLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	sink := &fakeSink{}
	srv := &Server{Buf: sink}
	go srv.ServeTCP(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("servers.web01.cpu 42.5 1000\nmalformed line here extra\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.points) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "servers.web01.cpu", sink.points[0].name)
	assert.Equal(t, 42.5, sink.points[0].value)
	assert.Equal(t, int64(1000), sink.points[0].ts)
	assert.Equal(t, int64(1), srv.Invalid)
}

func TestParseLine(t *testing.T) {
	name, value, ts, ok := parseLine("cpu.load 1.5 1000")
	require.True(t, ok)
	assert.Equal(t, "cpu.load", name)
	assert.Equal(t, 1.5, value)
	assert.Equal(t, int64(1000), ts)

	_, _, _, ok = parseLine("cpu.load 1.5")
	require.False(t, ok)
}
