package linkrpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientServerFetchRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := &Server{Fetch: func(keys []string, start, stop int64) (int64, int64, [][]float64, error) {
		result := make([][]float64, len(keys))
		for i := range result {
			result[i] = []float64{1, 2, 3}
		}
		return start, 10, result, nil
	}}
	go srv.Serve(ln)

	c, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Fetch([]string{"metric.a"}, 1000, 1030)
	require.NoError(t, err)
	require.Equal(t, int64(1000), resp.Start)
	require.Equal(t, int64(10), resp.Resolution)
	require.Equal(t, [][]float64{{1, 2, 3}}, resp.Result)
}
