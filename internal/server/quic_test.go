package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/events/bus"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/profiler"
)

func startQUICInspector(t *testing.T, token string) *Inspector {
	t.Helper()
	insp := New(config.InspectorConfig{
		Enabled:  true,
		Addr:     "127.0.0.1:0",
		QUICAddr: "127.0.0.1:0",
		Token:    token,
	}, WithLogger(log.Nop()))
	require.NoError(t, insp.Start(context.Background()))
	t.Cleanup(func() { _ = insp.Stop(context.Background()) })
	require.NotEmpty(t, insp.QUICAddr())
	return insp
}

func dialQUIC(t *testing.T, addr, token string) (*quic.Conn, *bufio.Reader) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(ctx, addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ALPN},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseWithError(0, "") })

	stream, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	_, err = stream.Write([]byte(token + "\n"))
	require.NoError(t, err)
	require.NoError(t, stream.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn, bufio.NewReader(stream)
}

func readLine(t *testing.T, r *bufio.Reader) Message {
	t.Helper()
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(line, &m))
	return m
}

func TestQUICFeedStreamsMessages(t *testing.T) {
	insp := startQUICInspector(t, "")
	_, r := dialQUIC(t, insp.QUICAddr(), "")

	assert.Equal(t, KindHello, readLine(t, r).Kind)
	require.Eventually(t, func() bool { return insp.Clients() == 1 }, time.Second, 5*time.Millisecond)

	insp.PublishStats(profiler.Snapshot{Frame: 9})
	require.NoError(t, insp.PublishEvent(bus.NewEvent(bus.FrameCompleted, "engine", nil)))

	stats := readLine(t, r)
	assert.Equal(t, KindStats, stats.Kind)
	require.NotNil(t, stats.Stats)
	assert.Equal(t, uint64(9), stats.Stats.Frame)

	event := readLine(t, r)
	assert.Equal(t, KindEvent, event.Kind)
	assert.Equal(t, bus.FrameCompleted, event.Event.Type)
}

func TestQUICFeedRejectsBadToken(t *testing.T) {
	insp := startQUICInspector(t, "letmein")

	_, r := dialQUIC(t, insp.QUICAddr(), "wrong")
	_, err := r.ReadBytes('\n')
	var appErr *quic.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, codeUnauthorized, appErr.ErrorCode)

	_, admitted := dialQUIC(t, insp.QUICAddr(), "letmein")
	assert.Equal(t, KindHello, readLine(t, admitted).Kind)
}

func TestTokenAuthCheck(t *testing.T) {
	assert.NoError(t, NewTokenAuth("").Check("anything"))
	assert.NoError(t, NewTokenAuth("abc").Check("abc"))
	assert.ErrorIs(t, NewTokenAuth("abc").Check("abd"), ErrUnauthorized)
}
